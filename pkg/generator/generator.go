// Package generator produces tailored résumé content from a job posting and the source profile.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nikogura/resume-forge/pkg/config"
	"github.com/nikogura/resume-forge/pkg/jobs"
	"github.com/nikogura/resume-forge/pkg/jsonrepair"
	"github.com/nikogura/resume-forge/pkg/logging"
	"github.com/nikogura/resume-forge/pkg/profile"
	"github.com/nikogura/resume-forge/pkg/provider"
	"github.com/nikogura/resume-forge/pkg/store"
)

// TemplateVersion is part of every fingerprint. Bump it when prompt changes should invalidate
// cached content.
const TemplateVersion = "2026.10.1"

const (
	// StageGenerate names the generation stage in errors and debug artifacts.
	StageGenerate = "generate"

	defaultMaxTokens = 8192
	logPreviewChars  = 300
)

// Input is everything one generation needs.
type Input struct {
	Job              jobs.JobRecord
	Profile          profile.SourceProfile
	Excerpt          string
	Options          Options
	Recommendations  []string
	CompanyContext   string
	JudgeSuggestions []string
}

// ParseError means the provider's reply could not be turned into content. Location is the
// debug artifact holding the raw reply.
type ParseError struct {
	Stage    string
	Location string
	Cause    error
}

func (e *ParseError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("%s: unparseable response: %v", e.Stage, e.Cause)
	}
	return fmt.Sprintf("%s: unparseable response (raw saved to %s): %v", e.Stage, e.Location, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Generator calls the provider, parses its reply and stores the result.
type Generator struct {
	Provider provider.Provider
	Store    store.Store
	Status   *store.StatusStore
	// Rules returns the section guidance for an experience format.
	Rules     func(format string) config.SectionRules
	DataDir   string
	MaxTokens int
	Logger    *zap.Logger

	now func() time.Time
}

type response struct {
	Resume  string   `json:"resume"`
	Body    string   `json:"body"`
	Changes []string `json:"changes"`
}

// Fingerprint identifies the inputs of a generation for cache lookups.
func Fingerprint(job jobs.JobRecord, p profile.SourceProfile, opts Options) (fp string, err error) {
	fp, err = store.Fingerprint(store.FingerprintInput{
		JobID:           job.ID,
		ProfileHash:     p.Hash,
		ProfileModTime:  p.ModTime,
		Options:         opts.Normalize(),
		TemplateVersion: TemplateVersion,
	})
	return fp, err
}

// Generate makes one provider call and stores the parsed content.
func (g *Generator) Generate(ctx context.Context, in Input) (content store.TailoredContent, usage provider.Usage, err error) {
	logger := logging.WithCommonFields(g.Logger, g.Provider.Name(), g.Provider.Model()).With(
		zap.String(logging.FieldJob, in.Job.ID),
		zap.String(logging.FieldStage, StageGenerate),
	)

	in.Options = in.Options.Normalize()
	err = in.Options.Validate()
	if err != nil {
		return content, usage, err
	}

	if strings.TrimSpace(in.Excerpt) == "" {
		in.Excerpt = in.Profile.Content
	}

	rules := config.DefaultRules(in.Options.ExperienceFormat)
	if g.Rules != nil {
		rules = g.Rules(in.Options.ExperienceFormat)
	}

	caching := g.Provider.SupportsPromptCaching()
	req := provider.Request{
		Prompt:    buildPrompt(in, rules, caching),
		MaxTokens: g.maxTokens(),
	}
	if caching {
		req.CachedContent = in.Excerpt
	}

	est := g.Provider.EstimateCost(req)
	logger.Debug("sending generation request",
		zap.Float64("estimated_cost_usd", est.TotalCost),
		zap.Int("recommendations", len(in.Recommendations)),
		zap.Int("mandatory_corrections", len(in.JudgeSuggestions)),
		zap.String("prompt_preview", logging.TruncateForLog(req.Prompt, logPreviewChars)),
	)

	var resp provider.Response
	resp, err = g.Provider.MakeRequest(ctx, req)
	if err != nil {
		err = errors.Wrap(err, "generation request failed")
		return content, usage, err
	}
	usage = resp.Usage

	var parsed response
	err = jsonrepair.Decode(resp.Text, &parsed)
	body := strings.TrimSpace(parsed.Resume)
	if body == "" {
		body = strings.TrimSpace(parsed.Body)
	}
	if err == nil && body == "" {
		err = errors.New("response has no resume body")
	}
	if err != nil {
		err = g.parseFailure(in.Job.ID, resp.Text, err, logger)
		return content, usage, err
	}

	var fp string
	fp, err = Fingerprint(in.Job, in.Profile, in.Options)
	if err != nil {
		return content, usage, err
	}

	changes := make([]string, 0, len(parsed.Changes))
	for _, c := range parsed.Changes {
		if c = strings.TrimSpace(c); c != "" {
			changes = append(changes, c)
		}
	}

	content, err = g.Store.Put(ctx, in.Job.ID, fp, store.Content{Body: body, Changes: changes})
	if err != nil {
		err = errors.Wrap(err, "failed to store generated content")
		return content, usage, err
	}

	if g.Status != nil {
		_, err = g.Status.Update(in.Job.ID, func(s *store.SessionStatus) {
			s.HasContent = true
			s.LastFingerprint = fp
		})
		if err != nil {
			err = errors.Wrap(err, "failed to update session status")
			return content, usage, err
		}
	}

	logger.Info("generated tailored content",
		zap.String("record_id", content.RecordID),
		zap.Int64("seq", content.Seq),
		zap.Int("changes", len(changes)),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
	)

	return content, usage, err
}

// parseFailure saves the raw reply and returns a ParseError pointing at it.
func (g *Generator) parseFailure(jobID, raw string, cause error, logger *zap.Logger) (err error) {
	location, saveErr := store.WriteDebugArtifact(g.DataDir, jobID, StageGenerate, raw, cause, g.clock())
	if saveErr != nil {
		logger.Warn("unable to save debug artifact", zap.Error(saveErr))
	}

	logger.Error("unparseable generation response",
		zap.String("debug_artifact", location),
		zap.String("response_preview", logging.TruncateForLog(raw, logPreviewChars)),
		zap.Error(cause),
	)

	err = &ParseError{Stage: StageGenerate, Location: location, Cause: cause}
	return err
}

func (g *Generator) maxTokens() (n int) {
	n = g.MaxTokens
	if n <= 0 {
		n = defaultMaxTokens
	}
	return n
}

func (g *Generator) clock() (t time.Time) {
	if g.now != nil {
		t = g.now()
		return t
	}
	t = time.Now().UTC()
	return t
}
