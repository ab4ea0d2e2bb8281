// Package critic asks a reviewer model for a one-time expert critique of a rendered résumé.
package critic

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nikogura/resume-forge/pkg/document"
	"github.com/nikogura/resume-forge/pkg/jobs"
	"github.com/nikogura/resume-forge/pkg/jsonrepair"
	"github.com/nikogura/resume-forge/pkg/logging"
	"github.com/nikogura/resume-forge/pkg/provider"
	"github.com/nikogura/resume-forge/pkg/store"
)

const (
	// StageCritique names the critique stage in errors and debug artifacts.
	StageCritique = "critique"

	// TextUnavailable replaces the résumé text when it cannot be extracted.
	TextUnavailable = "[resume text unavailable: could not extract text from rendered artifact]"

	// MaxTextChars bounds the résumé text sent for review.
	MaxTextChars = 12000

	maxTokens = 4096
)

const responseSchema = `{
  "type": "object",
  "required": ["rating", "strengths", "weaknesses", "recommendations", "analysis"],
  "properties": {
    "rating": {"type": "number"},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "weaknesses": {"type": "array", "items": {"type": "string"}},
    "recommendations": {"type": "array", "items": {"type": "string"}},
    "analysis": {"type": "string"}
  }
}`

// ValidationError means the reviewer's reply did not match the critique schema.
type ValidationError struct {
	Problems []string
	Cause    error
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return fmt.Sprintf("invalid critique response: %v", e.Cause)
	}
	return "invalid critique response: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// Critic reviews the most recent rendered artifact for a job.
type Critic struct {
	Provider  provider.Provider
	Inspector document.Inspector
	Jobs      jobs.Repository
	Status    *store.StatusStore
	Log       *store.CritiqueLog
	DataDir   string
	Logger    *zap.Logger
}

type critiqueResponse struct {
	Rating          float64  `json:"rating"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
	Analysis        string   `json:"analysis"`
}

// Critique reviews the job's last rendered artifact, records the verdict and merges its
// recommendations into the job's list.
func (c *Critic) Critique(ctx context.Context, jobID string) (record store.CritiqueRecord, usage provider.Usage, err error) {
	logger := logging.WithCommonFields(c.Logger, c.Provider.Name(), c.Provider.Model()).With(
		zap.String(logging.FieldJob, jobID),
		zap.String(logging.FieldStage, StageCritique),
	)

	var job jobs.JobRecord
	job, err = c.Jobs.Get(jobID)
	if err != nil {
		return record, usage, err
	}

	status := c.Status.Get(jobID)
	if status.LastArtifactPath == "" {
		err = errors.Errorf("job %s has no rendered artifact to critique", jobID)
		return record, usage, err
	}

	text := TextUnavailable
	info, inspectErr := c.Inspector.Inspect(ctx, status.LastArtifactPath, MaxTextChars)
	if inspectErr != nil || strings.TrimSpace(info.Text) == "" {
		logger.Warn("could not extract artifact text, critiquing without it",
			zap.String("artifact", status.LastArtifactPath),
			zap.Error(inspectErr),
		)
	} else {
		text = info.Text
	}

	archetype, hits := Classify(job.Description)
	logger.Debug("classified job domain", zap.String("domain", archetype.Name), zap.Int("hits", hits))

	req := provider.Request{Prompt: buildPrompt(job, archetype, text), MaxTokens: maxTokens}

	var resp provider.Response
	resp, err = c.Provider.MakeRequest(ctx, req)
	if err != nil {
		err = errors.Wrap(err, "critique request failed")
		return record, usage, err
	}
	usage = resp.Usage

	var parsed critiqueResponse
	err = jsonrepair.DecodeWithSchema(resp.Text, responseSchema, &parsed)
	if err != nil {
		err = c.invalid(jobID, resp.Text, err, logger)
		return record, usage, err
	}

	record = store.CritiqueRecord{
		Rating:          ClampRating(parsed.Rating),
		Strengths:       cleanList(parsed.Strengths),
		Weaknesses:      cleanList(parsed.Weaknesses),
		Recommendations: cleanList(parsed.Recommendations),
		Analysis:        strings.TrimSpace(parsed.Analysis),
		Domain:          archetype.Name,
		CreatedAt:       time.Now().UTC(),
	}

	_, err = c.Log.Append(jobID, record)
	if err != nil {
		err = errors.Wrap(err, "failed to record critique")
		return record, usage, err
	}

	_, err = c.Status.Update(jobID, func(s *store.SessionStatus) { s.CritiqueDone = true })
	if err != nil {
		err = errors.Wrap(err, "failed to update session status")
		return record, usage, err
	}

	logger.Info("critique complete",
		zap.Int("rating", record.Rating),
		zap.Int("recommendations", len(record.Recommendations)),
		zap.String("domain", record.Domain),
	)

	return record, usage, err
}

func (c *Critic) invalid(jobID, raw string, cause error, logger *zap.Logger) (err error) {
	location, saveErr := store.WriteDebugArtifact(c.DataDir, jobID, StageCritique, raw, cause, time.Now())
	if saveErr != nil {
		logger.Warn("unable to save debug artifact", zap.Error(saveErr))
	}

	verr := &ValidationError{Cause: cause}

	var schemaErr *jsonrepair.SchemaError
	if errors.As(cause, &schemaErr) {
		for _, fe := range schemaErr.Errors {
			verr.Problems = append(verr.Problems, fe.Field+": "+fe.Message)
		}
	}

	logger.Error("invalid critique response", zap.String("debug_artifact", location), zap.Error(cause))

	err = verr
	return err
}

// ClampRating rounds to the nearest integer and clamps to 1..10.
func ClampRating(rating float64) (clamped int) {
	clamped = int(math.Round(rating))
	if clamped < 1 {
		clamped = 1
	}
	if clamped > 10 {
		clamped = 10
	}
	return clamped
}

func cleanList(items []string) (out []string) {
	out = make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func buildPrompt(job jobs.JobRecord, archetype Archetype, resumeText string) (prompt string) {
	prompt = fmt.Sprintf(`You are a senior hiring manager reviewing a tailored resume against a job posting.

JOB: %s at %s

JOB DESCRIPTION:
%s

RESUME (text extracted from the rendered PDF):
%s

MUST-CHECK CRITERIA:
%s
Evaluate:
1. Alignment with the job's stated requirements
2. Strength and specificity of evidence (metrics, scope, technologies)
3. Use of the expected vocabulary where it is truthful
4. Tone against the expectation above
5. Anything that would cause a recruiter to pass

Recommendations must be concrete edits another writer can apply without seeing this review.
Return an empty recommendations array if the resume needs no changes.

Return ONLY valid JSON in this exact format (no markdown, no commentary):
{
  "rating": 7,
  "strengths": ["..."],
  "weaknesses": ["..."],
  "recommendations": ["..."],
  "analysis": "two or three sentences"
}`, job.Title, job.Company, strings.TrimSpace(job.Description), resumeText, criteria(archetype))

	return prompt
}
