// Package judge validates a rendered résumé against page and section guidance.
package judge

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nikogura/resume-forge/pkg/config"
	"github.com/nikogura/resume-forge/pkg/document"
	"github.com/nikogura/resume-forge/pkg/jsonrepair"
	"github.com/nikogura/resume-forge/pkg/logging"
	"github.com/nikogura/resume-forge/pkg/provider"
	"github.com/nikogura/resume-forge/pkg/scorer"
	"github.com/nikogura/resume-forge/pkg/store"
)

const (
	// StageJudge names the judge stage in errors and debug artifacts.
	StageJudge = "judge"

	// DefaultMaxTextChars bounds the artifact text sent to the judge.
	DefaultMaxTextChars = 12000

	maxTokens = 2048
)

const responseSchema = `{
  "type": "object",
  "required": ["passes", "violations", "suggestions", "confidence"],
  "properties": {
    "passes": {"type": "boolean"},
    "violations": {"type": "array", "items": {"type": "string"}},
    "suggestions": {"type": "array", "items": {"type": "string"}},
    "confidence": {"type": "number"}
  }
}`

// Result is the judge's verdict. PageCount is always the measured value.
type Result struct {
	Passes      bool     `json:"passes"`
	PageCount   int      `json:"page_count"`
	Violations  []string `json:"violations"`
	Suggestions []string `json:"suggestions"`
	Confidence  int      `json:"confidence"`
}

// UnavailableError means the artifact could not be read, so no verdict is possible.
type UnavailableError struct {
	Path  string
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("judge unavailable: cannot read %s: %v", e.Path, e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// ValidationError means the judge's reply did not match the verdict schema.
type ValidationError struct {
	Location string
	Cause    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid judge response: %v", e.Cause)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// Judge asks a reviewer model whether an artifact meets its guidance.
type Judge struct {
	Provider     provider.Provider
	Inspector    document.Inspector
	MaxTextChars int
	DataDir      string
	Logger       *zap.Logger
}

type verdict struct {
	Passes      bool     `json:"passes"`
	Violations  []string `json:"violations"`
	Suggestions []string `json:"suggestions"`
	Confidence  float64  `json:"confidence"`
}

// Validate judges the artifact. previous lists suggestions already applied in earlier
// attempts; the judge is told to propose different ones.
func (j *Judge) Validate(ctx context.Context, artifactPath string, guidance config.SectionRules, attempt int, previous []string) (result Result, usage provider.Usage, err error) {
	logger := logging.WithCommonFields(j.Logger, j.Provider.Name(), j.Provider.Model()).With(
		zap.String(logging.FieldStage, StageJudge),
		zap.Int(logging.FieldAttempt, attempt),
	)

	var info document.Info
	info, err = j.Inspector.Inspect(ctx, artifactPath, j.maxTextChars())
	if err != nil {
		err = &UnavailableError{Path: artifactPath, Cause: err}
		return result, usage, err
	}
	if strings.TrimSpace(info.Text) == "" {
		err = &UnavailableError{Path: artifactPath, Cause: errors.New("no extractable text")}
		return result, usage, err
	}

	report := scorer.Check(info.Text, info.PageCount, guidance)
	logger.Debug("structure checks", zap.Int("score", report.Score), zap.Strings("findings", report.Messages()))

	req := provider.Request{
		Prompt:    buildPrompt(guidance, info, report, attempt, previous),
		MaxTokens: maxTokens,
	}

	var resp provider.Response
	resp, err = j.Provider.MakeRequest(ctx, req)
	if err != nil {
		err = errors.Wrap(err, "judge request failed")
		return result, usage, err
	}
	usage = resp.Usage

	var v verdict
	err = jsonrepair.DecodeWithSchema(resp.Text, responseSchema, &v)
	if err != nil {
		location, saveErr := store.WriteDebugArtifact(j.DataDir, debugKey(artifactPath), StageJudge, resp.Text, err, time.Now())
		if saveErr != nil {
			logger.Warn("unable to save debug artifact", zap.Error(saveErr))
		}
		err = &ValidationError{Location: location, Cause: err}
		return result, usage, err
	}

	result = Result{
		Passes:      v.Passes,
		PageCount:   info.PageCount,
		Violations:  cleanList(v.Violations),
		Suggestions: cleanList(v.Suggestions),
		Confidence:  clampConfidence(v.Confidence),
	}

	result = enforceFindings(result, report, guidance.MaxPages)

	logger.Info("judged artifact",
		zap.Bool("passes", result.Passes),
		zap.Int("pages", result.PageCount),
		zap.Int("violations", len(result.Violations)),
		zap.Int("confidence", result.Confidence),
	)

	return result, usage, err
}

// enforceFindings overrides the model when a deterministic check says the artifact must fail.
func enforceFindings(result Result, report scorer.Report, maxPages int) (out Result) {
	out = result
	critical := report.Critical()
	if len(critical) == 0 {
		return out
	}

	out.Passes = false

	var missing []string
	for _, f := range critical {
		if !mentioned(out.Violations, f) {
			missing = append(missing, f.Message)
		}
	}
	out.Violations = append(missing, out.Violations...)

	if len(out.Suggestions) == 0 {
		for _, f := range critical {
			out.Suggestions = append(out.Suggestions, suggestionFor(f, maxPages))
		}
	}

	return out
}

func mentioned(violations []string, f scorer.Finding) (ok bool) {
	needle := "page"
	if f.Rule != scorer.RulePageLimit {
		needle = strings.ToLower(f.Section)
	}
	for _, v := range violations {
		if strings.Contains(strings.ToLower(v), needle) {
			ok = true
			return ok
		}
	}
	return ok
}

func suggestionFor(f scorer.Finding, maxPages int) (suggestion string) {
	if f.Rule == scorer.RulePageLimit {
		suggestion = fmt.Sprintf("Condense to %d page(s): cut the oldest roles to one line each and shorten bullets", maxPages)
		return suggestion
	}
	suggestion = fmt.Sprintf("Remove the %s section entirely", f.Section)
	return suggestion
}

func (j *Judge) maxTextChars() (n int) {
	n = j.MaxTextChars
	if n <= 0 {
		n = DefaultMaxTextChars
	}
	return n
}

func clampConfidence(c float64) (clamped int) {
	clamped = int(math.Round(c))
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

// debugKey files judge debug artifacts under the artifact's directory name.
func debugKey(artifactPath string) string {
	return filepath.Base(filepath.Dir(artifactPath))
}

func listOrNone(items []string) (text string) {
	if len(items) == 0 {
		text = "(none)"
		return text
	}
	text = "- " + strings.Join(items, "\n- ")
	return text
}

func buildPrompt(guidance config.SectionRules, info document.Info, report scorer.Report, attempt int, previous []string) (prompt string) {
	truncated := ""
	if info.Truncated {
		truncated = "\n[text truncated]"
	}

	prompt = fmt.Sprintf(`You are a strict resume format validator. Judge ONLY structure, not writing quality.

VALIDATION ATTEMPT: %d

RULES:
- Maximum pages: %d
- Actual pages (measured): %d
- Required sections:
%s
- Forbidden sections:
%s

AUTOMATED CHECKS (may miss headings the text extraction merged):
%s

RESUME TEXT (extracted from the rendered PDF):
%s%s
%s
Fail the resume if the actual page count exceeds the maximum, a required section is missing,
or a forbidden section is present. Each suggestion must be a single concrete edit.

Return ONLY valid JSON in this exact format (no markdown, no commentary):
{
  "passes": false,
  "violations": ["..."],
  "suggestions": ["..."],
  "confidence": 8
}`,
		attempt,
		guidance.MaxPages,
		info.PageCount,
		listOrNone(guidance.RequiredSections),
		listOrNone(guidance.ForbiddenSections),
		listOrNone(report.Messages()),
		info.Text,
		truncated,
		appliedSection(previous),
	)

	return prompt
}

// appliedSection lists suggestions from earlier attempts. Empty on a first validation.
func appliedSection(previous []string) (section string) {
	if len(previous) == 0 {
		return section
	}
	section = fmt.Sprintf(`
SUGGESTIONS ALREADY APPLIED IN EARLIER ATTEMPTS:
%s
Those did not fix the problem. Propose DIFFERENT, more aggressive suggestions.
`, listOrNone(previous))
	return section
}
