// Package pipeline runs the generate, critique, render and judge loop for one job.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nikogura/resume-forge/pkg/config"
	"github.com/nikogura/resume-forge/pkg/generator"
	"github.com/nikogura/resume-forge/pkg/jobs"
	"github.com/nikogura/resume-forge/pkg/judge"
	"github.com/nikogura/resume-forge/pkg/logging"
	"github.com/nikogura/resume-forge/pkg/profile"
	"github.com/nikogura/resume-forge/pkg/provider"
	"github.com/nikogura/resume-forge/pkg/renderer"
	"github.com/nikogura/resume-forge/pkg/store"
)

// DefaultMaxAttempts is the judge loop budget when none is configured.
const DefaultMaxAttempts = 2

// ContentGenerator produces and stores tailored content.
type ContentGenerator interface {
	Generate(ctx context.Context, in generator.Input) (store.TailoredContent, provider.Usage, error)
}

// Reviewer critiques the job's most recent artifact.
type Reviewer interface {
	Critique(ctx context.Context, jobID string) (store.CritiqueRecord, provider.Usage, error)
}

// Validator judges a rendered artifact.
type Validator interface {
	Validate(ctx context.Context, artifactPath string, guidance config.SectionRules, attempt int, previous []string) (judge.Result, provider.Usage, error)
}

// Request selects the job and how to tailor it.
type Request struct {
	JobID       string
	ProfilePath string
	Options     generator.Options
	// RebuildOnly re-renders cached content without any provider call.
	RebuildOnly bool
	// ForceCritique runs the critique even when this is not the first generation.
	ForceCritique bool
	// Force ignores fingerprint hits and always generates.
	Force bool
}

// Result is what a run produced. Passed is only meaningful when Validated is true.
type Result struct {
	ArtifactPath  string
	Passed        bool
	Validated     bool
	Violations    []string
	Changes       []string
	Trail         []Decision
	Usage         provider.Usage
	EstimatedCost float64
}

// Orchestrator wires the stages together.
type Orchestrator struct {
	Jobs      jobs.Repository
	Store     store.Store
	Status    *store.StatusStore
	Critiques *store.CritiqueLog

	Generator ContentGenerator
	Critic    Reviewer
	Judge     Validator
	Renderer  renderer.Renderer

	// Rules returns the judge guidance for an experience format.
	Rules func(format string) config.SectionRules
	// GenerationPricing prices generator calls.
	GenerationPricing provider.Pricing
	// EvaluationPricing prices critic and judge calls.
	EvaluationPricing provider.Pricing

	OutputDir    string
	CompaniesDir string
	MaxRoles     int
	MaxAttempts  int
	Logger       *zap.Logger

	now func() time.Time
}

// Run tailors one job. Judge failures are outcomes reported in the Result. Errors are
// *InputError or *StageError.
func (o *Orchestrator) Run(ctx context.Context, req Request) (result Result, err error) {
	logger := logging.OrNop(o.Logger).With(zap.String(logging.FieldJob, req.JobID))

	session := &Session{}
	defer func() {
		if err != nil {
			o.decide(session, logger, StateFailed, 0, err.Error())
		}
		result.Trail = session.Trail
		result.Usage = session.Usage
		result.EstimatedCost = session.Cost
	}()

	err = o.init(session, req, logger)
	if err != nil {
		return result, err
	}

	var cached *store.TailoredContent
	cached, err = o.firstGenCheck(ctx, session, logger)
	if err != nil {
		return result, err
	}

	if req.RebuildOnly {
		if cached != nil {
			result, err = o.regenFromCache(ctx, session, cached, logger)
			return result, err
		}
		o.decide(session, logger, StateRegenFromCache, 0, "no cached content, generating")
	}

	if req.Force {
		err = o.invalidate(ctx, session, logger)
		if err != nil {
			return result, err
		}
	}

	err = o.generate(ctx, session, req.Force, logger)
	if err != nil {
		return result, err
	}

	if session.FirstGen || req.ForceCritique {
		err = o.critiqueAndImprove(ctx, session, logger)
		if err != nil {
			return result, err
		}
	}

	result, err = o.judgeLoop(ctx, session, logger)
	if err != nil {
		return result, err
	}

	o.decide(session, logger, StateDone, 0, session.Artifact.Path)
	return result, err
}

func (o *Orchestrator) init(session *Session, req Request, logger *zap.Logger) (err error) {
	if !jobs.ValidID(req.JobID) {
		err = &InputError{Kind: "job", Ref: req.JobID, Cause: errors.New("invalid job id")}
		return err
	}

	session.Job, err = o.Jobs.Get(req.JobID)
	if err != nil {
		err = &InputError{Kind: "job", Ref: req.JobID, Cause: err}
		return err
	}

	session.Profile, err = profile.Load(req.ProfilePath)
	if err != nil {
		err = &InputError{Kind: "profile", Ref: req.ProfilePath, Cause: err}
		return err
	}

	session.Options = req.Options.Normalize()
	err = session.Options.Validate()
	if err != nil {
		err = &InputError{Kind: "options", Ref: req.JobID, Cause: err}
		return err
	}

	session.Excerpt = profile.Scope(session.Profile.Content, o.MaxRoles)
	roles := len(profile.Roles(session.Profile.Content))
	kept := len(profile.Roles(session.Excerpt))

	companyContext, ccErr := jobs.CompanyContext(o.CompaniesDir, session.Job)
	if ccErr != nil {
		logger.Warn("ignoring unreadable company context", zap.Error(ccErr))
	}
	session.CompanyContext = companyContext

	if o.Critiques != nil {
		session.Recommendations = o.Critiques.Recommendations(req.JobID)
	}

	o.decide(session, logger, StateInit, 0, fmt.Sprintf("loaded job and profile, kept %d of %d roles", kept, roles))
	return err
}

func (o *Orchestrator) firstGenCheck(ctx context.Context, session *Session, logger *zap.Logger) (cached *store.TailoredContent, err error) {
	status := o.Status.Get(session.Job.ID)

	var lookupErr error
	cached, lookupErr = o.Store.GetMostRecent(ctx, session.Job.ID)
	if lookupErr != nil {
		logger.Warn("content cache unreadable, treating as empty", zap.Error(lookupErr))
		cached = nil
	}

	session.FirstGen = !status.HasArtifact && !status.HasContent && cached == nil

	note := "previously tailored"
	if session.FirstGen {
		note = "first generation"
	}
	o.decide(session, logger, StateFirstGenCheck, 0, note)

	return cached, err
}

func (o *Orchestrator) regenFromCache(ctx context.Context, session *Session, cached *store.TailoredContent, logger *zap.Logger) (result Result, err error) {
	session.Content = cached
	o.decide(session, logger, StateRegenFromCache, 0, "re-rendering record "+cached.RecordID)

	err = o.render(ctx, session, 0, logger)
	if err != nil {
		return result, err
	}

	result = Result{
		ArtifactPath: session.Artifact.Path,
		Changes:      cached.Changes,
	}

	o.decide(session, logger, StateDone, 0, session.Artifact.Path)
	return result, err
}

// invalidate clears every stored record and the last artifact of the job before a forced
// regeneration.
func (o *Orchestrator) invalidate(ctx context.Context, session *Session, logger *zap.Logger) (err error) {
	status := o.Status.Get(session.Job.ID)

	err = o.Store.InvalidateAll(ctx, session.Job.ID)
	if err != nil {
		err = &StageError{Stage: StageStore, Cause: err}
		return err
	}

	if status.LastArtifactPath != "" {
		err = renderer.Remove(renderer.ArtifactFor(status.LastArtifactPath))
		if err != nil {
			err = &StageError{Stage: StageRender, Cause: err}
			return err
		}
	}

	_, err = o.Status.Update(session.Job.ID, func(s *store.SessionStatus) {
		s.HasContent = false
		s.HasArtifact = false
		s.LastArtifactPath = ""
		s.LastFingerprint = ""
	})
	if err != nil {
		err = &StageError{Stage: StageStore, Cause: err}
		return err
	}

	o.decide(session, logger, StateGenerate, 0, "forced: cleared cached content and artifact")
	return err
}

func (o *Orchestrator) generate(ctx context.Context, session *Session, force bool, logger *zap.Logger) (err error) {
	if !force {
		var fp string
		fp, err = generator.Fingerprint(session.Job, session.Profile, session.Options)
		if err != nil {
			err = &StageError{Stage: StageGenerate, Cause: err}
			return err
		}

		hit, lookupErr := o.Store.GetByFingerprint(ctx, session.Job.ID, fp)
		if lookupErr != nil {
			logger.Warn("fingerprint lookup failed, generating", zap.Error(lookupErr))
		}
		if hit != nil {
			session.Content = hit
			o.decide(session, logger, StateGenerate, 0, "reusing record "+hit.RecordID)
			return err
		}
	}

	err = o.runGenerator(ctx, session, 0, nil)
	if err != nil {
		return err
	}

	o.decide(session, logger, StateGenerate, 0, "generated record "+session.Content.RecordID)
	return err
}

func (o *Orchestrator) runGenerator(ctx context.Context, session *Session, attempt int, judgeSuggestions []string) (err error) {
	content, usage, genErr := o.Generator.Generate(ctx, session.input(judgeSuggestions))
	session.charge(usage, o.GenerationPricing)
	if genErr != nil {
		err = &StageError{Stage: StageGenerate, Attempt: attempt, Cause: genErr}
		return err
	}
	session.Content = &content
	return err
}

func (o *Orchestrator) critiqueAndImprove(ctx context.Context, session *Session, logger *zap.Logger) (err error) {
	err = o.render(ctx, session, 0, logger)
	if err != nil {
		return err
	}

	record, usage, critErr := o.Critic.Critique(ctx, session.Job.ID)
	session.charge(usage, o.EvaluationPricing)
	if critErr != nil {
		err = &StageError{Stage: StageCritique, Cause: critErr}
		return err
	}

	if len(record.Recommendations) == 0 {
		o.decide(session, logger, StateCritique, 0, "no recommendations, keeping content")
		return err
	}

	session.Recommendations = store.MergeRecommendations(session.Recommendations, record.Recommendations)

	err = o.supersede(ctx, session, 0)
	if err != nil {
		return err
	}

	err = o.runGenerator(ctx, session, 0, nil)
	if err != nil {
		return err
	}

	o.decide(session, logger, StateCritique, 0, "regenerated with critique recommendations")
	return err
}

func (o *Orchestrator) judgeLoop(ctx context.Context, session *Session, logger *zap.Logger) (result Result, err error) {
	maxAttempts := o.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	rules := config.DefaultRules(session.Options.ExperienceFormat)
	if o.Rules != nil {
		rules = o.Rules(session.Options.ExperienceFormat)
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = o.render(ctx, session, attempt, logger)
		if err != nil {
			return result, err
		}

		verdict, usage, judgeErr := o.Judge.Validate(ctx, session.Artifact.Path, rules, attempt, session.AppliedSuggestions)
		session.charge(usage, o.EvaluationPricing)

		var unavailable *judge.UnavailableError
		if errors.As(judgeErr, &unavailable) {
			logger.Warn("judge unavailable, keeping unvalidated artifact", zap.Error(judgeErr))
			o.decide(session, logger, StateJudgeLoop, attempt, "judge unavailable")
			result = o.result(session, false, false)
			return result, err
		}
		if judgeErr != nil {
			err = &StageError{Stage: StageJudge, Attempt: attempt, Cause: judgeErr}
			return result, err
		}

		if verdict.Passes {
			o.decide(session, logger, StateJudgeLoop, attempt, "passed")
			result = o.result(session, true, true)
			return result, err
		}

		session.Violations = store.MergeRecommendations(session.Violations, verdict.Violations)

		if attempt == maxAttempts {
			o.decide(session, logger, StateJudgeLoop, attempt, "failed, attempt budget exhausted")
			logger.Warn("artifact did not pass validation",
				zap.Int(logging.FieldAttempt, attempt),
				zap.Strings("violations", session.Violations),
			)
			result = o.result(session, false, true)
			return result, err
		}

		o.decide(session, logger, StateJudgeLoop, attempt, "failed: "+strings.Join(verdict.Violations, "; "))

		session.AppliedSuggestions = store.MergeRecommendations(session.AppliedSuggestions, verdict.Suggestions)

		err = o.supersede(ctx, session, attempt)
		if err != nil {
			return result, err
		}

		err = o.runGenerator(ctx, session, attempt+1, session.AppliedSuggestions)
		if err != nil {
			return result, err
		}
	}

	return result, err
}

func (o *Orchestrator) result(session *Session, passed, validated bool) (result Result) {
	result = Result{
		ArtifactPath: session.Artifact.Path,
		Passed:       passed,
		Validated:    validated,
		Changes:      session.Content.Changes,
	}
	if !passed {
		result.Violations = session.Violations
	}
	return result
}

func (o *Orchestrator) render(ctx context.Context, session *Session, attempt int, logger *zap.Logger) (err error) {
	outputPath := o.artifactPath(session.Job.ID, session.Content.RecordID)

	artifact, renderErr := o.Renderer.Render(ctx, session.Content.Body, outputPath)
	if renderErr != nil {
		err = &StageError{Stage: StageRender, Attempt: attempt, Cause: renderErr}
		return err
	}
	session.Artifact = &artifact

	_, err = o.Status.Update(session.Job.ID, func(s *store.SessionStatus) {
		s.HasContent = true
		s.HasArtifact = true
		s.LastArtifactPath = artifact.Path
		s.LastFingerprint = session.Content.Fingerprint
	})
	if err != nil {
		err = &StageError{Stage: StageStore, Attempt: attempt, Cause: err}
		return err
	}

	o.decide(session, logger, StateRender, attempt, artifact.Path)
	return err
}

// supersede deletes the current content and its artifact before a regeneration.
// Read-then-delete: needs a per-job lock if runs for one job ever overlap.
func (o *Orchestrator) supersede(ctx context.Context, session *Session, attempt int) (err error) {
	if session.Content != nil {
		err = o.Store.Delete(ctx, session.Job.ID, session.Content.RecordID)
		if err != nil {
			err = &StageError{Stage: StageStore, Attempt: attempt, Cause: err}
			return err
		}
		session.Content = nil
	}

	if session.Artifact != nil {
		err = renderer.Remove(*session.Artifact)
		if err != nil {
			err = &StageError{Stage: StageRender, Attempt: attempt, Cause: err}
			return err
		}
		session.Artifact = nil
	}

	_, err = o.Status.Update(session.Job.ID, func(s *store.SessionStatus) {
		s.HasContent = false
		s.HasArtifact = false
		s.LastArtifactPath = ""
	})
	if err != nil {
		err = &StageError{Stage: StageStore, Attempt: attempt, Cause: err}
	}
	return err
}

func (o *Orchestrator) artifactPath(jobID, recordID string) string {
	short := recordID
	if len(short) > 8 {
		short = short[:8]
	}
	return filepath.Join(o.OutputDir, jobID, "resume-"+short+".pdf")
}

func (o *Orchestrator) decide(session *Session, logger *zap.Logger, state State, attempt int, note string) {
	d := Decision{State: state, Attempt: attempt, Note: note, At: o.clock()}
	session.Trail = append(session.Trail, d)

	fields := []zap.Field{zap.String(logging.FieldStage, string(state))}
	if attempt > 0 {
		fields = append(fields, zap.Int(logging.FieldAttempt, attempt))
	}
	logger.Info(note, fields...)
}

func (o *Orchestrator) clock() (t time.Time) {
	if o.now != nil {
		t = o.now()
		return t
	}
	t = time.Now().UTC()
	return t
}
