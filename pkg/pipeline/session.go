package pipeline

import (
	"fmt"
	"time"

	"github.com/nikogura/resume-forge/pkg/generator"
	"github.com/nikogura/resume-forge/pkg/jobs"
	"github.com/nikogura/resume-forge/pkg/profile"
	"github.com/nikogura/resume-forge/pkg/provider"
	"github.com/nikogura/resume-forge/pkg/renderer"
	"github.com/nikogura/resume-forge/pkg/store"
)

// State is a step of the tailoring state machine.
type State string

const (
	StateInit           State = "INIT"
	StateFirstGenCheck  State = "FIRST_GEN_CHECK"
	StateRegenFromCache State = "REGEN_FROM_CACHE"
	StateGenerate       State = "GENERATE"
	StateCritique       State = "CRITIQUE_AND_IMPROVE"
	StateRender         State = "RENDER"
	StateJudgeLoop      State = "JUDGE_LOOP"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

// Decision records one state transition.
type Decision struct {
	State   State     `json:"state"`
	Attempt int       `json:"attempt,omitempty"`
	Note    string    `json:"note"`
	At      time.Time `json:"at"`
}

func (d Decision) String() string {
	if d.Attempt > 0 {
		return fmt.Sprintf("%s[%d]: %s", d.State, d.Attempt, d.Note)
	}
	return fmt.Sprintf("%s: %s", d.State, d.Note)
}

// Session carries everything one Run knows about its job. It lives for a single Run and is
// never shared between runs.
type Session struct {
	Job            jobs.JobRecord
	Profile        profile.SourceProfile
	Excerpt        string
	CompanyContext string
	Options        generator.Options

	// Recommendations accumulate from critiques, deduplicated.
	Recommendations []string
	// AppliedSuggestions are judge suggestions already fed back to the generator.
	AppliedSuggestions []string

	Content    *store.TailoredContent
	Artifact   *renderer.Artifact
	FirstGen   bool
	Violations []string
	Usage      provider.Usage
	// Cost is priced per call, at the rates of the model that served it.
	Cost  float64
	Trail []Decision
}

func (s *Session) charge(usage provider.Usage, pricing provider.Pricing) {
	s.Usage = s.Usage.Add(usage)
	s.Cost += pricing.Cost(usage)
}

func (s *Session) input(judgeSuggestions []string) (in generator.Input) {
	in = generator.Input{
		Job:              s.Job,
		Profile:          s.Profile,
		Excerpt:          s.Excerpt,
		Options:          s.Options,
		Recommendations:  s.Recommendations,
		CompanyContext:   s.CompanyContext,
		JudgeSuggestions: judgeSuggestions,
	}
	return in
}
