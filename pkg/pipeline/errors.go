package pipeline

import "fmt"

// Stage names used in StageError.
const (
	StageGenerate = "generate"
	StageCritique = "critique"
	StageRender   = "render"
	StageJudge    = "judge"
	StageStore    = "store"
)

// InputError means a job or profile could not be loaded. The run stops before any provider call.
type InputError struct {
	Kind  string
	Ref   string
	Cause error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("cannot load %s %q: %v", e.Kind, e.Ref, e.Cause)
}

func (e *InputError) Unwrap() error { return e.Cause }

// StageError attributes a hard failure to a stage and attempt so callers can retry it.
type StageError struct {
	Stage   string
	Attempt int
	Cause   error
}

func (e *StageError) Error() string {
	if e.Attempt > 0 {
		return fmt.Sprintf("%s failed on attempt %d: %v", e.Stage, e.Attempt, e.Cause)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error { return e.Cause }
