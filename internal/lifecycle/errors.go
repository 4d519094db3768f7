package lifecycle

import (
	"errors"
	"strings"
)

var (
	ErrAlreadyStarted = errors.New("lifecycle: already started")
	ErrAlreadyStopped = errors.New("lifecycle: already stopped")
	ErrNotRunning     = errors.New("lifecycle: not running")
)

// LifecycleError composes the best-effort failures collected across
// shutdown/reload steps: each step runs regardless of earlier failures
// (§4.1 "each step best-effort, errors logged but not propagated except as
// composite LifecycleError"), grounded on the teacher's app.go step()
// helper and its own composite-error accumulation pattern.
type LifecycleError struct {
	Failures []StepFailure
}

type StepFailure struct {
	Step string
	Err  error
}

func (e *LifecycleError) add(step string, err error) {
	if err == nil {
		return
	}
	e.Failures = append(e.Failures, StepFailure{Step: step, Err: err})
}

func (e *LifecycleError) ErrOrNil() error {
	if e == nil || len(e.Failures) == 0 {
		return nil
	}
	return e
}

func (e *LifecycleError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Step+": "+f.Err.Error())
	}
	return "lifecycle: " + strings.Join(parts, "; ")
}
