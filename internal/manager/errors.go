package manager

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned by Generate before Start has completed.
	ErrNotReady = errors.New("model not loaded")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("manager already started")
)

// phaseError wraps a startup failure with the phase that produced it.
type phaseError struct {
	phase string
	err   error
}

func (e *phaseError) Error() string { return fmt.Sprintf("%s: %v", e.phase, e.err) }
func (e *phaseError) Unwrap() error { return e.err }

// StartupPhase returns the startup phase that failed ("detect", "fetch",
// "load") or "" when err did not come from Start.
func StartupPhase(err error) string {
	var pe *phaseError
	if errors.As(err, &pe) {
		return pe.phase
	}
	return ""
}
