package accelerator

import (
	"errors"
	"fmt"
)

// StageError reports the step that failed during an encryption session.
// Stage is the state the session was trying to reach; the session itself
// stays in the state before it.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Stage.Action(), e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StateError indicates a step was called in the wrong state or on a session
// that already failed.
type StateError struct {
	// Op is the step that was attempted
	Op string

	// State is the state the session is in
	State State

	// Required is the state Op needs; unused when Halted is set
	Required State

	// Halted reports whether an earlier step failed
	Halted bool
}

func (e *StateError) Error() string {
	if e.Halted {
		return fmt.Sprintf("%s: session halted in state %s", e.Op, e.State)
	}
	return fmt.Sprintf("%s: requires state %s, session is in %s", e.Op, e.Required, e.State)
}

// IsStageError reports whether err is or wraps a *StageError.
func IsStageError(err error) bool {
	var se *StageError
	return errors.As(err, &se)
}

// IsStateError reports whether err is or wraps a *StateError.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// FailedStage returns the stage of a wrapped *StageError.
func FailedStage(err error) (State, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return Idle, false
}
