package common

import (
	"errors"
	"fmt"
)

// ErrComponentLocked is returned when a locked or required component is toggled.
var ErrComponentLocked = errors.New("component is locked")

// ErrUserCancelled is returned when the user aborts an interactive step.
var ErrUserCancelled = errors.New("cancelled by user")

// PermissionError reports that the installer could not write to a path.
type PermissionError struct {
	Path string
	Err  error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("cannot write %s: %v", e.Path, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// AbortError is the user-facing failure of an install that has been rolled back.
type AbortError struct {
	// Stage names the step that failed ("download" or "extraction").
	Stage string
	Cause error
	// RollbackErr holds cleanup problems hit while rolling back, if any.
	RollbackErr error
}

func (e *AbortError) Error() string {
	msg := fmt.Sprintf("%s failed, installation was rolled back: %v", e.Stage, e.Cause)
	if e.RollbackErr != nil {
		msg += fmt.Sprintf(" (rollback incomplete: %v)", e.RollbackErr)
	}
	return msg
}

func (e *AbortError) Unwrap() []error {
	if e.RollbackErr != nil {
		return []error{e.Cause, e.RollbackErr}
	}
	return []error{e.Cause}
}
