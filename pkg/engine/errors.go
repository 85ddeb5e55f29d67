package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced template or request does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition indicates a decision on a wrong level, a
	// terminal request, or an unknown decision kind. Callers must
	// re-fetch current state; the engine never retries.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrUnauthorized indicates the actor lacks the role or delegation
	// required for the active level.
	ErrUnauthorized = errors.New("unauthorized")
)

// TransitionError carries the context of a failed engine operation.
type TransitionError struct {
	Op        string
	RequestID string
	Level     int
	Err       error
}

func (e *TransitionError) Error() string {
	if e.Level > 0 {
		return fmt.Sprintf("%s failed for request %s at level %d: %v", e.Op, e.RequestID, e.Level, e.Err)
	}

	return fmt.Sprintf("%s failed for request %s: %v", e.Op, e.RequestID, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

func (e *TransitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newTransitionError(op, requestID string, level int, err error) *TransitionError {
	return &TransitionError{Op: op, RequestID: requestID, Level: level, Err: err}
}

// IsNotFound checks if an error indicates a missing template or request.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidTransition checks if an error indicates a rejected state change.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsUnauthorized checks if an error indicates a failed actor check.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
