package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a missing row or cache entry.
var ErrNotFound = errors.New("not found")

// CollaboratorError wraps an I/O failure talking to a collaborator. It is
// fatal for the wallet being computed: the engine aborts and returns it
// instead of a partial P&L.
type CollaboratorError struct {
	Op  string // e.g. "resolve tokens", "get mark prices"
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator failure: %s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// CollaboratorFailure wraps err as a CollaboratorError, or returns nil when
// err is nil.
func CollaboratorFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Op: op, Err: err}
}

// InvariantError reports a programmer error: a state that clamping and
// attribution bounds make unreachable. It must surface loudly, never be
// swallowed into quality counters.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "invariant violation: " + e.Msg
}

// Invariantf builds an InvariantError with a formatted message.
func Invariantf(format string, args ...any) error {
	return &InvariantError{Msg: fmt.Sprintf(format, args...)}
}
