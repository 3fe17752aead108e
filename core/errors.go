package core

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by queue operations. Callers test with
// errors.Is; the returned error wraps the sentinel together with the
// offending task ID.
var (
	// ErrUnknownTask marks a contract violation: a report or cancel
	// referenced an ID the queue is not tracking (never enqueued,
	// already terminal, or not the running task). Queue state is
	// untouched when this is returned.
	ErrUnknownTask = errors.New("task not tracked by queue")

	// ErrQueueStopped is returned by Enqueue after Stop.
	ErrQueueStopped = errors.New("queue stopped")
)

// ValidationError reports a synchronously rejected enqueue. Nothing is
// queued and no event is emitted when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task: %s %s", e.Field, e.Reason)
}

func validationErr(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
