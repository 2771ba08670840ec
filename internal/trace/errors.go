package trace

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEvents is returned for a trace without events.
	ErrNoEvents = errors.New("trace has no events")

	// ErrInvalidEvent is wrapped by every per-event validation error.
	ErrInvalidEvent = errors.New("invalid trace event")
)

// EventError reports a problem with one event of a trace.
type EventError struct {
	// Index is the zero-based position of the event in the trace.
	Index int
	Err   error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("event %d: %v", e.Index, e.Err)
}

func (e *EventError) Unwrap() error {
	return e.Err
}

func eventErrorf(index int, format string, args ...any) error {
	return &EventError{
		Index: index,
		Err:   fmt.Errorf("%w: "+format, append([]any{ErrInvalidEvent}, args...)...),
	}
}
