package effect

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned when a procedure is natively asynchronous:
	// it returned a future instead of a step sequence. Only yielded effects
	// may be asynchronous.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrStopped is returned from Yielder.Yield once the interpreter has
	// abandoned the routine. The routine body should return promptly.
	ErrStopped = errors.New("routine stopped")

	// ErrLoopClosed is returned when a continuation cannot be scheduled
	// because the loop has shut down.
	ErrLoopClosed = errors.New("loop closed")
)

// PanicError wraps a panic raised by a procedure or step sequence.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("procedure panicked: %v", e.Value)
}
