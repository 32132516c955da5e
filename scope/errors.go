package scope

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

// ErrNoTasks is returned when AnySucceed or FirstComplete is joined
// with nothing forked: there is no task to select a winner from.
var ErrNoTasks = errors.New("scope: no forked task to select")

// ErrSuperseded is the cancellation cause delivered to the losing
// siblings once a joiner has picked its outcome. It wraps
// context.Canceled so the losers still observe ordinary cancellation.
var ErrSuperseded = fmt.Errorf("scope: superseded by sibling outcome: %w", context.Canceled)

// PanicError wraps a panic recovered from a forked task, together with
// the stack captured at the point of the panic. Containing the panic as
// an error keeps a broken sibling inside the joiner's aggregation
// instead of tearing down the process before cancellation propagates.
type PanicError struct {
	// Value is the original value passed to panic().
	Value any

	// Stack is the goroutine stack trace at the point of panic.
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("scope: task panicked: %v\n\n%s", e.Value, e.Stack)
}

func newPanicError(v any) *PanicError {
	// runtime.Stack truncates gracefully if the buffer is too small.
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{
		Value: v,
		Stack: string(buf[:n]),
	}
}
