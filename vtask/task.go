package vtask

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Unit is the result type of tasks that are run only for their effect.
type Unit struct{}

// Task is a deferred computation producing a value of type A or an
// error. A Task value is inert: nothing runs until Run, RunSafe or
// RunAsync is called, and each call re-executes the computation.
type Task[A any] struct {
	run func(ctx context.Context) (A, error)
}

// Of lifts an arbitrary, possibly blocking computation into a Task.
// The function is not invoked until the task is run.
func Of[A any](fn func(ctx context.Context) (A, error)) Task[A] {
	if fn == nil {
		panic("vtask: fn must not be nil")
	}
	return Task[A]{run: fn}
}

// Succeed returns a Task that yields value on every run.
func Succeed[A any](value A) Task[A] {
	return Task[A]{run: func(context.Context) (A, error) {
		return value, nil
	}}
}

// Fail returns a Task that fails with err on every run.
func Fail[A any](err error) Task[A] {
	if err == nil {
		panic("vtask: err must not be nil")
	}
	return Task[A]{run: func(context.Context) (A, error) {
		var zero A
		return zero, err
	}}
}

// Exec lifts an effect-only function into a Task[Unit].
func Exec(fn func(ctx context.Context) error) Task[Unit] {
	if fn == nil {
		panic("vtask: fn must not be nil")
	}
	return Task[Unit]{run: func(ctx context.Context) (Unit, error) {
		return Unit{}, fn(ctx)
	}}
}

// Run executes the task synchronously on the calling goroutine and
// returns its value or failure. If ctx is already cancelled the
// computation does not start and the cancellation cause is returned.
func (t Task[A]) Run(ctx context.Context) (A, error) {
	if ctx.Err() != nil {
		var zero A
		return zero, context.Cause(ctx)
	}
	return t.run(ctx)
}

// RunSafe executes the task and captures the outcome in a Try instead
// of returning an error. Panics are not recovered; a broken contract
// still aborts.
func (t Task[A]) RunSafe(ctx context.Context) Try[A] {
	return TryFrom(t.Run(ctx))
}

// RunAsync starts the task on its own goroutine and returns a buffered
// channel that delivers the outcome exactly once.
func (t Task[A]) RunAsync(ctx context.Context) <-chan Try[A] {
	done := make(chan Try[A], 1)
	go func() {
		defer close(done)
		done <- TryFrom(t.Run(ctx))
	}()
	return done
}

// Map returns a Task that runs t and applies f to its value. A failure
// of t short-circuits: f is not invoked and the original error is
// returned unwrapped.
//
// Map is a function rather than a method because Go does not support
// type parameters on methods.
func Map[A, B any](t Task[A], f func(A) B) Task[B] {
	if f == nil {
		panic("vtask: f must not be nil")
	}
	return Task[B]{run: func(ctx context.Context) (B, error) {
		a, err := t.Run(ctx)
		if err != nil {
			var zero B
			return zero, err
		}
		return f(a), nil
	}}
}

// FlatMap returns a Task that runs t, applies f to its value and runs
// the resulting Task, all on the same goroutine. A failure of t
// short-circuits with the original error.
func FlatMap[A, B any](t Task[A], f func(A) Task[B]) Task[B] {
	if f == nil {
		panic("vtask: f must not be nil")
	}
	return Task[B]{run: func(ctx context.Context) (B, error) {
		a, err := t.Run(ctx)
		if err != nil {
			var zero B
			return zero, err
		}
		return f(a).Run(ctx)
	}}
}

// Then sequences t with the task produced by next, discarding t's
// value.
func Then[A, B any](t Task[A], next func() Task[B]) Task[B] {
	if next == nil {
		panic("vtask: next must not be nil")
	}
	return FlatMap(t, func(A) Task[B] { return next() })
}

// Peek runs action on the successful value without changing it.
func (t Task[A]) Peek(action func(A)) Task[A] {
	if action == nil {
		panic("vtask: action must not be nil")
	}
	return Map(t, func(a A) A {
		action(a)
		return a
	})
}

// AsUnit discards the task's value.
func (t Task[A]) AsUnit() Task[Unit] {
	return Map(t, func(A) Unit { return Unit{} })
}

// Recover turns a failure into a value. Cancellation is not a
// recoverable failure: context errors pass through untouched so that a
// cancelled task never reports success.
func (t Task[A]) Recover(f func(error) A) Task[A] {
	if f == nil {
		panic("vtask: f must not be nil")
	}
	return t.RecoverWith(func(err error) Task[A] {
		return Succeed(f(err))
	})
}

// RecoverWith turns a failure into a replacement task. Context errors
// pass through untouched, as with Recover.
func (t Task[A]) RecoverWith(f func(error) Task[A]) Task[A] {
	if f == nil {
		panic("vtask: f must not be nil")
	}
	return Task[A]{run: func(ctx context.Context) (A, error) {
		a, err := t.Run(ctx)
		if err == nil || isCancellation(err) {
			return a, err
		}
		return f(err).Run(ctx)
	}}
}

// MapError transforms the error of a failed task.
func (t Task[A]) MapError(f func(error) error) Task[A] {
	if f == nil {
		panic("vtask: f must not be nil")
	}
	return Task[A]{run: func(ctx context.Context) (A, error) {
		a, err := t.Run(ctx)
		if err != nil {
			return a, f(err)
		}
		return a, nil
	}}
}

// Timeout returns a Task that fails with a context.DeadlineExceeded
// wrapping error if t does not complete within d. The underlying
// computation keeps its goroutine until it observes the cancelled
// context; its late result is discarded.
func (t Task[A]) Timeout(d time.Duration) Task[A] {
	return Task[A]{run: func(parent context.Context) (A, error) {
		ctx, cancel := context.WithTimeout(parent, d)
		defer cancel()

		done := make(chan Try[A], 1)
		go func() {
			done <- TryFrom(t.Run(ctx))
		}()

		select {
		case res := <-done:
			return res.Value, res.Err
		case <-ctx.Done():
			var zero A
			cause := context.Cause(ctx)
			if errors.Is(cause, context.DeadlineExceeded) {
				return zero, fmt.Errorf("vtask: timed out after %v: %w", d, cause)
			}
			// Parent cancellation, not the timer.
			return zero, cause
		}
	}}
}

// MaxAttemptsError reports that a retried task exhausted its attempts.
// It unwraps to the last failure.
type MaxAttemptsError struct {
	Attempts int
	Last     error
}

func (e *MaxAttemptsError) Error() string {
	return fmt.Sprintf("vtask: max attempts reached: %d, %v", e.Attempts, e.Last)
}

func (e *MaxAttemptsError) Unwrap() error { return e.Last }

// Retry re-executes the task until it succeeds, up to attempts runs in
// total. The last failure is surfaced via MaxAttemptsError.
func (t Task[A]) Retry(attempts int) Task[A] {
	return t.RetryIf(attempts, func(error) bool { return true })
}

// RetryIf retries only failures for which retryable returns true.
// Cancellation is never retried.
func (t Task[A]) RetryIf(attempts int, retryable func(error) bool) Task[A] {
	if attempts < 1 {
		panic("vtask: attempts must be positive")
	}
	if retryable == nil {
		panic("vtask: retryable must not be nil")
	}
	return Task[A]{run: func(ctx context.Context) (A, error) {
		var (
			val A
			err error
		)
		for attempt := 1; attempt <= attempts; attempt++ {
			val, err = t.Run(ctx)
			if err == nil {
				return val, nil
			}
			if isCancellation(err) || !retryable(err) {
				return val, err
			}
		}
		var zero A
		return zero, &MaxAttemptsError{Attempts: attempts, Last: err}
	}}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
