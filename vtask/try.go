package vtask

// Try holds the outcome of a task execution: either a value or an
// error. It is the non-throwing counterpart of a (value, error) pair,
// suitable for sending over channels.
type Try[A any] struct {
	Value A
	Err   error
}

// TryFrom wraps a conventional (value, error) return into a Try.
func TryFrom[A any](value A, err error) Try[A] {
	return Try[A]{Value: value, Err: err}
}

// Success returns a successful Try holding value.
func Success[A any](value A) Try[A] {
	return Try[A]{Value: value}
}

// Failure returns a failed Try holding err.
func Failure[A any](err error) Try[A] {
	return Try[A]{Err: err}
}

func (t Try[A]) IsSuccess() bool { return t.Err == nil }

func (t Try[A]) IsFailure() bool { return t.Err != nil }

// Get returns the outcome as a conventional (value, error) pair.
func (t Try[A]) Get() (A, error) {
	return t.Value, t.Err
}

// OrElse returns the value on success, or fallback on failure.
func (t Try[A]) OrElse(fallback A) A {
	if t.Err != nil {
		return fallback
	}
	return t.Value
}
