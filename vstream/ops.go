package vstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/on-the-ground/vtask_go/vtask"
)

// Map transforms every element. Like the task combinators, Map is a
// function because Go methods cannot introduce type parameters.
func Map[A, B any](s Stream[A], f func(A) B) Stream[B] {
	if f == nil {
		panic("vstream: f must not be nil")
	}
	return fromPull[B](vtask.Of(func(ctx context.Context) (Step[B], error) {
		st, err := s.pull.Run(ctx)
		if err != nil {
			return nil, err
		}
		switch st := st.(type) {
		case Emit[A]:
			return Emit[B]{Value: f(st.Value), Tail: Map(st.Tail, f)}, nil
		case Skip[A]:
			return Skip[B]{Tail: Map(st.Tail, f)}, nil
		case Done[A]:
			return Done[B]{}, nil
		default:
			panic(fmt.Sprintf("vstream: unrecognized step: %T", st))
		}
	}))
}

// MapTask transforms every element through a task, running it as part
// of the pull.
func MapTask[A, B any](s Stream[A], f func(A) vtask.Task[B]) Stream[B] {
	if f == nil {
		panic("vstream: f must not be nil")
	}
	return fromPull[B](vtask.Of(func(ctx context.Context) (Step[B], error) {
		st, err := s.pull.Run(ctx)
		if err != nil {
			return nil, err
		}
		switch st := st.(type) {
		case Emit[A]:
			b, err := f(st.Value).Run(ctx)
			if err != nil {
				return nil, err
			}
			return Emit[B]{Value: b, Tail: MapTask(st.Tail, f)}, nil
		case Skip[A]:
			return Skip[B]{Tail: MapTask(st.Tail, f)}, nil
		case Done[A]:
			return Done[B]{}, nil
		default:
			panic(fmt.Sprintf("vstream: unrecognized step: %T", st))
		}
	}))
}

// FlatMap replaces every element with a whole stream, emitting its
// elements before moving on.
func FlatMap[A, B any](s Stream[A], f func(A) Stream[B]) Stream[B] {
	if f == nil {
		panic("vstream: f must not be nil")
	}
	return fromPull[B](vtask.Of(func(ctx context.Context) (Step[B], error) {
		st, err := s.pull.Run(ctx)
		if err != nil {
			return nil, err
		}
		switch st := st.(type) {
		case Emit[A]:
			return Skip[B]{Tail: f(st.Value).Concat(FlatMap(st.Tail, f))}, nil
		case Skip[A]:
			return Skip[B]{Tail: FlatMap(st.Tail, f)}, nil
		case Done[A]:
			return Done[B]{}, nil
		default:
			panic(fmt.Sprintf("vstream: unrecognized step: %T", st))
		}
	}))
}

// Filter keeps only the elements for which pred holds.
func (s Stream[A]) Filter(pred func(A) bool) Stream[A] {
	if pred == nil {
		panic("vstream: pred must not be nil")
	}
	return fromPull[A](vtask.Of(func(ctx context.Context) (Step[A], error) {
		st, err := s.pull.Run(ctx)
		if err != nil {
			return nil, err
		}
		switch st := st.(type) {
		case Emit[A]:
			if pred(st.Value) {
				return Emit[A]{Value: st.Value, Tail: st.Tail.Filter(pred)}, nil
			}
			return Skip[A]{Tail: st.Tail.Filter(pred)}, nil
		case Skip[A]:
			return Skip[A]{Tail: st.Tail.Filter(pred)}, nil
		case Done[A]:
			return st, nil
		default:
			panic(fmt.Sprintf("vstream: unrecognized step: %T", st))
		}
	}))
}

// Take limits the stream to its first n elements.
func (s Stream[A]) Take(n int) Stream[A] {
	return fromPull[A](vtask.Of(func(ctx context.Context) (Step[A], error) {
		if n <= 0 {
			return Done[A]{}, nil
		}
		st, err := s.pull.Run(ctx)
		if err != nil {
			return nil, err
		}
		switch st := st.(type) {
		case Emit[A]:
			return Emit[A]{Value: st.Value, Tail: st.Tail.Take(n - 1)}, nil
		case Skip[A]:
			return Skip[A]{Tail: st.Tail.Take(n)}, nil
		case Done[A]:
			return st, nil
		default:
			panic(fmt.Sprintf("vstream: unrecognized step: %T", st))
		}
	}))
}

// TakeWhile keeps elements until pred first fails.
func (s Stream[A]) TakeWhile(pred func(A) bool) Stream[A] {
	if pred == nil {
		panic("vstream: pred must not be nil")
	}
	return fromPull[A](vtask.Of(func(ctx context.Context) (Step[A], error) {
		st, err := s.pull.Run(ctx)
		if err != nil {
			return nil, err
		}
		switch st := st.(type) {
		case Emit[A]:
			if !pred(st.Value) {
				return Done[A]{}, nil
			}
			return Emit[A]{Value: st.Value, Tail: st.Tail.TakeWhile(pred)}, nil
		case Skip[A]:
			return Skip[A]{Tail: st.Tail.TakeWhile(pred)}, nil
		case Done[A]:
			return st, nil
		default:
			panic(fmt.Sprintf("vstream: unrecognized step: %T", st))
		}
	}))
}

// Drop discards the first n elements.
func (s Stream[A]) Drop(n int) Stream[A] {
	return fromPull[A](vtask.Of(func(ctx context.Context) (Step[A], error) {
		st, err := s.pull.Run(ctx)
		if err != nil {
			return nil, err
		}
		switch st := st.(type) {
		case Emit[A]:
			if n > 0 {
				return Skip[A]{Tail: st.Tail.Drop(n - 1)}, nil
			}
			return st, nil
		case Skip[A]:
			return Skip[A]{Tail: st.Tail.Drop(n)}, nil
		case Done[A]:
			return st, nil
		default:
			panic(fmt.Sprintf("vstream: unrecognized step: %T", st))
		}
	}))
}

// DropWhile discards elements until pred first fails.
func (s Stream[A]) DropWhile(pred func(A) bool) Stream[A] {
	if pred == nil {
		panic("vstream: pred must not be nil")
	}
	return fromPull[A](vtask.Of(func(ctx context.Context) (Step[A], error) {
		st, err := s.pull.Run(ctx)
		if err != nil {
			return nil, err
		}
		switch st := st.(type) {
		case Emit[A]:
			if pred(st.Value) {
				return Skip[A]{Tail: st.Tail.DropWhile(pred)}, nil
			}
			return st, nil
		case Skip[A]:
			return Skip[A]{Tail: st.Tail.DropWhile(pred)}, nil
		case Done[A]:
			return st, nil
		default:
			panic(fmt.Sprintf("vstream: unrecognized step: %T", st))
		}
	}))
}

// Concat returns s followed by other.
func (s Stream[A]) Concat(other Stream[A]) Stream[A] {
	return fromPull[A](vtask.Of(func(ctx context.Context) (Step[A], error) {
		st, err := s.pull.Run(ctx)
		if err != nil {
			return nil, err
		}
		switch st := st.(type) {
		case Emit[A]:
			return Emit[A]{Value: st.Value, Tail: st.Tail.Concat(other)}, nil
		case Skip[A]:
			return Skip[A]{Tail: st.Tail.Concat(other)}, nil
		case Done[A]:
			return other.pull.Run(ctx)
		default:
			panic(fmt.Sprintf("vstream: unrecognized step: %T", st))
		}
	}))
}

// Prepend puts value in front of the stream.
func (s Stream[A]) Prepend(value A) Stream[A] {
	return Of(value).Concat(s)
}

// Append puts value behind the stream.
func (s Stream[A]) Append(value A) Stream[A] {
	return s.Concat(Of(value))
}

// Peek runs action on every emitted element without changing it.
func (s Stream[A]) Peek(action func(A)) Stream[A] {
	if action == nil {
		panic("vstream: action must not be nil")
	}
	return fromPull[A](vtask.Of(func(ctx context.Context) (Step[A], error) {
		st, err := s.pull.Run(ctx)
		if err != nil {
			return nil, err
		}
		switch st := st.(type) {
		case Emit[A]:
			action(st.Value)
			return Emit[A]{Value: st.Value, Tail: st.Tail.Peek(action)}, nil
		case Skip[A]:
			return Skip[A]{Tail: st.Tail.Peek(action)}, nil
		case Done[A]:
			return st, nil
		default:
			panic(fmt.Sprintf("vstream: unrecognized step: %T", st))
		}
	}))
}

// Distinct drops elements already seen earlier in the traversal. The
// seen-set is rebuilt on every traversal, so the stream stays
// reusable.
func Distinct[A comparable](s Stream[A]) Stream[A] {
	return Defer(func() Stream[A] {
		seen := make(map[A]struct{})
		return s.Filter(func(a A) bool {
			if _, dup := seen[a]; dup {
				return false
			}
			seen[a] = struct{}{}
			return true
		})
	})
}

// DistinctBy drops elements whose key hash was already seen in the
// traversal. Deduplication is by 64-bit hash of the key, which is
// cheap but admits hash collisions; use Distinct for exact semantics
// on comparable elements.
func DistinctBy[A any](s Stream[A], key func(A) string) Stream[A] {
	if key == nil {
		panic("vstream: key must not be nil")
	}
	return Defer(func() Stream[A] {
		seen := make(map[uint64]struct{})
		return s.Filter(func(a A) bool {
			sum := xxhash.Sum64String(key(a))
			if _, dup := seen[sum]; dup {
				return false
			}
			seen[sum] = struct{}{}
			return true
		})
	})
}

// ZipWith pairs the two streams element-wise through combine, ending
// when either side ends.
func ZipWith[A, B, C any](sa Stream[A], sb Stream[B], combine func(A, B) C) Stream[C] {
	if combine == nil {
		panic("vstream: combine must not be nil")
	}
	return fromPull[C](vtask.Of(func(ctx context.Context) (Step[C], error) {
		a, tailA, ok, err := nextEmit(ctx, sa)
		if err != nil {
			return nil, err
		}
		if !ok {
			return Done[C]{}, nil
		}
		b, tailB, ok, err := nextEmit(ctx, sb)
		if err != nil {
			return nil, err
		}
		if !ok {
			return Done[C]{}, nil
		}
		return Emit[C]{Value: combine(a, b), Tail: ZipWith(tailA, tailB, combine)}, nil
	}))
}

// Zipped is the element type produced by Zip.
type Zipped[A, B any] struct {
	First  A
	Second B
}

// Zip pairs the two streams element-wise, ending when either side ends.
func Zip[A, B any](sa Stream[A], sb Stream[B]) Stream[Zipped[A, B]] {
	return ZipWith(sa, sb, func(a A, b B) Zipped[A, B] {
		return Zipped[A, B]{First: a, Second: b}
	})
}

// Recover substitutes a final element for a failure at the point in
// the pull sequence where it occurs. Cancellation passes through
// untouched.
func (s Stream[A]) Recover(f func(error) A) Stream[A] {
	if f == nil {
		panic("vstream: f must not be nil")
	}
	return s.RecoverWith(func(err error) Stream[A] {
		return Of(f(err))
	})
}

// RecoverWith continues with a replacement stream from the point of
// failure. Cancellation passes through untouched.
func (s Stream[A]) RecoverWith(f func(error) Stream[A]) Stream[A] {
	if f == nil {
		panic("vstream: f must not be nil")
	}
	return fromPull[A](vtask.Of(func(ctx context.Context) (Step[A], error) {
		st, err := s.pull.Run(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return Skip[A]{Tail: f(err)}, nil
		}
		switch st := st.(type) {
		case Emit[A]:
			return Emit[A]{Value: st.Value, Tail: st.Tail.RecoverWith(f)}, nil
		case Skip[A]:
			return Skip[A]{Tail: st.Tail.RecoverWith(f)}, nil
		case Done[A]:
			return st, nil
		default:
			panic(fmt.Sprintf("vstream: unrecognized step: %T", st))
		}
	}))
}

// MapError transforms a pull failure.
func (s Stream[A]) MapError(f func(error) error) Stream[A] {
	if f == nil {
		panic("vstream: f must not be nil")
	}
	return fromPull[A](vtask.Of(func(ctx context.Context) (Step[A], error) {
		st, err := s.pull.Run(ctx)
		if err != nil {
			return nil, f(err)
		}
		switch st := st.(type) {
		case Emit[A]:
			return Emit[A]{Value: st.Value, Tail: st.Tail.MapError(f)}, nil
		case Skip[A]:
			return Skip[A]{Tail: st.Tail.MapError(f)}, nil
		case Done[A]:
			return st, nil
		default:
			panic(fmt.Sprintf("vstream: unrecognized step: %T", st))
		}
	}))
}
