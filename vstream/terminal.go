package vstream

import (
	"context"

	"github.com/on-the-ground/vtask_go/vtask"
)

// ToList collects every element into a slice. The returned task is
// lazy: each run traverses the stream afresh.
func (s Stream[A]) ToList() vtask.Task[[]A] {
	return vtask.Of(func(ctx context.Context) ([]A, error) {
		var out []A
		cur := s
		for {
			v, tail, ok, err := nextEmit(ctx, cur)
			if err != nil {
				return nil, err
			}
			if !ok {
				return out, nil
			}
			out = append(out, v)
			cur = tail
		}
	})
}

// Fold reduces the stream with op, starting from identity.
func (s Stream[A]) Fold(identity A, op func(A, A) A) vtask.Task[A] {
	if op == nil {
		panic("vstream: op must not be nil")
	}
	return FoldLeft(s, identity, op)
}

// FoldLeft reduces the stream left to right into an accumulator of a
// different type.
func FoldLeft[A, B any](s Stream[A], initial B, f func(B, A) B) vtask.Task[B] {
	if f == nil {
		panic("vstream: f must not be nil")
	}
	return vtask.Of(func(ctx context.Context) (B, error) {
		acc := initial
		cur := s
		for {
			v, tail, ok, err := nextEmit(ctx, cur)
			if err != nil {
				var zero B
				return zero, err
			}
			if !ok {
				return acc, nil
			}
			acc = f(acc, v)
			cur = tail
		}
	})
}

// Count drains the stream and reports how many elements it emitted.
func (s Stream[A]) Count() vtask.Task[int] {
	return FoldLeft(s, 0, func(n int, _ A) int { return n + 1 })
}

// Exists reports whether some element satisfies pred, short-circuiting
// on the first hit.
func (s Stream[A]) Exists(pred func(A) bool) vtask.Task[bool] {
	if pred == nil {
		panic("vstream: pred must not be nil")
	}
	return vtask.Of(func(ctx context.Context) (bool, error) {
		cur := s
		for {
			v, tail, ok, err := nextEmit(ctx, cur)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
			if pred(v) {
				return true, nil
			}
			cur = tail
		}
	})
}

// ForAll reports whether every element satisfies pred,
// short-circuiting on the first miss.
func (s Stream[A]) ForAll(pred func(A) bool) vtask.Task[bool] {
	if pred == nil {
		panic("vstream: pred must not be nil")
	}
	return vtask.Of(func(ctx context.Context) (bool, error) {
		cur := s
		for {
			v, tail, ok, err := nextEmit(ctx, cur)
			if err != nil {
				return false, err
			}
			if !ok {
				return true, nil
			}
			if !pred(v) {
				return false, nil
			}
			cur = tail
		}
	})
}

// Find returns a pointer to the first element satisfying pred, or nil
// when none does. It short-circuits like Exists.
func (s Stream[A]) Find(pred func(A) bool) vtask.Task[*A] {
	if pred == nil {
		panic("vstream: pred must not be nil")
	}
	return vtask.Of(func(ctx context.Context) (*A, error) {
		cur := s
		for {
			v, tail, ok, err := nextEmit(ctx, cur)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			if pred(v) {
				return &v, nil
			}
			cur = tail
		}
	})
}

// Head returns a pointer to the first element, or nil for an empty
// stream.
func (s Stream[A]) Head() vtask.Task[*A] {
	return s.Find(func(A) bool { return true })
}

// ForEach runs action on every element.
func (s Stream[A]) ForEach(action func(A)) vtask.Task[vtask.Unit] {
	if action == nil {
		panic("vstream: action must not be nil")
	}
	return FoldLeft(s, vtask.Unit{}, func(u vtask.Unit, a A) vtask.Unit {
		action(a)
		return u
	})
}

// Drain consumes the stream for its effects, discarding the elements.
func (s Stream[A]) Drain() vtask.Task[vtask.Unit] {
	return s.ForEach(func(A) {})
}
