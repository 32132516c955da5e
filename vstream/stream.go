// Package vstream provides a lazy, reusable, pull-based stream built
// on tasks.
//
// A Stream is a value describing a sequence; it holds a pull step that
// is itself a task. Pulling yields one of three outcomes: Emit (an
// element plus the rest of the stream), Skip (no element here, keep
// pulling the rest), or Done. Because the pull step is a lazy,
// re-runnable task and every tail is a fresh Stream value, a Stream
// can be consumed any number of times: each terminal operation derives
// a fresh pull sequence from the original definition. Infinite streams
// are supported; termination comes from combinators such as Take or
// short-circuiting terminals such as Exists.
package vstream

import (
	"context"
	"fmt"

	"github.com/on-the-ground/vtask_go/vtask"
)

// Step is the outcome of one pull. It is a sealed variant: Emit, Skip
// or Done.
type Step[A any] interface {
	step()
}

// Emit carries one element and the rest of the stream.
type Emit[A any] struct {
	Value A
	Tail  Stream[A]
}

// Skip carries no element; pulling continues with Tail. It exists so
// filtering combinators can make progress without recursing.
type Skip[A any] struct {
	Tail Stream[A]
}

// Done marks the end of the stream.
type Done[A any] struct{}

func (Emit[A]) step() {}
func (Skip[A]) step() {}
func (Done[A]) step() {}

// Stream is a lazy pull-based sequence of A.
type Stream[A any] struct {
	pull vtask.Task[Step[A]]
}

func fromPull[A any](pull vtask.Task[Step[A]]) Stream[A] {
	return Stream[A]{pull: pull}
}

// Seed is one step of an unfold: the element to emit and the state to
// continue from.
type Seed[A, S any] struct {
	Value A
	Next  S
}

// Unfold builds a stream by repeatedly running step as a task,
// threading the state through. A nil seed pointer ends the stream.
// This is the canonical constructor for effectful generation such as
// paginated fetches.
func Unfold[S, A any](initial S, step func(S) vtask.Task[*Seed[A, S]]) Stream[A] {
	if step == nil {
		panic("vstream: step must not be nil")
	}
	return fromPull[A](vtask.Of(func(ctx context.Context) (Step[A], error) {
		seed, err := step(initial).Run(ctx)
		if err != nil {
			return nil, err
		}
		if seed == nil {
			return Done[A]{}, nil
		}
		return Emit[A]{Value: seed.Value, Tail: Unfold(seed.Next, step)}, nil
	}))
}

// Empty returns a stream with no elements.
func Empty[A any]() Stream[A] {
	return fromPull[A](vtask.Succeed[Step[A]](Done[A]{}))
}

// Of returns a stream of the given values.
func Of[A any](values ...A) Stream[A] {
	return FromSlice(values)
}

// FromSlice returns a stream over the slice. The slice is not copied;
// it must not be mutated while streams derived from it are consumed.
func FromSlice[A any](list []A) Stream[A] {
	return fromSliceAt(list, 0)
}

func fromSliceAt[A any](list []A, index int) Stream[A] {
	return fromPull[A](vtask.Of(func(context.Context) (Step[A], error) {
		if index >= len(list) {
			return Done[A]{}, nil
		}
		return Emit[A]{Value: list[index], Tail: fromSliceAt(list, index+1)}, nil
	}))
}

// Range returns the integers in [start, end).
func Range(start, end int) Stream[int] {
	return fromPull[int](vtask.Of(func(context.Context) (Step[int], error) {
		if start >= end {
			return Done[int]{}, nil
		}
		return Emit[int]{Value: start, Tail: Range(start+1, end)}, nil
	}))
}

// Iterate returns the infinite stream seed, f(seed), f(f(seed)), ...
func Iterate[A any](seed A, f func(A) A) Stream[A] {
	if f == nil {
		panic("vstream: f must not be nil")
	}
	return fromPull[A](vtask.Of(func(context.Context) (Step[A], error) {
		return Emit[A]{Value: seed, Tail: Iterate(f(seed), f)}, nil
	}))
}

// Generate returns an infinite stream that invokes f once per pull.
func Generate[A any](f func() A) Stream[A] {
	if f == nil {
		panic("vstream: f must not be nil")
	}
	return fromPull[A](vtask.Of(func(context.Context) (Step[A], error) {
		return Emit[A]{Value: f(), Tail: Generate(f)}, nil
	}))
}

// Repeat returns the infinite stream value, value, value, ...
func Repeat[A any](value A) Stream[A] {
	return Generate(func() A { return value })
}

// Fail returns a stream whose first pull fails with err.
func Fail[A any](err error) Stream[A] {
	if err == nil {
		panic("vstream: err must not be nil")
	}
	return fromPull[A](vtask.Fail[Step[A]](err))
}

// Defer builds the stream anew on every traversal. Useful for streams
// that carry per-traversal state.
func Defer[A any](f func() Stream[A]) Stream[A] {
	if f == nil {
		panic("vstream: f must not be nil")
	}
	return fromPull[A](vtask.Of(func(ctx context.Context) (Step[A], error) {
		return f().pull.Run(ctx)
	}))
}

// Concat returns first followed by second.
func Concat[A any](first, second Stream[A]) Stream[A] {
	return first.Concat(second)
}

// nextEmit pulls until it reaches an element or the end, skipping over
// Skip steps. It is the single pull loop shared by terminals and the
// combinators that need look-ahead.
func nextEmit[A any](ctx context.Context, s Stream[A]) (val A, tail Stream[A], ok bool, err error) {
	cur := s
	for {
		st, pullErr := cur.pull.Run(ctx)
		if pullErr != nil {
			err = pullErr
			return
		}
		switch st := st.(type) {
		case Emit[A]:
			return st.Value, st.Tail, true, nil
		case Skip[A]:
			cur = st.Tail
		case Done[A]:
			return
		default:
			// Step is a sealed variant, so this should never happen.
			panic(fmt.Sprintf("vstream: unrecognized step: %T", st))
		}
	}
}
