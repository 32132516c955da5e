// Package resource implements the acquire/use/release bracket over
// tasks.
//
// A Resource describes how to acquire a value and how to give it back.
// Nothing is acquired until the task returned by Use is run; the
// release step is then guaranteed to run exactly once per successful
// acquisition — on success, on failure, on panic, and on cancellation
// of the surrounding task. Composed resources release in the exact
// reverse order of acquisition, like a stack of deferred cleanups.
package resource

import (
	"context"
	"io"

	"go.uber.org/multierr"

	"github.com/on-the-ground/vtask_go/vtask"
)

// ReleaseError wraps a failure of a release step so callers can tell
// it apart from the primary outcome it may be combined with.
type ReleaseError struct {
	Err error
}

func (e *ReleaseError) Error() string {
	return "resource: release failed: " + e.Err.Error()
}

func (e *ReleaseError) Unwrap() error { return e.Err }

// finalizers is the LIFO stack of cleanup actions accumulated while a
// composed resource acquires its parts.
type finalizers struct {
	fns []func(context.Context) error
}

func (f *finalizers) push(fn func(context.Context) error) {
	f.fns = append(f.fns, fn)
}

// runAll pops and runs every cleanup in reverse push order. It keeps
// going past failures and returns them combined, each wrapped in a
// ReleaseError.
func (f *finalizers) runAll(ctx context.Context) error {
	var err error
	for i := len(f.fns) - 1; i >= 0; i-- {
		if relErr := f.fns[i](ctx); relErr != nil {
			err = multierr.Append(err, &ReleaseError{Err: relErr})
		}
	}
	return err
}

// Resource holds an acquisition step and the cleanup stack it builds.
// Resource values are immutable; composition returns new values.
type Resource[A any] struct {
	acquire func(ctx context.Context) (A, *finalizers, error)
}

// Make builds a Resource from an acquisition task and a release
// function. Release is called with the acquired value exactly once per
// successful acquisition.
func Make[A any](acquire vtask.Task[A], release func(ctx context.Context, a A) error) Resource[A] {
	if release == nil {
		panic("resource: release must not be nil")
	}
	return Resource[A]{acquire: func(ctx context.Context) (A, *finalizers, error) {
		a, err := acquire.Run(ctx)
		if err != nil {
			var zero A
			return zero, nil, err
		}
		fin := &finalizers{}
		fin.push(func(ctx context.Context) error {
			return release(ctx, a)
		})
		return a, fin, nil
	}}
}

// FromCloser builds a Resource whose release calls Close. A failing
// Close is surfaced like any other release failure, not swallowed.
func FromCloser[A io.Closer](acquire vtask.Task[A]) Resource[A] {
	return Make(acquire, func(_ context.Context, a A) error {
		return a.Close()
	})
}

// Pure wraps a plain value as a Resource with a no-op release. It is
// the identity element of resource composition.
func Pure[A any](value A) Resource[A] {
	return Resource[A]{acquire: func(context.Context) (A, *finalizers, error) {
		return value, &finalizers{}, nil
	}}
}

// Use acquires the resource, applies f, and releases.
//
// If acquisition fails, f and release are never invoked and the
// acquisition failure propagates. Otherwise release runs exactly once
// after f's task finishes, whatever the outcome; it runs detached from
// cancellation so a cancelled task still cleans up. A release failure
// is never dropped: it is combined with the primary failure, or
// becomes the result when the primary computation succeeded.
func Use[A, B any](r Resource[A], f func(A) vtask.Task[B]) vtask.Task[B] {
	if f == nil {
		panic("resource: f must not be nil")
	}
	return vtask.Of(func(ctx context.Context) (val B, err error) {
		a, fin, acqErr := r.acquire(ctx)
		if acqErr != nil {
			var zero B
			return zero, acqErr
		}
		defer func() {
			if relErr := fin.runAll(context.WithoutCancel(ctx)); relErr != nil {
				err = multierr.Append(err, relErr)
				var zero B
				val = zero
			}
		}()
		return f(a).Run(ctx)
	})
}

// UseSync is Use for a plain, non-task function.
func UseSync[A, B any](r Resource[A], f func(A) B) vtask.Task[B] {
	if f == nil {
		panic("resource: f must not be nil")
	}
	return Use(r, func(a A) vtask.Task[B] {
		return vtask.Succeed(f(a))
	})
}

// FlatMap chains a dependent resource: B is acquired from A's value,
// and released before A. If acquiring B fails, A is released
// immediately and any release failure rides along with the acquisition
// error.
func FlatMap[A, B any](r Resource[A], f func(A) Resource[B]) Resource[B] {
	if f == nil {
		panic("resource: f must not be nil")
	}
	return Resource[B]{acquire: func(ctx context.Context) (B, *finalizers, error) {
		var zero B
		a, finA, err := r.acquire(ctx)
		if err != nil {
			return zero, nil, err
		}
		b, finB, err := f(a).acquire(ctx)
		if err != nil {
			if relErr := finA.runAll(context.WithoutCancel(ctx)); relErr != nil {
				err = multierr.Append(err, relErr)
			}
			return zero, nil, err
		}
		// B's cleanups sit above A's on the stack, so release order
		// is B then A.
		combined := &finalizers{fns: append(append([]func(context.Context) error{}, finA.fns...), finB.fns...)}
		return b, combined, nil
	}}
}

// MapR transforms the resource value; the original release still runs
// on the original value.
func MapR[A, B any](r Resource[A], f func(A) B) Resource[B] {
	if f == nil {
		panic("resource: f must not be nil")
	}
	return FlatMap(r, func(a A) Resource[B] {
		return Pure(f(a))
	})
}

// Pair is the value of two independently combined resources.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Triple is the value of three independently combined resources.
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

// And combines two independent resources. Acquisition order is ra then
// rb; release order is the exact reverse, even though the resources do
// not depend on each other.
func And[A, B any](ra Resource[A], rb Resource[B]) Resource[Pair[A, B]] {
	return FlatMap(ra, func(a A) Resource[Pair[A, B]] {
		return MapR(rb, func(b B) Pair[A, B] {
			return Pair[A, B]{First: a, Second: b}
		})
	})
}

// Zip3 combines three independent resources; release order is third,
// second, first.
func Zip3[A, B, C any](ra Resource[A], rb Resource[B], rc Resource[C]) Resource[Triple[A, B, C]] {
	return FlatMap(And(ra, rb), func(ab Pair[A, B]) Resource[Triple[A, B, C]] {
		return MapR(rc, func(c C) Triple[A, B, C] {
			return Triple[A, B, C]{First: ab.First, Second: ab.Second, Third: c}
		})
	})
}

// WithFinalizer schedules fn to run after the resource's release, even
// when release fails.
func (r Resource[A]) WithFinalizer(fn func(ctx context.Context) error) Resource[A] {
	if fn == nil {
		panic("resource: fn must not be nil")
	}
	return Resource[A]{acquire: func(ctx context.Context) (A, *finalizers, error) {
		a, fin, err := r.acquire(ctx)
		if err != nil {
			return a, nil, err
		}
		// The finalizer goes to the bottom of the stack so it pops last.
		combined := &finalizers{}
		combined.push(fn)
		combined.fns = append(combined.fns, fin.fns...)
		return a, combined, nil
	}}
}
