package scope

import (
	"context"

	"go.uber.org/multierr"
)

// joinKind is the closed set of joining strategies. Each strategy
// carries only the data it needs; Accumulating additionally holds the
// caller's error mapper on the Scope itself.
type joinKind uint8

const (
	joinAllSucceed joinKind = iota
	joinAnySucceed
	joinFirstComplete
	joinAccumulating
)

func (k joinKind) String() string {
	switch k {
	case joinAllSucceed:
		return "all_succeed"
	case joinAnySucceed:
		return "any_succeed"
	case joinFirstComplete:
		return "first_complete"
	case joinAccumulating:
		return "accumulating"
	default:
		return "unknown"
	}
}

// outcome is one forked task's terminal result, tagged with its fork
// index so order-preserving joiners can rebuild fork order regardless
// of completion order.
type outcome[A any] struct {
	idx  int
	name string
	val  A
	err  error
}

// joinAll waits for every task. The first observed failure cancels the
// siblings and becomes the scope's failure; otherwise the values are
// returned in fork order.
func joinAll[A any](
	ctx context.Context,
	cancel context.CancelCauseFunc,
	n int,
	outcomes <-chan outcome[A],
) ([]A, error) {
	vals := make([]A, n)
	var firstErr error

	for remaining := n; remaining > 0; remaining-- {
		select {
		case o := <-outcomes:
			switch {
			case o.err == nil:
				vals[o.idx] = o.val
			case firstErr == nil:
				firstErr = o.err
				cancel(firstErr)
			}
		case <-ctx.Done():
			if firstErr != nil {
				return nil, firstErr
			}
			return nil, context.Cause(ctx)
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return vals, nil
}

// joinAny waits for the first success, cancelling the rest. If every
// task fails, the collected failures are aggregated in fork order.
func joinAny[A any](
	ctx context.Context,
	cancel context.CancelCauseFunc,
	n int,
	outcomes <-chan outcome[A],
) (A, error) {
	var zero A
	errs := make([]error, n)

	for remaining := n; remaining > 0; remaining-- {
		select {
		case o := <-outcomes:
			if o.err == nil {
				cancel(ErrSuperseded)
				return o.val, nil
			}
			errs[o.idx] = o.err
		case <-ctx.Done():
			return zero, context.Cause(ctx)
		}
	}

	return zero, multierr.Combine(errs...)
}

// joinFirst returns the first terminal outcome verbatim, success or
// failure, and cancels the rest.
func joinFirst[A any](
	ctx context.Context,
	cancel context.CancelCauseFunc,
	outcomes <-chan outcome[A],
) (A, error) {
	select {
	case o := <-outcomes:
		cancel(ErrSuperseded)
		return o.val, o.err
	case <-ctx.Done():
		var zero A
		return zero, context.Cause(ctx)
	}
}

// joinAccumulating lets every task run to completion, never cancelling
// a sibling over another's failure. With zero failures it returns all
// values in fork order; otherwise it aggregates every mapped failure,
// also in fork order.
func joinAccumulate[A any](
	ctx context.Context,
	n int,
	outcomes <-chan outcome[A],
	mapErr func(error) error,
) ([]A, error) {
	vals := make([]A, n)
	errs := make([]error, n)
	failed := false

	for remaining := n; remaining > 0; remaining-- {
		select {
		case o := <-outcomes:
			if o.err != nil {
				errs[o.idx] = o.err
				failed = true
			} else {
				vals[o.idx] = o.val
			}
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		}
	}

	if !failed {
		return vals, nil
	}

	mapped := make([]error, 0, n)
	for _, err := range errs {
		if err == nil {
			continue
		}
		if m := mapErr(err); m != nil {
			mapped = append(mapped, m)
		} else {
			mapped = append(mapped, err)
		}
	}
	return nil, multierr.Combine(mapped...)
}
