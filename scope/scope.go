// Package scope coordinates groups of concurrently executed tasks.
//
// A Scope is an immutable builder: Fork appends a task and returns a
// new Scope value, and nothing runs until the task produced by Join is
// itself run. The joining strategy is fixed when the Scope is created
// (AllSucceed, AnySucceed, FirstComplete or Accumulating) and governs
// both how results are aggregated and when siblings are cancelled.
//
//	results, err := scope.AllSucceed[string]().
//	    Fork(fetchUser).
//	    Fork(fetchProfile).
//	    Join().
//	    Run(ctx)
//
// Cancellation is cooperative: a joiner that has made its decision
// cancels the remaining tasks' context with ErrSuperseded as the cause,
// and each task stops at the next point where it observes its context.
package scope

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/on-the-ground/vtask_go/internal/dispatch"
	"github.com/on-the-ground/vtask_go/vtask"
)

type forked[A any] struct {
	name string
	task vtask.Task[A]
}

// Scope accumulates forked tasks of type A and joins them into a
// single task producing R. R is fixed by the entry factory: []A for
// the order-preserving joiners, A for the racing ones.
//
// Scope values are immutable; every builder method returns a new value
// and the original can keep being forked independently.
type Scope[A, R any] struct {
	kind    joinKind
	mapErr  func(error) error
	tasks   []forked[A]
	timeout time.Duration
	workers int
	logger  *zap.Logger
	name    string
}

// AllSucceed returns a Scope whose join succeeds with every task's
// value in fork order, or fails fast on the first observed failure.
func AllSucceed[A any]() Scope[A, []A] {
	return Scope[A, []A]{kind: joinAllSucceed}
}

// AnySucceed returns a Scope whose join yields the first successful
// value and cancels the rest. If every task fails, the join fails with
// all collected failures aggregated in fork order.
func AnySucceed[A any]() Scope[A, A] {
	return Scope[A, A]{kind: joinAnySucceed}
}

// FirstComplete returns a Scope whose join yields the first terminal
// outcome verbatim, success or failure, and cancels the rest.
func FirstComplete[A any]() Scope[A, A] {
	return Scope[A, A]{kind: joinFirstComplete}
}

// Accumulating returns a Scope that never cancels a sibling over
// another's failure: every task runs to completion. With zero failures
// the join succeeds with all values in fork order; otherwise it fails
// with every failure passed through mapErr and aggregated.
func Accumulating[A any](mapErr func(error) error) Scope[A, []A] {
	if mapErr == nil {
		panic("scope: mapErr must not be nil")
	}
	return Scope[A, []A]{kind: joinAccumulating, mapErr: mapErr}
}

// Fork appends a task under a generated name and returns the new
// Scope. Fork order determines result order for AllSucceed and
// Accumulating.
func (s Scope[A, R]) Fork(task vtask.Task[A]) Scope[A, R] {
	return s.ForkNamed(fmt.Sprintf("task-%d", len(s.tasks)), task)
}

// ForkNamed appends a task under an explicit name. The name shows up
// in log fields and is the partition key when the scope runs on a
// bounded worker pool.
func (s Scope[A, R]) ForkNamed(name string, task vtask.Task[A]) Scope[A, R] {
	tasks := make([]forked[A], len(s.tasks), len(s.tasks)+1)
	copy(tasks, s.tasks)
	s.tasks = append(tasks, forked[A]{name: name, task: task})
	return s
}

// ForkAll appends every task in order.
func (s Scope[A, R]) ForkAll(tasks []vtask.Task[A]) Scope[A, R] {
	for _, t := range tasks {
		s = s.Fork(t)
	}
	return s
}

// TaskCount reports how many tasks have been forked so far.
func (s Scope[A, R]) TaskCount() int {
	return len(s.tasks)
}

// WithTimeout arms a timer that cancels every still-outstanding task
// once d elapses after the joined task starts running.
func (s Scope[A, R]) WithTimeout(d time.Duration) Scope[A, R] {
	s.timeout = d
	return s
}

// WithLogger attaches a logger for scope lifecycle events. The default
// is a nop logger.
func (s Scope[A, R]) WithLogger(logger *zap.Logger) Scope[A, R] {
	s.logger = logger
	return s
}

// WithWorkers bounds execution to n dispatch workers instead of one
// goroutine per task. Tasks are routed by hashing their fork name, so
// tasks sharing a name never run concurrently.
func (s Scope[A, R]) WithWorkers(n int) Scope[A, R] {
	if n < 0 {
		panic("scope: workers must be non-negative")
	}
	s.workers = n
	return s
}

// Named labels the scope for log fields.
func (s Scope[A, R]) Named(name string) Scope[A, R] {
	s.name = name
	return s
}

// Join combines the forked tasks into a single task. Join runs
// nothing; executing the returned task dispatches every forked task
// concurrently and aggregates the outcomes per the joining strategy.
// The Scope value is not meant to be forked further once joined.
func (s Scope[A, R]) Join() vtask.Task[R] {
	return vtask.Of(func(ctx context.Context) (R, error) {
		var zero R

		if len(s.tasks) == 0 {
			switch s.kind {
			case joinAnySucceed, joinFirstComplete:
				return zero, ErrNoTasks
			default:
				// Empty success, R is []A here by construction.
				return any([]A{}).(R), nil
			}
		}

		logger := s.logger
		if logger == nil {
			logger = zap.NewNop()
		}
		scopeID := uuid.New().String()

		runCtx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)
		if s.timeout > 0 {
			timeoutCtx, timeoutCancel := context.WithTimeout(runCtx, s.timeout)
			defer timeoutCancel()
			runCtx = timeoutCtx
		}

		logger.Debug("scope joining",
			zap.String("scope", s.name),
			zap.String("scope_id", scopeID),
			zap.Stringer("joiner", s.kind),
			zap.Int("tasks", len(s.tasks)),
			zap.Int("workers", s.workers),
		)

		start := time.Now()
		outcomes := s.dispatch(runCtx, logger, scopeID)
		res, err := s.joinOutcomes(runCtx, cancel, outcomes)

		state := "succeeded"
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			state = "cancelled"
		default:
			state = "failed"
		}
		logger.Debug("scope completed",
			zap.String("scope", s.name),
			zap.String("scope_id", scopeID),
			zap.String("state", state),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)

		if err != nil {
			return zero, err
		}
		// The factory fixed R to match the joiner, so this cannot fail.
		return res.(R), nil
	})
}

// JoinSafe is Join with the outcome captured in a Try instead of an
// error return.
func (s Scope[A, R]) JoinSafe() vtask.Task[vtask.Try[R]] {
	joined := s.Join()
	return vtask.Of(func(ctx context.Context) (vtask.Try[R], error) {
		return vtask.TryFrom(joined.Run(ctx)), nil
	})
}

func (s Scope[A, R]) joinOutcomes(
	ctx context.Context,
	cancel context.CancelCauseFunc,
	outcomes <-chan outcome[A],
) (any, error) {
	n := len(s.tasks)
	switch s.kind {
	case joinAllSucceed:
		return joinAll(ctx, cancel, n, outcomes)
	case joinAnySucceed:
		return joinAny(ctx, cancel, n, outcomes)
	case joinFirstComplete:
		return joinFirst(ctx, cancel, outcomes)
	case joinAccumulating:
		return joinAccumulate(ctx, n, outcomes, s.mapErr)
	default:
		// joinKind is a closed set, so this should never happen.
		panic(fmt.Sprintf("scope: unrecognized joiner: %v", s.kind))
	}
}

// job adapts a forked task run to the dispatch queues.
type job struct {
	key string
	run func()
}

func (j job) PartitionKey() string { return j.key }

// dispatch starts every forked task and returns the channel its
// outcomes arrive on. The channel is buffered to the task count so a
// finishing task never blocks, even after the joiner has returned.
func (s Scope[A, R]) dispatch(
	ctx context.Context,
	logger *zap.Logger,
	scopeID string,
) <-chan outcome[A] {
	results := make(chan outcome[A], len(s.tasks))

	runOne := func(idx int, ft forked[A]) {
		if ctx.Err() != nil {
			// Cancelled before start: the task never runs.
			results <- outcome[A]{idx: idx, name: ft.name, err: context.Cause(ctx)}
			return
		}
		start := time.Now()
		val, err := runContained(ctx, ft.task)
		logger.Debug("task completed",
			zap.String("scope_id", scopeID),
			zap.String("task", ft.name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		results <- outcome[A]{idx: idx, name: ft.name, val: val, err: err}
	}

	if s.workers > 0 {
		queue := dispatch.NewPartitionedQueue(ctx, s.workers, len(s.tasks),
			func(_ context.Context, j job) { j.run() })
		for i, ft := range s.tasks {
			j := job{key: ft.name, run: func() { runOne(i, ft) }}
			select {
			case queue.ChannelOf(j) <- j:
			case <-ctx.Done():
				results <- outcome[A]{idx: i, name: ft.name, err: context.Cause(ctx)}
			}
		}
	} else {
		for i, ft := range s.tasks {
			go runOne(i, ft)
		}
	}

	return results
}

// runContained runs one forked task with panic recovery.
func runContained[A any](ctx context.Context, t vtask.Task[A]) (val A, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return t.Run(ctx)
}
