package scope_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/on-the-ground/vtask_go/scope"
	"github.com/on-the-ground/vtask_go/vtask"
)

func TestAllSucceed_CollectsInForkOrder(t *testing.T) {
	joined := scope.AllSucceed[string]().
		Fork(vtask.Of(func(context.Context) (string, error) {
			time.Sleep(20 * time.Millisecond)
			return "a", nil
		})).
		Fork(vtask.Succeed("b")).
		Join()

	res, err := joined.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res, "results follow fork order, not completion order")
}

func TestAllSucceed_FirstFailureCancelsSiblings(t *testing.T) {
	boom := errors.New("boom")
	siblingCancelled := make(chan struct{})

	joined := scope.AllSucceed[int]().
		Fork(vtask.Fail[int](boom)).
		Fork(vtask.Of(func(ctx context.Context) (int, error) {
			select {
			case <-ctx.Done():
				close(siblingCancelled)
				return 0, ctx.Err()
			case <-time.After(time.Second):
				return 1, nil
			}
		})).
		Join()

	_, err := joined.Run(context.Background())
	assert.ErrorIs(t, err, boom)

	select {
	case <-siblingCancelled:
	case <-time.After(time.Second):
		t.Fatal("sibling never observed cancellation after the first failure")
	}
}

func TestAllSucceed_Empty(t *testing.T) {
	res, err := scope.AllSucceed[int]().Join().Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestAnySucceed_ReturnsSuccessDespiteFailure(t *testing.T) {
	joined := scope.AnySucceed[string]().
		Fork(vtask.Fail[string](errors.New("boom"))).
		Fork(vtask.Of(func(context.Context) (string, error) {
			time.Sleep(10 * time.Millisecond)
			return "ok", nil
		})).
		Join()

	res, err := joined.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
}

func TestAnySucceed_FirstSuccessSupersedesSiblings(t *testing.T) {
	loserSawCancel := make(chan struct{})

	joined := scope.AnySucceed[string]().
		Fork(vtask.Succeed("winner")).
		Fork(vtask.Of(func(ctx context.Context) (string, error) {
			select {
			case <-ctx.Done():
				close(loserSawCancel)
				return "", ctx.Err()
			case <-time.After(time.Second):
				return "loser", nil
			}
		})).
		Join()

	res, err := joined.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "winner", res)

	select {
	case <-loserSawCancel:
	case <-time.After(time.Second):
		t.Fatal("loser never observed cancellation")
	}
}

func TestAnySucceed_AllFailCollectsEveryError(t *testing.T) {
	e1 := errors.New("first")
	e2 := errors.New("second")

	joined := scope.AnySucceed[int]().
		Fork(vtask.Fail[int](e1)).
		Fork(vtask.Fail[int](e2)).
		Join()

	_, err := joined.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
}

func TestAnySucceed_Empty(t *testing.T) {
	_, err := scope.AnySucceed[int]().Join().Run(context.Background())
	assert.ErrorIs(t, err, scope.ErrNoTasks)
}

func TestFirstComplete_TakesFirstOutcomeEvenIfFailed(t *testing.T) {
	boom := errors.New("boom")

	joined := scope.FirstComplete[int]().
		Fork(vtask.Fail[int](boom)).
		Fork(vtask.Of(func(ctx context.Context) (int, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(time.Second):
				return 1, nil
			}
		})).
		Join()

	_, err := joined.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestAccumulating_CollectsMappedFailures(t *testing.T) {
	e1 := errors.New("E1")
	e2 := errors.New("E2")

	joined := scope.Accumulating[int](func(err error) error {
		return errors.New("mapped: " + err.Error())
	}).
		Fork(vtask.Succeed(1)).
		Fork(vtask.Fail[int](e1)).
		Fork(vtask.Fail[int](e2)).
		Join()

	_, err := joined.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapped: E1")
	assert.Contains(t, err.Error(), "mapped: E2")
}

func TestAccumulating_AllSucceed(t *testing.T) {
	joined := scope.Accumulating[int](func(err error) error { return err }).
		Fork(vtask.Succeed(1)).
		Fork(vtask.Succeed(2)).
		Join()

	res, err := joined.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, res)
}

func TestAccumulating_NeverCancelsSiblings(t *testing.T) {
	var slowFinished atomic.Bool

	joined := scope.Accumulating[int](func(err error) error { return err }).
		Fork(vtask.Fail[int](errors.New("boom"))).
		Fork(vtask.Of(func(context.Context) (int, error) {
			time.Sleep(30 * time.Millisecond)
			slowFinished.Store(true)
			return 2, nil
		})).
		Join()

	_, err := joined.Run(context.Background())
	require.Error(t, err)
	assert.True(t, slowFinished.Load(), "accumulating join lets every sibling run to completion")
}

func TestFork_IsImmutable(t *testing.T) {
	base := scope.AllSucceed[int]().Fork(vtask.Succeed(1))
	withSecond := base.Fork(vtask.Succeed(2))

	assert.Equal(t, 1, base.TaskCount())
	assert.Equal(t, 2, withSecond.TaskCount())

	res, err := base.Join().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res)
}

func TestForkAll(t *testing.T) {
	tasks := []vtask.Task[int]{vtask.Succeed(1), vtask.Succeed(2), vtask.Succeed(3)}
	res, err := scope.AllSucceed[int]().ForkAll(tasks).Join().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, res)
}

func TestJoin_IsLazyAndRerunnable(t *testing.T) {
	var runs atomic.Int32
	joined := scope.AllSucceed[int]().
		Fork(vtask.Of(func(context.Context) (int, error) {
			return int(runs.Add(1)), nil
		})).
		Join()

	assert.Equal(t, int32(0), runs.Load(), "join must not run before the task does")

	_, err := joined.Run(context.Background())
	require.NoError(t, err)
	_, err = joined.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), runs.Load())
}

func TestWithWorkers_SerializesSameKey(t *testing.T) {
	var concurrent, maxSeen atomic.Int32

	s := scope.AllSucceed[int]().WithWorkers(1)
	for i := 0; i < 5; i++ {
		i := i
		s = s.ForkNamed("shared", vtask.Of(func(context.Context) (int, error) {
			cur := concurrent.Add(1)
			for {
				prev := maxSeen.Load()
				if cur <= prev || maxSeen.CompareAndSwap(prev, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			concurrent.Add(-1)
			return i, nil
		}))
	}

	res, err := s.Join().Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res, 5)
	assert.Equal(t, int32(1), maxSeen.Load(), "same-named tasks on a single worker must not overlap")
}

func TestJoin_PanicBecomesError(t *testing.T) {
	joined := scope.AllSucceed[int]().
		Fork(vtask.Of(func(context.Context) (int, error) {
			panic("kaboom")
		})).
		Join()

	_, err := joined.Run(context.Background())
	require.Error(t, err)

	var pErr *scope.PanicError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "kaboom", pErr.Value)
	assert.NotEmpty(t, pErr.Stack)
}

func TestWithTimeout(t *testing.T) {
	joined := scope.AllSucceed[int]().
		Fork(vtask.Of(func(ctx context.Context) (int, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(time.Second):
				return 1, nil
			}
		})).
		WithTimeout(20 * time.Millisecond).
		Join()

	_, err := joined.Run(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestJoin_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	joined := scope.AllSucceed[int]().
		Fork(vtask.Of(func(ctx context.Context) (int, error) {
			cancel()
			<-ctx.Done()
			return 0, ctx.Err()
		})).
		Join()

	_, err := joined.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJoinSafe(t *testing.T) {
	boom := errors.New("boom")

	ok := scope.AllSucceed[int]().
		Fork(vtask.Succeed(1)).
		JoinSafe().
		RunSafe(context.Background())
	require.True(t, ok.IsSuccess())
	res, err := ok.Value.Get()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res)

	bad, err := scope.AllSucceed[int]().
		Fork(vtask.Fail[int](boom)).
		JoinSafe().
		Run(context.Background())
	require.NoError(t, err, "joinSafe folds the failure into the try")
	assert.True(t, bad.IsFailure())
	assert.ErrorIs(t, bad.Err, boom)
}
