package vtask_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/on-the-ground/vtask_go/vtask"
)

func TestSucceed_Rerun(t *testing.T) {
	task := vtask.Succeed(42)
	for i := 0; i < 3; i++ {
		v, err := task.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
}

func TestOf_DeferredUntilRun(t *testing.T) {
	calls := 0
	task := vtask.Of(func(context.Context) (int, error) {
		calls++
		return calls, nil
	})

	assert.Equal(t, 0, calls, "creating a task must not run it")

	v, err := task.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// Re-running re-executes: no memoization.
	v, err = task.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestFail(t *testing.T) {
	boom := errors.New("boom")
	_, err := vtask.Fail[string](boom).Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestMap_TransformsValue(t *testing.T) {
	task := vtask.Map(vtask.Succeed("hello"), func(s string) int { return len(s) })
	v, err := task.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestMap_ShortCircuitsAndPreservesError(t *testing.T) {
	boom := errors.New("boom")
	applied := false
	task := vtask.Map(vtask.Fail[int](boom), func(n int) int {
		applied = true
		return n * 2
	})

	_, err := task.Run(context.Background())
	assert.ErrorIs(t, err, boom, "the original failure must not be wrapped")
	assert.False(t, applied)
}

func TestFlatMap_Chains(t *testing.T) {
	task := vtask.FlatMap(vtask.Succeed(3), func(n int) vtask.Task[string] {
		return vtask.Of(func(context.Context) (string, error) {
			return "n=3", nil
		})
	})
	v, err := task.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "n=3", v)
}

func TestFlatMap_ShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	task := vtask.FlatMap(vtask.Fail[int](boom), func(int) vtask.Task[int] {
		t.Fatal("flatMap continuation must not run after a failure")
		return vtask.Succeed(0)
	})
	_, err := task.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestThen_DiscardsFirstValue(t *testing.T) {
	task := vtask.Then(vtask.Succeed("ignored"), func() vtask.Task[int] {
		return vtask.Succeed(7)
	})
	v, err := task.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestPeek_SeesValueWithoutChangingIt(t *testing.T) {
	var seen string
	task := vtask.Succeed("value").Peek(func(s string) { seen = s })
	v, err := task.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, "value", seen)
}

func TestRunSafe(t *testing.T) {
	boom := errors.New("boom")

	ok := vtask.Succeed(1).RunSafe(context.Background())
	assert.True(t, ok.IsSuccess())
	assert.Equal(t, 1, ok.OrElse(-1))

	bad := vtask.Fail[int](boom).RunSafe(context.Background())
	assert.True(t, bad.IsFailure())
	assert.Equal(t, -1, bad.OrElse(-1))
	_, err := bad.Get()
	assert.ErrorIs(t, err, boom)
}

func TestRunAsync_DeliversOnce(t *testing.T) {
	task := vtask.Of(func(context.Context) (string, error) {
		time.Sleep(10 * time.Millisecond)
		return "ok", nil
	})

	select {
	case res := <-task.RunAsync(context.Background()):
		require.NoError(t, res.Err)
		assert.Equal(t, "ok", res.Value)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task result")
	}
}

func TestRecover(t *testing.T) {
	task := vtask.Fail[string](errors.New("boom")).Recover(func(err error) string {
		return "fallback: " + err.Error()
	})
	v, err := task.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fallback: boom", v)
}

func TestRecover_DoesNotSwallowCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	task := vtask.Of(func(ctx context.Context) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	}).Recover(func(error) string { return "recovered" })

	_, err := task.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled, "a cancelled task must not report success")
}

func TestRecoverWith(t *testing.T) {
	boom := errors.New("boom")
	task := vtask.Fail[int](boom).RecoverWith(func(error) vtask.Task[int] {
		return vtask.Succeed(99)
	})
	v, err := task.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 99, v)
}

func TestMapError(t *testing.T) {
	boom := errors.New("boom")
	task := vtask.Fail[int](boom).MapError(func(err error) error {
		return errors.New("wrapped: " + err.Error())
	})
	_, err := task.Run(context.Background())
	assert.EqualError(t, err, "wrapped: boom")
}

func TestRun_RefusesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	started := false
	task := vtask.Of(func(context.Context) (int, error) {
		started = true
		return 1, nil
	})

	_, err := task.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, started, "a task cancelled before its start must not run")
}

func TestTimeout_Expires(t *testing.T) {
	task := vtask.Of(func(ctx context.Context) (string, error) {
		select {
		case <-time.After(time.Second):
			return "too late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}).Timeout(20 * time.Millisecond)

	_, err := task.Run(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimeout_FastTaskPasses(t *testing.T) {
	v, err := vtask.Succeed("fast").Timeout(time.Second).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fast", v)
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	task := vtask.Of(func(context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("flaky")
		}
		return attempts, nil
	}).Retry(5)

	v, err := task.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Equal(t, 3, attempts)
}

func TestRetry_Exhausted(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	task := vtask.Of(func(context.Context) (int, error) {
		attempts++
		return 0, boom
	}).Retry(3)

	_, err := task.Run(context.Background())
	assert.Equal(t, 3, attempts)

	var maxErr *vtask.MaxAttemptsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 3, maxErr.Attempts)
	assert.ErrorIs(t, err, boom)
}

func TestRetryIf_StopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	attempts := 0
	task := vtask.Of(func(context.Context) (int, error) {
		attempts++
		return 0, fatal
	}).RetryIf(5, func(err error) bool { return !errors.Is(err, fatal) })

	_, err := task.Run(context.Background())
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, attempts)
}

func TestExec(t *testing.T) {
	ran := false
	_, err := vtask.Exec(func(context.Context) error {
		ran = true
		return nil
	}).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestAsUnit(t *testing.T) {
	_, err := vtask.Succeed("whatever").AsUnit().Run(context.Background())
	assert.NoError(t, err)
}
