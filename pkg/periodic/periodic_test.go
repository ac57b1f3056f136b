package periodic

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestTryRunSkipsWhileRunning(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls atomic.Int32

	task := New("blocking", time.Hour, func(ctx context.Context) error {
		calls.Add(1)
		close(entered)
		<-release
		return nil
	})

	go func() {
		_, _ = task.TryRun(context.Background())
	}()
	<-entered

	ran, err := task.TryRun(context.Background())
	require.NoError(t, err)
	require.False(t, ran)
	require.True(t, task.Running())

	close(release)
	require.Eventually(t, func() bool { return !task.Running() }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(1), calls.Load())
}

func TestTryRunReturnsJobError(t *testing.T) {
	boom := errors.New("boom")
	task := New("failing", time.Hour, func(ctx context.Context) error { return boom })

	ran, err := task.TryRun(context.Background())
	require.True(t, ran)
	require.ErrorIs(t, err, boom)
	require.False(t, task.Running())
}

func TestStartTicksAndStops(t *testing.T) {
	var calls atomic.Int32
	task := New("ticker", 10*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, WithImmediateRun())

	task.Start()
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, task.Stop(ctx))

	stopped := calls.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, stopped, calls.Load())
}

func TestStopWithoutStart(t *testing.T) {
	task := New("idle", time.Second, func(ctx context.Context) error { return nil })
	require.NoError(t, task.Stop(context.Background()))
}
