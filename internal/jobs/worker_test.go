package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerRunsAndStops(t *testing.T) {
	var ticks atomic.Int64
	w := NewWorker(WorkerConfig{Name: "test", PollInterval: 10 * time.Millisecond}, slog.Default(), func(ctx context.Context) error {
		ticks.Add(1)
		return nil
	})

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))
	assert.False(t, w.IsRunning())

	final := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, final, ticks.Load(), "no ticks after stop")
}

func TestWorkerCountsFailures(t *testing.T) {
	w := NewWorker(WorkerConfig{Name: "failing", PollInterval: 10 * time.Millisecond}, slog.Default(), func(ctx context.Context) error {
		return errors.New("tick error")
	})

	require.NoError(t, w.Start(context.Background()))
	assert.Eventually(t, func() bool { return w.Metrics().Failed >= 2 }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))
}

func TestWorkerStartIsIdempotent(t *testing.T) {
	w := NewWorker(WorkerConfig{Name: "idem", PollInterval: time.Hour}, slog.Default(), func(ctx context.Context) error { return nil })
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))
	require.NoError(t, w.Stop(stopCtx))
}
