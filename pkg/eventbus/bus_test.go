package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospectlab/prospector/pkg/ttlstore"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := ttlstore.NewStore(client, slog.Default())
	return NewBusWithSource(store, "worker-test", slog.Default())
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []Event
	require.NoError(t, bus.Subscribe(ctx, ChannelAggregationDone, func(ctx context.Context, ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	}))

	// Give the receive loop time to attach
	time.Sleep(50 * time.Millisecond)

	payload := map[string]any{"contact_count": 7, "enrichment_rate": 0.4}
	require.NoError(t, bus.Publish(ctx, ChannelAggregationDone, "job-1", payload))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	ev := got[0]
	mu.Unlock()
	assert.Equal(t, ChannelAggregationDone, ev.Channel)
	assert.Equal(t, "job-1", ev.JobID)
	assert.Equal(t, "worker-test", ev.Source)
	assert.Contains(t, ev.ID, "aggregation:done:job-1:")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(ev.Payload, &decoded))
	assert.EqualValues(t, 7, decoded["contact_count"])
}

func TestSeenCacheDropsDuplicates(t *testing.T) {
	cache := newSeenCache(10*time.Minute, 16)
	assert.True(t, cache.markSeen("aggregation:done:j1:1"))
	assert.False(t, cache.markSeen("aggregation:done:j1:1"))
	assert.True(t, cache.markSeen("aggregation:done:j1:2"))
}

func TestSeenCacheBounded(t *testing.T) {
	cache := newSeenCache(10*time.Minute, 3)
	assert.True(t, cache.markSeen("a"))
	assert.True(t, cache.markSeen("b"))
	assert.True(t, cache.markSeen("c"))
	assert.True(t, cache.markSeen("d")) // evicts "a"
	assert.True(t, cache.markSeen("a"), "oldest entry was evicted")
}

func TestPublishUnavailable(t *testing.T) {
	store := ttlstore.NewStore(nil, slog.Default())
	bus := NewBusWithSource(store, "w", slog.Default())
	err := bus.Publish(context.Background(), ChannelJobCompleted, "j", nil)
	assert.ErrorIs(t, err, ttlstore.ErrUnavailable)
}
