package ttlstore

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, slog.Default()), mr
}

func TestSetGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	type payload struct {
		Contacts []string `json:"contacts"`
		SavedAt  int64    `json:"saved_at"`
	}

	in := payload{Contacts: []string{"a@x.com", "b@y.com"}, SavedAt: 12345}
	require.NoError(t, store.Set(ctx, TempResultsKey("job-1"), in, time.Minute))

	var out payload
	found, err := store.Get(ctx, TempResultsKey("job-1"), &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestGetMissingKey(t *testing.T) {
	store, _ := newTestStore(t)
	var out map[string]any
	found, err := store.Get(context.Background(), "nope", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTTLExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", 10*time.Minute))
	exists, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	mr.FastForward(11 * time.Minute)
	exists, err = store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExtendTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, store.ExtendTTL(ctx, "k", time.Hour))

	mr.FastForward(5 * time.Minute)
	exists, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLock(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := store.AcquireLock(ctx, LockKey("job-1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.AcquireLock(ctx, LockKey("job-1"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	require.NoError(t, store.ReleaseLock(ctx, LockKey("job-1")))

	ok, err = store.AcquireLock(ctx, LockKey("job-1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnavailableStore(t *testing.T) {
	store := NewStore(nil, slog.Default())
	assert.False(t, store.Available())

	err := store.Set(context.Background(), "k", "v", time.Minute)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = store.Exists(context.Background(), "k")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestKeySpace(t *testing.T) {
	assert.Equal(t, "temp_results:j1", TempResultsKey("j1"))
	assert.Equal(t, "lock:j1", LockKey("j1"))
	assert.Equal(t, "html_cache:abc", HTMLCacheKey("abc"))
}
