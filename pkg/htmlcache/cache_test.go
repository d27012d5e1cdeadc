package htmlcache

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/pkg/ttlstore"
)

func newTestCache(t *testing.T) (*Cache, *ttlstore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := ttlstore.NewStore(client, slog.Default())
	cfg := &config.Config{Mining: config.MiningConfig{HTMLCacheTTL: time.Hour}}
	return New(store, cfg, slog.Default()), store
}

func TestNewTakesTTLFromConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := ttlstore.NewStore(client, slog.Default())

	cfg := &config.Config{Mining: config.MiningConfig{HTMLCacheTTL: 15 * time.Minute}}
	assert.Equal(t, 15*time.Minute, New(store, cfg, slog.Default()).ttl)

	// An unset TTL falls back to the default instead of zero.
	assert.Equal(t, DefaultTTL, New(store, &config.Config{}, slog.Default()).ttl)
}

func goodBody() string {
	return "<html><body>" + strings.Repeat("<div>Exhibitor GmbH contact@firm.de</div>", 30) + "</body></html>"
}

func TestStoreAndLoad(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	body := goodBody()
	require.NoError(t, cache.Store(ctx, "https://Example.com/List", body))

	got, ok := cache.Load(ctx, "https://example.com/list")
	assert.True(t, ok, "key is case-insensitive over the url")
	assert.Equal(t, body, got)
}

func TestRejectsBlockedBodies(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	blocked := "<html><body>" + strings.Repeat("<div>filler</div>", 50) +
		"<div>Access Denied - please complete the CAPTCHA</div></body></html>"
	err := cache.Store(ctx, "https://example.com", blocked)
	assert.Error(t, err)

	_, ok := cache.Load(ctx, "https://example.com")
	assert.False(t, ok)
}

func TestRejectsShortBodies(t *testing.T) {
	cache, _ := newTestCache(t)
	err := cache.Store(context.Background(), "https://example.com", "<html><body>tiny</body></html>")
	assert.Error(t, err)
}

func TestRejectsOversizedBodies(t *testing.T) {
	cache, _ := newTestCache(t)
	huge := "<html><body><div>" + strings.Repeat("x", 3*1024*1024) + "</div></body></html>"
	err := cache.Store(context.Background(), "https://example.com", huge)
	assert.Error(t, err)
}

func TestTamperedEntryDeletedOnLoad(t *testing.T) {
	cache, store := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, "https://example.com", goodBody()))

	// Overwrite with a mismatched signature
	key := ttlstore.HTMLCacheKey(Key("https://example.com"))
	tampered := entry{Body: goodBody() + "<div>injected</div>", Signature: "bogus"}
	require.NoError(t, store.Set(ctx, key, tampered, DefaultTTL))

	_, ok := cache.Load(ctx, "https://example.com")
	assert.False(t, ok)

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists, "tampered entry must be deleted")
}

func TestValidateIsStableForGoodBodies(t *testing.T) {
	ok, reason := Validate(goodBody())
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestSignatureChangesWithContent(t *testing.T) {
	a := Signature(goodBody())
	b := Signature(goodBody() + "<div>more</div>")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Signature(goodBody()))
}
