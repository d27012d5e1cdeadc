// Package htmlcache caches fetched HTML in the TTL store with poisoning
// resistance: bodies that look like anti-bot or block pages are never
// stored, and entries that turn bad (or were tampered with) are deleted on
// retrieval.
package htmlcache

import (
	"context"
	"crypto/md5"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.uber.org/fx"

	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/pkg/logger"
	"github.com/prospectlab/prospector/pkg/ttlstore"
)

var Module = fx.Module("htmlcache",
	fx.Provide(New),
)

const (
	minBodyBytes = 500
	maxBodyBytes = 2 * 1024 * 1024
	// DefaultTTL is the cache lifetime of a stored body when the config
	// does not set one.
	DefaultTTL = time.Hour
)

// blockIndicators are substrings marking a response as an anti-bot or
// block page. Matching is case-insensitive.
var blockIndicators = []string{
	"access denied",
	"access to this page has been denied",
	"captcha",
	"cf-challenge",
	"cloudflare",
	"ddos protection",
	"rate limit",
	"too many requests",
	"verify you are human",
	"please enable cookies",
	"blocked by",
	"bot detection",
	"pardon our interruption",
}

// entry is the stored cache record.
type entry struct {
	Body      string    `json:"body"`
	Signature string    `json:"signature"`
	CachedAt  time.Time `json:"cached_at"`
}

// Cache is the poisoning-resistant HTML cache.
type Cache struct {
	store *ttlstore.Store
	ttl   time.Duration
	log   *slog.Logger
}

// New creates the cache over the TTL store, with the entry lifetime
// taken from the mining config.
func New(store *ttlstore.Store, cfg *config.Config, log *slog.Logger) *Cache {
	ttl := cfg.Mining.HTMLCacheTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store: store,
		ttl:   ttl,
		log:   log.With(logger.Scope("htmlcache")),
	}
}

// WithTTL overrides the default entry lifetime.
func (c *Cache) WithTTL(ttl time.Duration) *Cache {
	c.ttl = ttl
	return c
}

// Key computes the cache key for a URL: md5 of the lowercased trimmed URL.
func Key(url string) string {
	normalized := strings.ToLower(strings.TrimSpace(url))
	return fmt.Sprintf("%x", md5.Sum([]byte(normalized)))
}

// Signature fingerprints a body: md5 over the first 1 KB, the total length
// and the counts of structural markers. Retrieval recomputes it to detect
// tampering.
func Signature(body string) string {
	head := body
	if len(head) > 1024 {
		head = head[:1024]
	}
	lower := strings.ToLower(body)
	material := fmt.Sprintf("%s|%d|%d|%d|%d|%d",
		head,
		len(body),
		strings.Count(lower, "<table"),
		strings.Count(lower, "<div"),
		strings.Count(lower, "<a"),
		strings.Count(body, "@"),
	)
	return fmt.Sprintf("%x", md5.Sum([]byte(material)))
}

// Validate reports whether a body is cacheable. The reason is empty when
// the body is acceptable.
func Validate(body string) (ok bool, reason string) {
	if len(body) < minBodyBytes {
		return false, "body too short"
	}
	if len(body) > maxBodyBytes {
		return false, "body exceeds max size"
	}

	lower := strings.ToLower(body)
	if !strings.Contains(lower, "<html") && !strings.Contains(lower, "<body") && !strings.Contains(lower, "<div") {
		return false, "no structural markers"
	}
	for _, indicator := range blockIndicators {
		if strings.Contains(lower, indicator) {
			return false, "block indicator: " + indicator
		}
	}
	return true, ""
}

// Store caches a body for url. Bodies that fail validation are rejected.
func (c *Cache) Store(ctx context.Context, url, body string) error {
	if !c.store.Available() {
		return ttlstore.ErrUnavailable
	}

	if ok, reason := Validate(body); !ok {
		c.log.Debug("refusing to cache body",
			slog.String("url", url),
			slog.String("reason", reason),
		)
		return fmt.Errorf("htmlcache: rejected body for %s: %s", url, reason)
	}

	e := entry{
		Body:      body,
		Signature: Signature(body),
		CachedAt:  time.Now().UTC(),
	}
	return c.store.Set(ctx, ttlstore.HTMLCacheKey(Key(url)), e, c.ttl)
}

// Load returns the cached body for url if present and still healthy.
// Poisoned or tampered entries are deleted and reported as a miss.
func (c *Cache) Load(ctx context.Context, url string) (string, bool) {
	if !c.store.Available() {
		return "", false
	}

	key := ttlstore.HTMLCacheKey(Key(url))

	var e entry
	found, err := c.store.Get(ctx, key, &e)
	if err != nil || !found {
		return "", false
	}

	if e.Signature != Signature(e.Body) {
		c.log.Warn("cache entry signature mismatch, deleting", slog.String("url", url))
		_ = c.store.Delete(ctx, key)
		return "", false
	}

	if ok, reason := Validate(e.Body); !ok {
		c.log.Warn("poisoned cache entry deleted",
			slog.String("url", url),
			slog.String("reason", reason),
		)
		_ = c.store.Delete(ctx, key)
		return "", false
	}

	return e.Body, true
}
