// Package ttlstore provides the ephemeral key→JSON store backing temporary
// flow-1 payloads, the HTML cache and event delivery.
package ttlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/prospectlab/prospector/pkg/logger"
)

var Module = fx.Module("ttlstore",
	fx.Provide(NewStore),
)

const (
	// warnPayloadBytes triggers a size warning on Set
	warnPayloadBytes = 100 * 1024 * 1024
	// maxPayloadBytes rejects the Set outright
	maxPayloadBytes = 256 * 1024 * 1024
)

// ErrPayloadTooLarge is returned when a payload exceeds the hard size cap.
var ErrPayloadTooLarge = errors.New("ttlstore: payload exceeds 256 MB cap")

// ErrUnavailable is returned when the store has no backing connection.
var ErrUnavailable = errors.New("ttlstore: store unavailable")

// Key space helpers.
func TempResultsKey(jobID string) string { return "temp_results:" + jobID }
func LockKey(jobID string) string        { return "lock:" + jobID }
func HTMLCacheKey(urlMD5 string) string  { return "html_cache:" + urlMD5 }

// Store is the TTL key→JSON store. A nil redis client makes the store
// permanently unavailable; callers fall back to direct persistence.
type Store struct {
	client *redis.Client
	log    *slog.Logger
}

// NewStore creates the store around an optional redis client.
func NewStore(client *redis.Client, log *slog.Logger) *Store {
	return &Store{
		client: client,
		log:    log.With(logger.Scope("ttlstore")),
	}
}

// Available reports whether the store has a backing connection.
func (s *Store) Available() bool {
	return s != nil && s.client != nil
}

// Set marshals value to JSON and stores it under key with the given TTL.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !s.Available() {
		return ErrUnavailable
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if len(payload) > maxPayloadBytes {
		s.log.Error("payload rejected",
			slog.String("key", key),
			slog.Int("bytes", len(payload)),
		)
		return ErrPayloadTooLarge
	}
	if len(payload) > warnPayloadBytes {
		s.log.Warn("large payload",
			slog.String("key", key),
			slog.Int("bytes", len(payload)),
		)
	}

	return s.client.Set(ctx, key, payload, ttl).Err()
}

// Get unmarshals the JSON stored under key into dest. The boolean reports
// whether the key existed.
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !s.Available() {
		return false, ErrUnavailable
	}

	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("unmarshal payload: %w", err)
	}
	return true, nil
}

// GetRaw returns the raw bytes stored under key.
func (s *Store) GetRaw(ctx context.Context, key string) ([]byte, bool, error) {
	if !s.Available() {
		return nil, false, ErrUnavailable
	}
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// SetRaw stores raw bytes under key with the given TTL, applying the same
// size guards as Set.
func (s *Store) SetRaw(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if !s.Available() {
		return ErrUnavailable
	}
	if len(payload) > maxPayloadBytes {
		return ErrPayloadTooLarge
	}
	if len(payload) > warnPayloadBytes {
		s.log.Warn("large payload", slog.String("key", key), slog.Int("bytes", len(payload)))
	}
	return s.client.Set(ctx, key, payload, ttl).Err()
}

// Delete removes a key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if !s.Available() {
		return ErrUnavailable
	}
	return s.client.Del(ctx, key).Err()
}

// Exists reports whether a key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if !s.Available() {
		return false, ErrUnavailable
	}
	n, err := s.client.Exists(ctx, key).Result()
	return n > 0, err
}

// ExtendTTL resets the TTL on an existing key.
func (s *Store) ExtendTTL(ctx context.Context, key string, ttl time.Duration) error {
	if !s.Available() {
		return ErrUnavailable
	}
	return s.client.Expire(ctx, key, ttl).Err()
}

// AcquireLock takes the distributed lock for key (SET NX EX). Returns true
// when the lock was acquired.
func (s *Store) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if !s.Available() {
		return false, ErrUnavailable
	}
	return s.client.SetNX(ctx, key, "1", ttl).Result()
}

// ReleaseLock drops the distributed lock.
func (s *Store) ReleaseLock(ctx context.Context, key string) error {
	return s.Delete(ctx, key)
}

// Publish sends a JSON payload on a pub/sub channel.
func (s *Store) Publish(ctx context.Context, channel string, payload any) error {
	if !s.Available() {
		return ErrUnavailable
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.client.Publish(ctx, channel, data).Err()
}

// Subscribe opens a pub/sub subscription on the given channels. The caller
// owns the returned subscription. Publisher and subscriber connections are
// independent per the go-redis pub/sub model.
func (s *Store) Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	return s.client.Subscribe(ctx, channels...), nil
}
