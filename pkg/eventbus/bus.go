// Package eventbus provides pub/sub over the TTL store with idempotent
// delivery: every message carries a synthetic event id and subscribers drop
// ids they have already seen within the dedup window.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/prospectlab/prospector/pkg/logger"
	"github.com/prospectlab/prospector/pkg/ttlstore"
)

var Module = fx.Module("eventbus",
	fx.Provide(NewBus),
)

// Channel names.
const (
	ChannelAggregationDone = "aggregation:done"
	ChannelFlow2Start      = "flow2:start"
	ChannelFlow2Done       = "flow2:done"
	ChannelJobCompleted    = "job:completed"
	ChannelJobFailed       = "job:failed"
	ChannelCostLimit       = "cost:limit"
)

// Event is the envelope carried on every channel.
type Event struct {
	ID          string          `json:"id"`
	Channel     string          `json:"channel"`
	JobID       string          `json:"job_id"`
	Source      string          `json:"source"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	PublishedAt time.Time       `json:"published_at"`
}

// Handler processes a delivered event.
type Handler func(ctx context.Context, ev Event)

// Bus publishes and subscribes over the TTL store's pub/sub. Publisher and
// subscriber hold independent connections (go-redis pub/sub model).
type Bus struct {
	store  *ttlstore.Store
	source string
	log    *slog.Logger
	seen   *seenCache
}

// BusParams are the dependencies for the event bus.
type BusParams struct {
	fx.In

	Store *ttlstore.Store
	Log   *slog.Logger
}

// NewBus creates the event bus. The source tag identifies this worker on
// published events.
func NewBus(p BusParams) *Bus {
	return NewBusWithSource(p.Store, "", p.Log)
}

// NewBusWithSource creates a bus with an explicit source tag.
func NewBusWithSource(store *ttlstore.Store, source string, log *slog.Logger) *Bus {
	return &Bus{
		store:  store,
		source: source,
		log:    log.With(logger.Scope("eventbus")),
		seen:   newSeenCache(10*time.Minute, 4096),
	}
}

// SetSource sets the worker identity tag used on published events.
func (b *Bus) SetSource(source string) { b.source = source }

// Available reports whether the underlying store can carry events.
func (b *Bus) Available() bool { return b.store.Available() }

// Publish sends a payload on a channel. Event publication is a best-effort
// side effect; callers log the returned error and continue.
func (b *Bus) Publish(ctx context.Context, channel, jobID string, payload any) error {
	if !b.store.Available() {
		return ttlstore.ErrUnavailable
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	ev := Event{
		ID:          fmt.Sprintf("%s:%s:%d", channel, jobID, time.Now().UnixNano()),
		Channel:     channel,
		JobID:       jobID,
		Source:      b.source,
		Payload:     raw,
		PublishedAt: time.Now().UTC(),
	}

	if err := b.store.Publish(ctx, channel, ev); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}

	b.log.Debug("event published",
		slog.String("channel", channel),
		slog.String("job_id", jobID),
		slog.String("event_id", ev.ID),
	)
	return nil
}

// Subscribe consumes a channel until ctx is canceled, invoking handler for
// each event not seen before. The receive loop reconnects with backoff on
// subscription errors.
func (b *Bus) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if !b.store.Available() {
		return ttlstore.ErrUnavailable
	}

	go b.receiveLoop(ctx, channel, handler)
	return nil
}

func (b *Bus) receiveLoop(ctx context.Context, channel string, handler Handler) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		sub, err := b.store.Subscribe(ctx, channel)
		if err != nil {
			b.log.Warn("subscribe failed, retrying",
				slog.String("channel", channel),
				logger.Error(err),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					_ = sub.Close()
					break recv
				}

				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn("malformed event dropped",
						slog.String("channel", channel),
						logger.Error(err),
					)
					continue
				}

				if !b.seen.markSeen(ev.ID) {
					b.log.Debug("duplicate event dropped", slog.String("event_id", ev.ID))
					continue
				}

				handler(ctx, ev)
			}
		}
	}
}
