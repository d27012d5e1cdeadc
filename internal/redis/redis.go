// Package redis provides the shared redis client used by the TTL store, the
// HTML cache and the event bus.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/pkg/logger"
)

var Module = fx.Module("redis",
	fx.Provide(NewClient),
)

// NewClient creates the redis client. When the store is disabled by
// configuration it returns nil; consumers treat a nil client as
// "store unavailable" and fall back accordingly.
func NewClient(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) (*redis.Client, error) {
	log = log.With(logger.Scope("redis"))

	if cfg.Redis.Disabled {
		log.Warn("TTL store disabled by configuration; flow 2 will not run")
		return nil, nil
	}

	var opts *redis.Options
	if cfg.Redis.URL != "" {
		parsed, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// The store is optional; aggregation degrades to aggregateSimple
		log.Warn("redis unreachable; continuing without TTL store", logger.Error(err))
	} else {
		log.Info("redis connected", slog.String("addr", opts.Addr))
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing redis client")
			return client.Close()
		},
	})

	return client, nil
}
