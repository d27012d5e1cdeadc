package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(slog.Default())
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Import.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Import.StaleThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.Mining.PageDelay)
	assert.Equal(t, 5, cfg.Mining.DefaultTotal)
	assert.Equal(t, 2, cfg.Mining.Flow2Concurrency)
	assert.InDelta(t, 0.20, cfg.Mining.EnrichThreshold, 1e-9)
	assert.InDelta(t, 2.00, cfg.Cost.JobLimit, 1e-9)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Circuit.RecoveryTimeout)
	assert.False(t, cfg.Canonical.Disabled)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p",
		Database: "prospector", SSLMode: "require",
	}
	assert.Equal(t, "postgres://u:p@db:5433/prospector?sslmode=require", d.DSN())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("IMPORT_BATCH_SIZE", "50")
	t.Setenv("MINING_FLOW2_DISABLED", "true")
	t.Setenv("COST_JOB_LIMIT", "0.5")
	t.Setenv("REDIS_URL", "redis://cache:6379/2")

	cfg, err := NewConfig(slog.Default())
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Import.BatchSize)
	assert.True(t, cfg.Mining.Flow2Disabled)
	assert.InDelta(t, 0.5, cfg.Cost.JobLimit, 1e-9)
	assert.Equal(t, "redis://cache:6379/2", cfg.Redis.URL)
}
