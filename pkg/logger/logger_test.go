package logger

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope(t *testing.T) {
	attr := Scope("mining.orchestrator")
	assert.Equal(t, "scope", attr.Key)
	assert.Equal(t, "mining.orchestrator", attr.Value.String())
}

func TestError(t *testing.T) {
	err := errors.New("fetch failed")
	attr := Error(err)
	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level    string
		enabled  slog.Level
		disabled slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 4},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"warning", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"ERROR", slog.LevelError, slog.LevelWarn},
		{"bogus", slog.LevelInfo, slog.LevelDebug},
		{"", slog.LevelInfo, slog.LevelDebug},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run("level_"+tt.level, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			log := NewLogger()
			require.NotNil(t, log)
			assert.True(t, log.Enabled(ctx, tt.enabled))
			assert.False(t, log.Enabled(ctx, tt.disabled))
		})
	}
}

func TestNewLoggerProduction(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("LOG_LEVEL", "")
	log := NewLogger()
	require.NotNil(t, log)
	assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))
}
