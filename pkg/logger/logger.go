// Package logger provides slog-based structured logging for the application.
//
// Log level is controlled by LOG_LEVEL (debug, info, warn, error; case
// insensitive, defaults to info). When GO_ENV=production the JSON handler is
// used, otherwise a human-readable text handler.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
)

// Module provides the application logger.
var Module = fx.Module("logger",
	fx.Provide(
		NewLogger,
		NewHTTPLogger,
	),
)

// Scope returns a slog attribute tagging log lines with a component scope.
func Scope(name string) slog.Attr {
	return slog.String("scope", name)
}

// Error returns a slog attribute carrying an error value.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// NewLogger builds the process logger from environment settings.
func NewLogger() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("GO_ENV"), "production") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
