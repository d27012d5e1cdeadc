package logger

import (
	"fmt"
	"log/slog"
	"time"
)

// HTTPLogger writes one structured line per HTTP request. It exists so that
// request traffic can be filtered out of the main application log stream.
type HTTPLogger struct {
	log *slog.Logger
}

// NewHTTPLogger creates the HTTP request logger.
func NewHTTPLogger(log *slog.Logger) *HTTPLogger {
	return &HTTPLogger{log: log.With(Scope("http"))}
}

// LogRequest records a completed request.
func (h *HTTPLogger) LogRequest(ip, method, uri string, status int, latency time.Duration, userAgent, requestID string) {
	h.log.Debug(fmt.Sprintf("%s %s", method, uri),
		slog.String("ip", ip),
		slog.Int("status", status),
		slog.Duration("latency", latency),
		slog.String("user_agent", userAgent),
		slog.String("request_id", requestID),
	)
}
