// Package health exposes the liveness, readiness and operational metrics
// endpoints.
package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/internal/version"
	"github.com/prospectlab/prospector/pkg/ttlstore"
)

// Handler handles health check requests.
type Handler struct {
	pool    *pgxpool.Pool
	store   *ttlstore.Store
	cfg     *config.Config
	startAt time.Time
}

// NewHandler creates the health handler.
func NewHandler(pool *pgxpool.Pool, store *ttlstore.Store, cfg *config.Config) *Handler {
	return &Handler{
		pool:    pool,
		store:   store,
		cfg:     cfg,
		startAt: time.Now(),
	}
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
}

// Check is one dependency's health.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health returns the overall service health. The TTL store is optional
// infrastructure, so a missing one degrades rather than fails the check.
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := map[string]Check{}
	overall := "healthy"

	if err := h.pool.Ping(ctx); err != nil {
		checks["database"] = Check{Status: "unhealthy", Message: err.Error()}
		overall = "unhealthy"
	} else {
		checks["database"] = Check{Status: "healthy"}
	}

	if h.store.Available() {
		checks["redis"] = Check{Status: "healthy"}
	} else {
		checks["redis"] = Check{Status: "degraded", Message: "temp store unavailable, flow2 disabled"}
		if overall == "healthy" {
			overall = "degraded"
		}
	}

	statusCode := http.StatusOK
	if overall == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	return c.JSON(statusCode, HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startAt).String(),
		Version:   version.Version,
		Checks:    checks,
	})
}

// Healthz is the k8s liveness probe.
func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Ready is the k8s readiness probe; only the database is required.
func (h *Handler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":  "not_ready",
			"message": "database connection failed",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ready"})
}

// Debug returns runtime internals, outside production only.
func (h *Handler) Debug(c echo.Context) error {
	if h.cfg.Environment == "production" {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return c.JSON(http.StatusOK, map[string]any{
		"environment": h.cfg.Environment,
		"debug":       h.cfg.Debug,
		"go_version":  runtime.Version(),
		"goroutines":  runtime.NumGoroutine(),
		"memory": map[string]any{
			"alloc_mb":       mem.Alloc / 1024 / 1024,
			"total_alloc_mb": mem.TotalAlloc / 1024 / 1024,
			"sys_mb":         mem.Sys / 1024 / 1024,
			"num_gc":         mem.NumGC,
		},
		"database": map[string]any{
			"host":        h.cfg.Database.Host,
			"port":        h.cfg.Database.Port,
			"database":    h.cfg.Database.Database,
			"pool_total":  h.pool.Stat().TotalConns(),
			"pool_idle":   h.pool.Stat().IdleConns(),
			"pool_in_use": h.pool.Stat().AcquiredConns(),
		},
	})
}
