package health

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"

	"github.com/prospectlab/prospector/domain/scheduler"
)

// MetricsHandler serves the operational JSON metrics: mining job queue
// depth, import pipeline state and scheduler task status.
type MetricsHandler struct {
	db    *bun.DB
	sched *scheduler.Scheduler
}

// NewMetricsHandler creates the metrics handler.
func NewMetricsHandler(db *bun.DB, sched *scheduler.Scheduler) *MetricsHandler {
	return &MetricsHandler{db: db, sched: sched}
}

// JobQueueMetrics summarizes the mining job queue.
type JobQueueMetrics struct {
	Pending     int64 `bun:"pending" json:"pending"`
	Running     int64 `bun:"running" json:"running"`
	Completed   int64 `bun:"completed" json:"completed"`
	Failed      int64 `bun:"failed" json:"failed"`
	Total       int64 `bun:"total" json:"total"`
	LastHour    int64 `bun:"last_hour" json:"last_hour"`
	Last24Hours int64 `bun:"last_24_hours" json:"last_24_hours"`
}

// ImportQueueMetrics summarizes the background import pipeline.
type ImportQueueMetrics struct {
	Processing int64 `bun:"processing" json:"processing"`
	Completed  int64 `bun:"completed" json:"completed"`
	Failed     int64 `bun:"failed" json:"failed"`
}

// JobMetrics handles GET /api/metrics/jobs
func (h *MetricsHandler) JobMetrics(c echo.Context) error {
	ctx := c.Request().Context()

	var jobs JobQueueMetrics
	err := h.db.NewRaw(`
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'running') AS running,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE created_at > NOW() - INTERVAL '1 hour') AS last_hour,
			COUNT(*) FILTER (WHERE created_at > NOW() - INTERVAL '24 hours') AS last_24_hours
		FROM mining_jobs`).Scan(ctx, &jobs)
	if err != nil {
		return err
	}

	var imports ImportQueueMetrics
	err = h.db.NewRaw(`
		SELECT
			COUNT(*) FILTER (WHERE import_status = 'processing') AS processing,
			COUNT(*) FILTER (WHERE import_status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE import_status = 'failed') AS failed
		FROM mining_jobs`).Scan(ctx, &imports)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"jobs":      jobs,
		"imports":   imports,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// SchedulerMetrics handles GET /api/metrics/scheduler
func (h *MetricsHandler) SchedulerMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"running": h.sched.IsRunning(),
		"tasks":   h.sched.ListTasks(),
	})
}
