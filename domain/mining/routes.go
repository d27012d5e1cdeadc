package mining

import (
	"github.com/labstack/echo/v4"

	"github.com/prospectlab/prospector/pkg/auth"
)

// RegisterRoutes registers the mining job and result routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/mining")

	jobs := g.Group("/jobs")
	jobs.Use(authMiddleware.RequireAuth())
	jobs.POST("", h.CreateJob)
	jobs.GET("", h.ListJobs)
	jobs.GET("/:id", h.GetJob)
	jobs.POST("/:id/cancel", h.CancelJob)
	jobs.GET("/:id/results", h.ListResults)

	// The ingest route also accepts the shared manual-miner token.
	ingest := g.Group("/jobs")
	ingest.Use(authMiddleware.RequireAuthOrManualMiner())
	ingest.POST("/:id/results", h.IngestResults)

	results := g.Group("/results")
	results.Use(authMiddleware.RequireAuth())
	results.PATCH("/:id", h.PatchResult)
	results.DELETE("/:id", h.DeleteResult)

	blocked := g.Group("/blocked-domains")
	blocked.Use(authMiddleware.RequireAuth())
	blocked.GET("", h.BlockedDomains)
}
