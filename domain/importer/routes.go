package importer

import (
	"github.com/labstack/echo/v4"

	"github.com/prospectlab/prospector/pkg/auth"
)

// RegisterRoutes registers the import routes under the mining job tree.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/mining/jobs")
	g.Use(authMiddleware.RequireAuth())
	g.POST("/:id/import-all", h.StartImport)
	g.GET("/:id/import-preview", h.Preview)
}
