package importer

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/prospectlab/prospector/pkg/apperror"
	"github.com/prospectlab/prospector/pkg/auth"
)

// Handler handles the import HTTP surface.
type Handler struct {
	svc *Service
}

// NewHandler creates the import handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// StartImport handles POST /api/mining/jobs/:id/import-all
//
// Returns 202; the import continues in the background and the job row
// carries the progress.
func (h *Handler) StartImport(c echo.Context) error {
	tenant := auth.GetTenant(c)
	if tenant == nil {
		return apperror.ErrUnauthorized
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid job ID")
	}

	var req ImportRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.StartImport(c.Request().Context(), jobID, tenant.ID, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, resp)
}

// Preview handles GET /api/mining/jobs/:id/import-preview
func (h *Handler) Preview(c echo.Context) error {
	tenant := auth.GetTenant(c)
	if tenant == nil {
		return apperror.ErrUnauthorized
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid job ID")
	}

	preview, err := h.svc.Preview(c.Request().Context(), jobID, tenant.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, preview)
}
