package mining

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/prospectlab/prospector/pkg/apperror"
	"github.com/prospectlab/prospector/pkg/auth"
)

// Handler handles HTTP requests for mining jobs and results.
type Handler struct {
	svc *Service
}

// NewHandler creates the mining handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateJob handles POST /api/mining/jobs
func (h *Handler) CreateJob(c echo.Context) error {
	tenant := auth.GetTenant(c)
	if tenant == nil {
		return apperror.ErrUnauthorized
	}

	var req CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	job, err := h.svc.CreateJob(c.Request().Context(), tenant.ID, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, JobResponse{Job: job})
}

// GetJob handles GET /api/mining/jobs/:id
func (h *Handler) GetJob(c echo.Context) error {
	tenant := auth.GetTenant(c)
	if tenant == nil {
		return apperror.ErrUnauthorized
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid job ID")
	}

	job, err := h.svc.GetJob(c.Request().Context(), jobID, tenant.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, JobResponse{Job: job})
}

// ListJobs handles GET /api/mining/jobs
func (h *Handler) ListJobs(c echo.Context) error {
	tenant := auth.GetTenant(c)
	if tenant == nil {
		return apperror.ErrUnauthorized
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	jobs, err := h.svc.ListJobs(c.Request().Context(), tenant.ID, limit)
	if err != nil {
		return err
	}
	if jobs == nil {
		jobs = []*MiningJob{}
	}
	return c.JSON(http.StatusOK, JobListResponse{Jobs: jobs, Total: len(jobs)})
}

// CancelJob handles POST /api/mining/jobs/:id/cancel
func (h *Handler) CancelJob(c echo.Context) error {
	tenant := auth.GetTenant(c)
	if tenant == nil {
		return apperror.ErrUnauthorized
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid job ID")
	}

	if err := h.svc.CancelJob(c.Request().Context(), jobID, tenant.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CancelResponse{JobID: jobID, Message: "mining job canceled"})
}

// IngestResults handles POST /api/mining/jobs/:id/results
//
// Accepts tenant auth or the shared manual-miner token; with the shared
// token the tenant derives from the job row.
func (h *Handler) IngestResults(c echo.Context) error {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid job ID")
	}

	tenant := auth.GetTenant(c)
	if tenant == nil {
		return apperror.ErrUnauthorized
	}
	var tenantID *uuid.UUID
	if !tenant.ManualMiner {
		tenantID = &tenant.ID
	}

	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	resp, err := h.svc.IngestResults(c.Request().Context(), jobID, tenantID, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// ListResults handles GET /api/mining/jobs/:id/results
func (h *Handler) ListResults(c echo.Context) error {
	tenant := auth.GetTenant(c)
	if tenant == nil {
		return apperror.ErrUnauthorized
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid job ID")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	filter := ResultFilter{
		Page:               page,
		Limit:              limit,
		HasEmail:           c.QueryParam("has_email"),
		Status:             c.QueryParam("status"),
		VerificationStatus: c.QueryParam("verification_status"),
		Country:            c.QueryParam("country"),
		Search:             c.QueryParam("search"),
	}
	if filter.HasEmail != "" && filter.HasEmail != "with" && filter.HasEmail != "without" {
		return apperror.ErrBadRequest.WithMessage("has_email must be 'with' or 'without'")
	}

	resp, err := h.svc.ListResults(c.Request().Context(), jobID, tenant.ID, filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// PatchResult handles PATCH /api/mining/results/:id
func (h *Handler) PatchResult(c echo.Context) error {
	tenant := auth.GetTenant(c)
	if tenant == nil {
		return apperror.ErrUnauthorized
	}
	resultID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid result ID")
	}

	var patch PatchResultRequest
	if err := c.Bind(&patch); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}

	row, err := h.svc.PatchResult(c.Request().Context(), resultID, tenant.ID, &patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, row)
}

// DeleteResult handles DELETE /api/mining/results/:id
func (h *Handler) DeleteResult(c echo.Context) error {
	tenant := auth.GetTenant(c)
	if tenant == nil {
		return apperror.ErrUnauthorized
	}
	resultID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid result ID")
	}

	if err := h.svc.DeleteResult(c.Request().Context(), resultID, tenant.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// BlockedDomains handles GET /api/mining/blocked-domains
func (h *Handler) BlockedDomains(c echo.Context) error {
	if auth.GetTenant(c) == nil {
		return apperror.ErrUnauthorized
	}
	return c.JSON(http.StatusOK, BlockedDomainsResponse{Domains: h.svc.BlockedDomains()})
}
