package mining

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prospectlab/prospector/domain/contact"
	"github.com/prospectlab/prospector/domain/normalize"
	"github.com/prospectlab/prospector/internal/database"
	"github.com/prospectlab/prospector/pkg/apperror"
	"github.com/prospectlab/prospector/pkg/circuit"
	"github.com/prospectlab/prospector/pkg/logger"
)

// JobRunner launches and cancels mining jobs. The flow orchestrator
// provides the implementation; the indirection keeps the HTTP layer free
// of the orchestration dependency.
type JobRunner interface {
	Launch(job *MiningJob)
	Cancel(jobID uuid.UUID) bool
}

// Canonical triggers the persons/affiliations aggregation for a set of
// contacts. Best-effort by contract: callers log failures and move on.
type Canonical interface {
	AggregateContacts(ctx context.Context, tenantID, jobID uuid.UUID, contacts []contact.UnifiedContact) error
}

// Service implements the mining job and results operations.
type Service struct {
	repo      *Repository
	validator *normalize.Validator
	runner    JobRunner
	canonical Canonical
	circuits  *circuit.Manager
	log       *slog.Logger
}

// NewService creates the mining service. Runner and canonical are wired
// by their own modules after construction.
func NewService(repo *Repository, validator *normalize.Validator, circuits *circuit.Manager, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: validator,
		circuits:  circuits,
		log:       log.With(logger.Scope("mining.service")),
	}
}

// SetRunner attaches the job runner once the orchestrator exists.
func (s *Service) SetRunner(r JobRunner) { s.runner = r }

// SetCanonical attaches the canonical aggregation trigger.
func (s *Service) SetCanonical(c Canonical) { s.canonical = c }

// CreateJob validates the input and creates a pending job, then launches
// it asynchronously.
func (s *Service) CreateJob(ctx context.Context, tenantID uuid.UUID, req *CreateJobRequest) (*MiningJob, error) {
	target := strings.TrimSpace(req.URL)
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperror.ErrBadRequest.WithMessage("url must be a valid http(s) URL")
	}
	if mode := req.Config.MiningMode; mode != "" && mode != "full" && mode != "free" && mode != "ai" {
		return nil, apperror.ErrBadRequest.WithMessage("mining_mode must be one of full, free, ai")
	}

	job := &MiningJob{
		TenantID:  tenantID,
		InputURL:  target,
		Config:    req.Config,
		Status:    StatusPending,
		Stats:     JSONMap{},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if s.runner != nil {
		s.runner.Launch(job)
	} else {
		s.log.Warn("no job runner wired, job stays pending", slog.String("job_id", job.ID.String()))
	}
	return job, nil
}

// GetJob returns a tenant's job for status polling.
func (s *Service) GetJob(ctx context.Context, jobID, tenantID uuid.UUID) (*MiningJob, error) {
	return s.repo.GetJobForTenant(ctx, jobID, tenantID)
}

// ListJobs lists a tenant's jobs.
func (s *Service) ListJobs(ctx context.Context, tenantID uuid.UUID, limit int) ([]*MiningJob, error) {
	return s.repo.ListJobs(ctx, tenantID, limit)
}

// CancelJob signals the orchestrator and marks the job failed when it was
// still in flight.
func (s *Service) CancelJob(ctx context.Context, jobID, tenantID uuid.UUID) error {
	job, err := s.repo.GetJobForTenant(ctx, jobID, tenantID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return apperror.ErrBadRequest.WithMessage("job already finished")
	}

	canceled := false
	if s.runner != nil {
		canceled = s.runner.Cancel(jobID)
	}
	if !canceled {
		// Not in flight on this worker: flip the status directly.
		msg := "canceled by request"
		if err := s.repo.UpdateJobStatus(ctx, jobID, StatusFailed, &msg); err != nil {
			return err
		}
	}
	return nil
}

// IngestResults validates, deduplicates and persists externally computed
// contacts. tenantID is nil for the shared manual-miner token; ownership
// then derives from the job row.
func (s *Service) IngestResults(ctx context.Context, jobID uuid.UUID, tenantID *uuid.UUID, req *IngestRequest) (*IngestResponse, error) {
	if len(req.Results) == 0 {
		return nil, apperror.ErrBadRequest.WithMessage("results array is required")
	}

	var job *MiningJob
	var err error
	if tenantID != nil {
		job, err = s.repo.GetJobForTenant(ctx, jobID, *tenantID)
	} else {
		job, err = s.repo.GetJob(ctx, jobID)
	}
	if err != nil {
		return nil, err
	}

	// Validate and dedup before touching the database.
	set := contact.NewMergeSet()
	for _, item := range req.Results {
		c := item.toContact()
		val := s.validator.Validate(c)
		if !val.Valid {
			continue
		}
		set.Add(val.Cleaned)
	}
	merged := set.Contacts()

	inserted := 0
	totalEmails := 0
	tx, err := database.BeginSafeTx(ctx, s.repo.DB())
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	defer tx.Rollback()

	for _, c := range merged {
		isNew, err := s.repo.UpsertContact(ctx, tx.Tx, job.ID, job.TenantID, c)
		if err != nil {
			s.log.Error("ingest upsert failed", logger.Error(err))
			return nil, apperror.ErrInternal.WithInternal(err)
		}
		if isNew {
			inserted++
		}
		totalEmails += len(c.AllEmails())
	}
	if err := tx.Commit(); err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}

	if err := s.repo.BumpJobTotals(ctx, job.ID, inserted, totalEmails); err != nil {
		s.log.Warn("failed to bump job totals after ingest", logger.Error(err))
	}

	// Canonical aggregation never fails the ingest.
	if s.canonical != nil {
		if err := s.canonical.AggregateContacts(ctx, job.TenantID, job.ID, merged); err != nil {
			s.log.Warn("canonical aggregation after ingest failed", logger.Error(err))
		}
	}

	job, err = s.repo.GetJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	return &IngestResponse{
		Success:     true,
		Inserted:    inserted,
		TotalEmails: totalEmails,
		Job:         job,
	}, nil
}

// ListResults returns a filtered, clamped page of result rows.
func (s *Service) ListResults(ctx context.Context, jobID, tenantID uuid.UUID, f ResultFilter) (*ListResultsResponse, error) {
	if _, err := s.repo.GetJobForTenant(ctx, jobID, tenantID); err != nil {
		return nil, err
	}
	f = clampFilter(f)

	rows, total, err := s.repo.ListResults(ctx, jobID, tenantID, f)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*MiningResult{}
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + f.Limit - 1) / f.Limit
	}
	return &ListResultsResponse{
		Results: rows,
		Pagination: Pagination{
			Page:       f.Page,
			Limit:      f.Limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// PatchResult updates the allowlisted fields of a result row.
func (s *Service) PatchResult(ctx context.Context, resultID, tenantID uuid.UUID, patch *PatchResultRequest) (*MiningResult, error) {
	if patch.Empty() {
		return nil, apperror.ErrBadRequest.WithMessage("no updatable fields supplied")
	}
	return s.repo.PatchResult(ctx, resultID, tenantID, patch)
}

// DeleteResult removes a result row.
func (s *Service) DeleteResult(ctx context.Context, resultID, tenantID uuid.UUID) error {
	return s.repo.DeleteResult(ctx, resultID, tenantID)
}

// BlockedDomains reports domains currently rejected by the circuit
// breaker.
func (s *Service) BlockedDomains() []circuit.BlockedDomain {
	return s.circuits.BlockedDomains()
}

// clampFilter applies the listing bounds: page ≥ 1, limit in [1, 500]
// with a default of 50.
func clampFilter(f ResultFilter) ResultFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	return f
}

// toContact maps an ingest item onto the unified model.
func (i *IngestResultItem) toContact() contact.UnifiedContact {
	c := contact.UnifiedContact{
		Email:       i.Email,
		ContactName: i.ContactName,
		JobTitle:    i.JobTitle,
		CompanyName: i.CompanyName,
		Website:     i.Website,
		Country:     i.Country,
		City:        i.City,
		Address:     i.Address,
		Phone:       i.Phone,
		Source:      i.Source,
		SourceURL:   i.SourceURL,
		Confidence:  i.Confidence,
		ExtractedAt: time.Now().UTC(),
	}
	if c.Source == "" {
		c.Source = "manualMiner"
	}
	if c.Email == "" && len(i.Emails) > 0 {
		c.Email = i.Emails[0]
	}
	if len(i.Emails) > 1 {
		c.AdditionalEmails = i.Emails[1:]
	}
	if c.Confidence == 0 {
		c.Confidence = contact.DefaultMinerConfidence
	}
	c.EmailType = normalize.ClassifyEmail(c.Email)
	return c
}
