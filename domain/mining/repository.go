package mining

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/prospectlab/prospector/domain/contact"
	"github.com/prospectlab/prospector/pkg/apperror"
	"github.com/prospectlab/prospector/pkg/logger"
)

// Repository handles database operations for mining jobs and results.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates the mining repository.
func NewRepository(db *bun.DB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("mining.repo")),
	}
}

// DB exposes the underlying handle for transaction starters.
func (r *Repository) DB() bun.IDB { return r.db }

// CreateJob inserts a new mining job.
func (r *Repository) CreateJob(ctx context.Context, job *MiningJob) error {
	_, err := r.db.NewInsert().Model(job).Exec(ctx)
	if err != nil {
		r.log.Error("failed to create mining job", logger.Error(err))
		return apperror.ErrInternal.WithInternal(err)
	}
	return nil
}

// GetJob retrieves a job by ID without tenant scoping. Internal callers
// only; the HTTP layer goes through GetJobForTenant.
func (r *Repository) GetJob(ctx context.Context, jobID uuid.UUID) (*MiningJob, error) {
	job := &MiningJob{}
	err := r.db.NewSelect().Model(job).Where("mj.id = ?", jobID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrJobNotFound
		}
		r.log.Error("failed to get mining job", logger.Error(err))
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	return job, nil
}

// GetJobForTenant retrieves a job owned by the tenant.
func (r *Repository) GetJobForTenant(ctx context.Context, jobID, tenantID uuid.UUID) (*MiningJob, error) {
	job := &MiningJob{}
	err := r.db.NewSelect().
		Model(job).
		Where("mj.id = ?", jobID).
		Where("mj.tenant_id = ?", tenantID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrJobNotFound
		}
		r.log.Error("failed to get mining job", logger.Error(err))
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	return job, nil
}

// ListJobs lists a tenant's jobs, newest first.
func (r *Repository) ListJobs(ctx context.Context, tenantID uuid.UUID, limit int) ([]*MiningJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []*MiningJob
	err := r.db.NewSelect().
		Model(&jobs).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to list mining jobs", logger.Error(err))
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	return jobs, nil
}

// ListStalePending returns pending jobs that were never picked up, oldest
// first. Used by the recovery worker after a restart.
func (r *Repository) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*MiningJob, error) {
	if limit <= 0 {
		limit = 20
	}
	var jobs []*MiningJob
	err := r.db.NewSelect().
		Model(&jobs).
		Where("status = ?", StatusPending).
		Where("created_at < now() - ?::interval", fmt.Sprintf("%d seconds", int(olderThan.Seconds()))).
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to list stale pending jobs", logger.Error(err))
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	return jobs, nil
}

// UpdateJobStatus sets the job status and optional error message.
func (r *Repository) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string, errorMessage *string) error {
	q := r.db.NewUpdate().
		Model((*MiningJob)(nil)).
		Set("status = ?", status).
		Set("updated_at = now()").
		Where("id = ?", jobID)
	if errorMessage != nil {
		q = q.Set("error_message = ?", *errorMessage)
	}
	if status == StatusCompleted || status == StatusFailed {
		q = q.Set("completed_at = now()")
	}
	if _, err := q.Exec(ctx); err != nil {
		r.log.Error("failed to update job status", logger.Error(err))
		return apperror.ErrInternal.WithInternal(err)
	}
	return nil
}

// UpdateJobStats merges the stats blob onto the job.
func (r *Repository) UpdateJobStats(ctx context.Context, jobID uuid.UUID, stats JSONMap) error {
	_, err := r.db.NewUpdate().
		Model((*MiningJob)(nil)).
		Set("stats = stats || ?", stats).
		Set("updated_at = now()").
		Where("id = ?", jobID).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to update job stats", logger.Error(err))
		return apperror.ErrInternal.WithInternal(err)
	}
	return nil
}

// FinalizeJob marks the job completed with its totals inside the caller's
// transaction.
func (r *Repository) FinalizeJob(ctx context.Context, idb bun.IDB, jobID uuid.UUID, totalFound, totalEmailsRaw int, stats JSONMap) error {
	q := idb.NewUpdate().
		Model((*MiningJob)(nil)).
		Set("status = ?", StatusCompleted).
		Set("total_found = ?", totalFound).
		Set("total_emails_raw = ?", totalEmailsRaw).
		Set("completed_at = now()").
		Set("updated_at = now()").
		Where("id = ?", jobID)
	if stats != nil {
		q = q.Set("stats = stats || ?", stats)
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("finalize job: %w", err)
	}
	return nil
}

// BumpJobTotals adds to the job counters outside a finalization, used by
// the external-results ingest.
func (r *Repository) BumpJobTotals(ctx context.Context, jobID uuid.UUID, found, emails int) error {
	_, err := r.db.NewUpdate().
		Model((*MiningJob)(nil)).
		Set("total_found = total_found + ?", found).
		Set("total_emails_raw = total_emails_raw + ?", emails).
		Set("updated_at = now()").
		Where("id = ?", jobID).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to bump job totals", logger.Error(err))
		return apperror.ErrInternal.WithInternal(err)
	}
	return nil
}

// ListResults returns a filtered page of result rows plus the total count.
func (r *Repository) ListResults(ctx context.Context, jobID, tenantID uuid.UUID, f ResultFilter) ([]*MiningResult, int, error) {
	var rows []*MiningResult
	q := r.db.NewSelect().
		Model(&rows).
		Where("mr.job_id = ?", jobID).
		Where("mr.tenant_id = ?", tenantID)

	switch f.HasEmail {
	case "with":
		q = q.Where("cardinality(mr.emails) > 0")
	case "without":
		q = q.Where("cardinality(mr.emails) = 0")
	}
	if f.Status != "" {
		q = q.Where("mr.status = ?", f.Status)
	}
	if f.VerificationStatus != "" {
		q = q.Where("mr.verification_status = ?", f.VerificationStatus)
	}
	if f.Country != "" {
		q = q.Where("mr.country ILIKE ?", "%"+f.Country+"%")
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				WhereOr("mr.company_name ILIKE ?", pattern).
				WhereOr("mr.contact_name ILIKE ?", pattern).
				WhereOr("mr.website ILIKE ?", pattern).
				WhereOr("mr.source_url ILIKE ?", pattern).
				WhereOr("array_to_string(mr.emails, ',') ILIKE ?", pattern)
		})
	}

	total, err := q.Count(ctx)
	if err != nil {
		r.log.Error("failed to count mining results", logger.Error(err))
		return nil, 0, apperror.ErrInternal.WithInternal(err)
	}

	err = q.Order("mr.id ASC").
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit).
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to list mining results", logger.Error(err))
		return nil, 0, apperror.ErrInternal.WithInternal(err)
	}
	return rows, total, nil
}

// ImportPreview summarizes a job's rows for the import-preview route.
type ImportPreview struct {
	TotalResults    int `json:"total_results"`
	WithEmail       int `json:"with_email"`
	Importable      int `json:"importable"`
	AlreadyImported int `json:"already_imported"`
	WithoutEmail    int `json:"without_email"`
}

// CountImportPreview computes the preview counters in one scan.
func (r *Repository) CountImportPreview(ctx context.Context, jobID, tenantID uuid.UUID) (*ImportPreview, error) {
	preview := &ImportPreview{}
	err := r.db.NewSelect().
		Model((*MiningResult)(nil)).
		ColumnExpr("count(*) AS total_results").
		ColumnExpr("count(*) FILTER (WHERE cardinality(emails) > 0) AS with_email").
		ColumnExpr("count(*) FILTER (WHERE cardinality(emails) > 0 AND status != ?) AS importable", ResultStatusImported).
		ColumnExpr("count(*) FILTER (WHERE status = ?) AS already_imported", ResultStatusImported).
		ColumnExpr("count(*) FILTER (WHERE cardinality(emails) = 0) AS without_email").
		Where("job_id = ?", jobID).
		Where("tenant_id = ?", tenantID).
		Scan(ctx, preview)
	if err != nil {
		r.log.Error("failed to compute import preview", logger.Error(err))
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	return preview, nil
}

// PatchResult updates the allowlisted fields of one row, tenant-scoped
// through the owning job.
func (r *Repository) PatchResult(ctx context.Context, resultID, tenantID uuid.UUID, patch *PatchResultRequest) (*MiningResult, error) {
	q := r.db.NewUpdate().
		Model((*MiningResult)(nil)).
		Set("updated_at = now()").
		Where("id = ?", resultID).
		Where("EXISTS (SELECT 1 FROM mining_jobs j WHERE j.id = mr.job_id AND j.tenant_id = ?)", tenantID)

	set := func(col string, v *string) {
		if v != nil {
			q = q.Set(col+" = ?", strings.TrimSpace(*v))
		}
	}
	set("company_name", patch.CompanyName)
	set("contact_name", patch.ContactName)
	set("job_title", patch.JobTitle)
	set("phone", patch.Phone)
	set("country", patch.Country)
	set("city", patch.City)
	set("address", patch.Address)
	set("website", patch.Website)
	set("verification_status", patch.VerificationStatus)

	res, err := q.Exec(ctx)
	if err != nil {
		r.log.Error("failed to patch mining result", logger.Error(err))
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, apperror.ErrNotFound.WithMessage("mining result not found")
	}

	row := &MiningResult{}
	if err := r.db.NewSelect().Model(row).Where("mr.id = ?", resultID).Scan(ctx); err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	return row, nil
}

// DeleteResult removes one row, tenant-scoped through the owning job.
func (r *Repository) DeleteResult(ctx context.Context, resultID, tenantID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*MiningResult)(nil)).
		Where("id = ?", resultID).
		Where("EXISTS (SELECT 1 FROM mining_jobs j WHERE j.id = mr.job_id AND j.tenant_id = ?)", tenantID).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to delete mining result", logger.Error(err))
		return apperror.ErrInternal.WithInternal(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperror.ErrNotFound.WithMessage("mining result not found")
	}
	return nil
}

// UpsertContact writes one merged contact per the aggregation rules:
// email-keyed rows update by (job, email-in-array) with new-wins-if-set
// fields and MAX confidence; profile-only rows update by (job, name,
// source_url, empty emails) with LEAST confidence and never touch an
// email-keyed row. Returns whether a new row was inserted.
func (r *Repository) UpsertContact(ctx context.Context, idb bun.IDB, jobID, tenantID uuid.UUID, c contact.UnifiedContact) (bool, error) {
	if c.HasEmail() {
		return r.upsertEmailContact(ctx, idb, jobID, tenantID, c)
	}
	return r.upsertProfileContact(ctx, idb, jobID, tenantID, c)
}

func (r *Repository) upsertEmailContact(ctx context.Context, idb bun.IDB, jobID, tenantID uuid.UUID, c contact.UnifiedContact) (bool, error) {
	emails := c.AllEmails()
	key := c.EmailKey()

	existing := &MiningResult{}
	err := idb.NewSelect().
		Model(existing).
		Where("mr.job_id = ?", jobID).
		Where("? = ANY (mr.emails)", key).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		row := resultRowFromContact(jobID, tenantID, c)
		row.Emails = emails
		if _, err := idb.NewInsert().Model(row).Exec(ctx); err != nil {
			return false, fmt.Errorf("insert result row: %w", err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("lookup result row: %w", err)
	}

	_, err = idb.NewUpdate().
		Model((*MiningResult)(nil)).
		Set("source_url = COALESCE(NULLIF(?, ''), source_url)", c.SourceURL).
		Set("company_name = COALESCE(NULLIF(?, ''), company_name)", c.CompanyName).
		Set("contact_name = COALESCE(NULLIF(?, ''), contact_name)", c.ContactName).
		Set("job_title = COALESCE(NULLIF(?, ''), job_title)", c.JobTitle).
		Set("phone = COALESCE(NULLIF(?, ''), phone)", c.Phone).
		Set("country = COALESCE(NULLIF(?, ''), country)", c.Country).
		Set("city = COALESCE(NULLIF(?, ''), city)", c.City).
		Set("address = COALESCE(NULLIF(?, ''), address)", c.Address).
		Set("website = COALESCE(NULLIF(?, ''), website)", c.Website).
		Set("confidence = GREATEST(confidence, ?)", c.Confidence).
		Set("emails = ?", pgdialect.Array(mergeEmails(existing.Emails, emails))).
		Set("updated_at = now()").
		Where("id = ?", existing.ID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("update result row: %w", err)
	}
	return false, nil
}

func (r *Repository) upsertProfileContact(ctx context.Context, idb bun.IDB, jobID, tenantID uuid.UUID, c contact.UnifiedContact) (bool, error) {
	name := strings.TrimSpace(c.ContactName)
	if name == "" || strings.TrimSpace(c.SourceURL) == "" {
		return false, nil
	}

	existing := &MiningResult{}
	err := idb.NewSelect().
		Model(existing).
		Where("mr.job_id = ?", jobID).
		Where("lower(mr.contact_name) = lower(?)", name).
		Where("lower(mr.source_url) = lower(?)", c.SourceURL).
		Where("cardinality(mr.emails) = 0").
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		row := resultRowFromContact(jobID, tenantID, c)
		row.Emails = []string{}
		if row.Confidence > contact.ProfileOnlyCap {
			row.Confidence = contact.ProfileOnlyCap
		}
		if _, err := idb.NewInsert().Model(row).Exec(ctx); err != nil {
			return false, fmt.Errorf("insert profile row: %w", err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("lookup profile row: %w", err)
	}

	_, err = idb.NewUpdate().
		Model((*MiningResult)(nil)).
		Set("company_name = COALESCE(NULLIF(?, ''), company_name)", c.CompanyName).
		Set("job_title = COALESCE(NULLIF(?, ''), job_title)", c.JobTitle).
		Set("phone = COALESCE(NULLIF(?, ''), phone)", c.Phone).
		Set("country = COALESCE(NULLIF(?, ''), country)", c.Country).
		Set("city = COALESCE(NULLIF(?, ''), city)", c.City).
		Set("address = COALESCE(NULLIF(?, ''), address)", c.Address).
		Set("website = COALESCE(NULLIF(?, ''), website)", c.Website).
		Set("confidence = LEAST(confidence, ?)", clampProfileConfidence(c.Confidence)).
		Set("updated_at = now()").
		Where("id = ?", existing.ID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("update profile row: %w", err)
	}
	return false, nil
}

func clampProfileConfidence(confidence int) int {
	if confidence > contact.ProfileOnlyCap {
		return contact.ProfileOnlyCap
	}
	if confidence < 0 {
		return 0
	}
	return confidence
}

func resultRowFromContact(jobID, tenantID uuid.UUID, c contact.UnifiedContact) *MiningResult {
	raw := JSONMap{
		"source":       c.Source,
		"email_type":   c.EmailType,
		"extracted_at": c.ExtractedAt,
	}
	if c.Evidence != nil {
		raw["evidence"] = c.Evidence
	}
	confidence := c.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > contact.MaxConfidence {
		confidence = contact.MaxConfidence
	}
	return &MiningResult{
		JobID:       jobID,
		TenantID:    tenantID,
		SourceURL:   c.SourceURL,
		CompanyName: c.CompanyName,
		ContactName: c.ContactName,
		JobTitle:    c.JobTitle,
		Phone:       c.Phone,
		Country:     c.Country,
		City:        c.City,
		Address:     c.Address,
		Website:     c.Website,
		Confidence:  confidence,
		Status:      ResultStatusNew,
		Raw:         raw,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

// mergeEmails unions two lowercase email lists preserving order.
func mergeEmails(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, e := range list {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}
