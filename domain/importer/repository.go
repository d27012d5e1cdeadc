// Package importer moves mining results into the legacy prospect tables
// as a resumable background pipeline: batched reads, per-row savepoints
// and poll-visible progress on the job row.
package importer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/prospectlab/prospector/domain/mining"
	"github.com/prospectlab/prospector/pkg/apperror"
	"github.com/prospectlab/prospector/pkg/logger"
)

// Repository handles the importer's database operations.
type Repository struct {
	db  *bun.DB
	log *slog.Logger
}

// NewRepository creates the importer repository.
func NewRepository(db *bun.DB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("importer.repo")),
	}
}

// DB exposes the underlying handle for transaction starters.
func (r *Repository) DB() *bun.DB { return r.db }

// ListNameExists reports whether the tenant already has a list with this
// name, case-insensitively.
func (r *Repository) ListNameExists(ctx context.Context, tenantID uuid.UUID, name string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*mining.List)(nil)).
		Where("tenant_id = ?", tenantID).
		Where("lower(name) = lower(?)", name).
		Exists(ctx)
	if err != nil {
		return false, apperror.ErrInternal.WithInternal(err)
	}
	return exists, nil
}

// CreateList inserts a new prospect list.
func (r *Repository) CreateList(ctx context.Context, list *mining.List) error {
	if _, err := r.db.NewInsert().Model(list).Exec(ctx); err != nil {
		r.log.Error("failed to create list", logger.Error(err))
		return apperror.ErrInternal.WithInternal(err)
	}
	return nil
}

// NextBatch fetches the next slice of unimported result rows in stable
// id order. Imported rows flip status, so no offset is needed.
func (r *Repository) NextBatch(ctx context.Context, jobID uuid.UUID, limit int) ([]*mining.MiningResult, error) {
	var rows []*mining.MiningResult
	err := r.db.NewSelect().
		Model(&rows).
		Where("job_id = ?", jobID).
		Where("status = ?", mining.ResultStatusNew).
		OrderExpr("id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	return rows, nil
}

// UpsertProspect writes one prospect keyed by (tenant, lower(email)).
// Tags accumulate as a sorted set; the name only fills a blank.
func (r *Repository) UpsertProspect(ctx context.Context, idb bun.IDB, p *mining.Prospect) (uuid.UUID, error) {
	_, err := idb.NewInsert().
		Model(p).
		Column("tenant_id", "email", "name", "tags", "metadata").
		On("CONFLICT (tenant_id, lower(email)) DO UPDATE").
		Set("name = COALESCE(NULLIF(prospects.name, ''), EXCLUDED.name)").
		Set("tags = ARRAY(SELECT DISTINCT t FROM unnest(prospects.tags || EXCLUDED.tags) AS t ORDER BY t)").
		Set("metadata = prospects.metadata || EXCLUDED.metadata").
		Set("updated_at = now()").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

// AddListMember links a prospect into a list, idempotently.
func (r *Repository) AddListMember(ctx context.Context, idb bun.IDB, member *mining.ListMember) error {
	_, err := idb.NewInsert().
		Model(member).
		On("CONFLICT (list_id, prospect_id) DO NOTHING").
		Exec(ctx)
	return err
}

// MarkResultImported flips one result row to imported.
func (r *Repository) MarkResultImported(ctx context.Context, idb bun.IDB, resultID uuid.UUID) error {
	_, err := idb.NewUpdate().
		Model((*mining.MiningResult)(nil)).
		Set("status = ?", mining.ResultStatusImported).
		Set("imported_at = now()").
		Set("updated_at = now()").
		Where("id = ?", resultID).
		Exec(ctx)
	return err
}

// SetImportState writes the import status, start marker and progress blob
// on the job row in one statement.
func (r *Repository) SetImportState(ctx context.Context, jobID uuid.UUID, status string, startedAt *time.Time, progress *mining.ImportProgress) error {
	blob, err := json.Marshal(progress)
	if err != nil {
		return apperror.ErrInternal.WithInternal(err)
	}
	q := r.db.NewUpdate().
		Model((*mining.MiningJob)(nil)).
		Set("import_status = ?", status).
		Set("import_progress = ?::jsonb", string(blob)).
		Set("updated_at = now()").
		Where("id = ?", jobID)
	if startedAt != nil {
		q = q.Set("import_started_at = ?", *startedAt)
	}
	if _, err := q.Exec(ctx); err != nil {
		r.log.Error("failed to update import state", logger.Error(err))
		return apperror.ErrInternal.WithInternal(err)
	}
	return nil
}

// UpdateImportProgress refreshes only the progress blob.
func (r *Repository) UpdateImportProgress(ctx context.Context, jobID uuid.UUID, progress *mining.ImportProgress) error {
	blob, merr := json.Marshal(progress)
	if merr != nil {
		return apperror.ErrInternal.WithInternal(merr)
	}
	_, err := r.db.NewUpdate().
		Model((*mining.MiningJob)(nil)).
		Set("import_progress = ?::jsonb", string(blob)).
		Set("updated_at = now()").
		Where("id = ?", jobID).
		Exec(ctx)
	if err != nil {
		return apperror.ErrInternal.WithInternal(err)
	}
	return nil
}

// CountListMembers counts the members of a list.
func (r *Repository) CountListMembers(ctx context.Context, listID uuid.UUID) (int, error) {
	count, err := r.db.NewSelect().
		Model((*mining.ListMember)(nil)).
		Where("list_id = ?", listID).
		Count(ctx)
	if err != nil {
		return 0, apperror.ErrInternal.WithInternal(err)
	}
	return count, nil
}

// RecoverStaleImports fails imports whose worker stopped reporting
// within the threshold, so a client retry can start over.
func (r *Repository) RecoverStaleImports(ctx context.Context, threshold time.Duration) (int64, error) {
	cutoff := time.Now().Add(-threshold)
	res, err := r.db.NewUpdate().
		Model((*mining.MiningJob)(nil)).
		Set("import_status = ?", mining.ImportStatusFailed).
		Set(`import_progress = coalesce(import_progress, '{}'::jsonb) || jsonb_build_object('failed_at', now(), 'error', 'import marked stale by maintenance sweep')`).
		Set("updated_at = now()").
		Where("import_status = ?", mining.ImportStatusProcessing).
		Where("import_started_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
