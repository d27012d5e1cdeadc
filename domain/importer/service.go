package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prospectlab/prospector/domain/aggregate"
	"github.com/prospectlab/prospector/domain/contact"
	"github.com/prospectlab/prospector/domain/mining"
	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/internal/database"
	"github.com/prospectlab/prospector/pkg/apperror"
	"github.com/prospectlab/prospector/pkg/logger"
	"github.com/prospectlab/prospector/pkg/metrics"
)

// Service runs the background prospect import.
type Service struct {
	repo      *Repository
	jobs      *mining.Repository
	canonical *aggregate.Canonical
	cfg       *config.Config
	log       *slog.Logger
}

// NewService creates the importer service.
func NewService(repo *Repository, jobs *mining.Repository, canonical *aggregate.Canonical, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		jobs:      jobs,
		canonical: canonical,
		cfg:       cfg,
		log:       log.With(logger.Scope("importer")),
	}
}

// StartImport validates the request, marks the job as importing and kicks
// off the background run. The response mirrors the job's new state; the
// caller polls the job for progress.
func (s *Service) StartImport(ctx context.Context, jobID, tenantID uuid.UUID, req *ImportRequest) (*ImportResponse, error) {
	job, err := s.jobs.GetJobForTenant(ctx, jobID, tenantID)
	if err != nil {
		return nil, err
	}

	// A live concurrent import wins; a stale one is overridden, its
	// worker is gone.
	if job.ImportStatus == mining.ImportStatusProcessing && job.ImportStarted != nil &&
		time.Since(*job.ImportStarted) < s.cfg.Import.StaleThreshold {
		return nil, apperror.ErrImportInProgress
	}

	var list *mining.List
	if name := strings.TrimSpace(req.ListName); name != "" {
		exists, err := s.repo.ListNameExists(ctx, tenantID, name)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperror.ErrListExists
		}
		list = &mining.List{TenantID: tenantID, Name: name, CreatedAt: time.Now().UTC()}
		if err := s.repo.CreateList(ctx, list); err != nil {
			return nil, err
		}
	}

	preview, err := s.jobs.CountImportPreview(ctx, jobID, tenantID)
	if err != nil {
		return nil, err
	}
	total := pendingTotal(preview)

	now := time.Now().UTC()
	progress := &mining.ImportProgress{
		Total:       total,
		TagsApplied: req.Tags,
		StartedAt:   &now,
	}
	if list != nil {
		progress.ListID = &list.ID
	}
	if err := s.repo.SetImportState(ctx, jobID, mining.ImportStatusProcessing, &now, progress); err != nil {
		return nil, err
	}

	go s.run(job, list, req.Tags, progress)

	resp := &ImportResponse{
		Status:        mining.ImportStatusProcessing,
		JobID:         jobID,
		TotalToImport: total,
		TagsApplied:   req.Tags,
	}
	if list != nil {
		resp.ListCreated = list
	}
	return resp, nil
}

// pendingTotal counts the rows an import run will still walk: every
// row flips to imported when processed (prospect written, skipped or
// duplicate alike), so only rows already imported are excluded. Summing
// the importable and email-less counters instead would re-count rows a
// previous run already handled.
func pendingTotal(p *mining.ImportPreview) int {
	return p.TotalResults - p.AlreadyImported
}

// Preview returns the import counters for a job.
func (s *Service) Preview(ctx context.Context, jobID, tenantID uuid.UUID) (*mining.ImportPreview, error) {
	if _, err := s.jobs.GetJobForTenant(ctx, jobID, tenantID); err != nil {
		return nil, err
	}
	return s.jobs.CountImportPreview(ctx, jobID, tenantID)
}

// RecoverStale fails imports abandoned by a dead worker.
func (s *Service) RecoverStale(ctx context.Context) error {
	n, err := s.repo.RecoverStaleImports(ctx, s.cfg.Import.StaleThreshold)
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Warn("recovered stale imports", slog.Int64("count", n))
	}
	return nil
}

// run drives the whole import in the background. Every batch is one
// transaction; a failed row rolls back to its savepoint and is recorded,
// never aborting the batch.
func (s *Service) run(job *mining.MiningJob, list *mining.List, tags []string, progress *mining.ImportProgress) {
	ctx := context.Background()
	log := s.log.With(slog.String("job_id", job.ID.String()))
	log.Info("import started", slog.Int("total", progress.Total))

	for {
		rows, err := s.repo.NextBatch(ctx, job.ID, s.cfg.Import.BatchSize)
		if err != nil {
			s.finishFailed(ctx, job.ID, progress, err, log)
			return
		}
		if len(rows) == 0 {
			break
		}

		progress.CurrentBatch++
		if err := s.processBatch(ctx, job, list, tags, rows, progress); err != nil {
			s.finishFailed(ctx, job.ID, progress, err, log)
			return
		}
		metrics.ImportBatches.Inc()

		if err := s.repo.UpdateImportProgress(ctx, job.ID, progress); err != nil {
			log.Warn("failed to update import progress", logger.Error(err))
		}
	}

	if list != nil {
		if count, err := s.repo.CountListMembers(ctx, list.ID); err == nil {
			progress.ListMemberCount = &count
		}
	}
	now := time.Now().UTC()
	progress.FinishedAt = &now
	if err := s.repo.SetImportState(ctx, job.ID, mining.ImportStatusCompleted, nil, progress); err != nil {
		log.Error("failed to finalize import", logger.Error(err))
		return
	}
	log.Info("import completed",
		slog.Int("imported", progress.Imported),
		slog.Int("skipped", progress.Skipped),
		slog.Int("duplicates", progress.Duplicates),
	)
}

// processBatch imports one batch in a single transaction.
func (s *Service) processBatch(ctx context.Context, job *mining.MiningJob, list *mining.List, tags []string, rows []*mining.MiningResult, progress *mining.ImportProgress) error {
	plan := planBatch(rows)

	tx, err := database.BeginSafeTx(ctx, s.repo.DB())
	if err != nil {
		return fmt.Errorf("begin import tx: %w", err)
	}
	defer tx.Rollback()

	// Rows that cannot produce a prospect still flip to imported so the
	// batch cursor advances.
	for _, row := range plan.noEmail {
		if err := s.repo.MarkResultImported(ctx, tx.Tx, row.ID); err != nil {
			return err
		}
		progress.Skipped++
		metrics.ImportRows.WithLabelValues("skipped").Inc()
	}
	for _, row := range plan.duplicates {
		if err := s.repo.MarkResultImported(ctx, tx.Tx, row.ID); err != nil {
			return err
		}
		progress.Duplicates++
		metrics.ImportRows.WithLabelValues("duplicate").Inc()
	}

	for i, row := range plan.keep {
		sp := fmt.Sprintf("import_row_%d", i)
		if err := tx.Savepoint(ctx, sp); err != nil {
			return err
		}
		if err := s.importRow(ctx, tx, job, list, tags, row); err != nil {
			if rbErr := tx.RollbackToSavepoint(ctx, sp); rbErr != nil {
				return rbErr
			}
			s.recordError(progress, row.ID, err)
			metrics.ImportRows.WithLabelValues("error").Inc()
			continue
		}
		if err := tx.ReleaseSavepoint(ctx, sp); err != nil {
			return err
		}
		progress.Imported++
		metrics.ImportRows.WithLabelValues("imported").Inc()
	}

	return tx.Commit()
}

// importRow writes one prospect, its list membership and the canonical
// rows, then flips the result row.
func (s *Service) importRow(ctx context.Context, tx *database.SafeTx, job *mining.MiningJob, list *mining.List, tags []string, row *mining.MiningResult) error {
	prospect := &mining.Prospect{
		TenantID: job.TenantID,
		Email:    strings.ToLower(row.PrimaryEmail()),
		Name:     row.ContactName,
		Tags:     append([]string{}, tags...),
		Metadata: mining.JSONMap{
			"source_job_id": job.ID.String(),
			"source_url":    row.SourceURL,
			"company_name":  row.CompanyName,
		},
	}
	prospectID, err := s.repo.UpsertProspect(ctx, tx.Tx, prospect)
	if err != nil {
		return fmt.Errorf("upsert prospect: %w", err)
	}

	if list != nil {
		member := &mining.ListMember{
			ListID:     list.ID,
			ProspectID: prospectID,
			TenantID:   job.TenantID,
		}
		if err := s.repo.AddListMember(ctx, tx.Tx, member); err != nil {
			return fmt.Errorf("add list member: %w", err)
		}
	}

	if s.canonical.WritesEnabled() {
		c := rowContact(row)
		personID, err := s.canonical.UpsertPerson(ctx, tx.Tx, job.TenantID, c)
		if err != nil {
			return err
		}
		if _, err := s.canonical.UpsertAffiliation(ctx, tx.Tx, job.TenantID, personID, c, "import", job.ID.String()); err != nil {
			return err
		}
	}

	return s.repo.MarkResultImported(ctx, tx.Tx, row.ID)
}

func (s *Service) finishFailed(ctx context.Context, jobID uuid.UUID, progress *mining.ImportProgress, cause error, log *slog.Logger) {
	now := time.Now().UTC()
	progress.FailedAt = &now
	progress.Error = cause.Error()
	if err := s.repo.SetImportState(ctx, jobID, mining.ImportStatusFailed, nil, progress); err != nil {
		log.Error("failed to record import failure", logger.Error(err))
	}
	log.Error("import failed", logger.Error(cause))
}

// recordError keeps the most recent row failures, bounded by the
// configured window.
func (s *Service) recordError(progress *mining.ImportProgress, rowID uuid.UUID, err error) {
	progress.Errors = append(progress.Errors, mining.ImportError{ID: rowID, Error: err.Error()})
	if limit := s.cfg.Import.MaxErrors; len(progress.Errors) > limit {
		progress.Errors = progress.Errors[len(progress.Errors)-limit:]
	}
}

// batchPlan partitions one batch: rows to import sorted by email for a
// stable lock order, intra-batch duplicates and rows without an email.
type batchPlan struct {
	keep       []*mining.MiningResult
	duplicates []*mining.MiningResult
	noEmail    []*mining.MiningResult
}

// planBatch deduplicates a batch by lowercased primary email. The first
// occurrence in id order wins.
func planBatch(rows []*mining.MiningResult) batchPlan {
	var plan batchPlan
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		email := strings.ToLower(row.PrimaryEmail())
		if email == "" {
			plan.noEmail = append(plan.noEmail, row)
			continue
		}
		if _, dup := seen[email]; dup {
			plan.duplicates = append(plan.duplicates, row)
			continue
		}
		seen[email] = struct{}{}
		plan.keep = append(plan.keep, row)
	}

	// Cross-batch concurrent imports touch prospects in the same order.
	sort.Slice(plan.keep, func(i, j int) bool {
		return strings.ToLower(plan.keep[i].PrimaryEmail()) < strings.ToLower(plan.keep[j].PrimaryEmail())
	})
	return plan
}

// rowContact maps a result row onto the unified model for the canonical
// upserts.
func rowContact(row *mining.MiningResult) contact.UnifiedContact {
	return contact.UnifiedContact{
		Email:       row.PrimaryEmail(),
		ContactName: row.ContactName,
		CompanyName: row.CompanyName,
		JobTitle:    row.JobTitle,
		Website:     row.Website,
		Country:     row.Country,
		City:        row.City,
		Address:     row.Address,
		Phone:       row.Phone,
		SourceURL:   row.SourceURL,
		Confidence:  row.Confidence,
	}
}
