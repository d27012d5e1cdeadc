package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/prospectlab/prospector/pkg/circuit"
	"github.com/prospectlab/prospector/pkg/costtracker"
	"github.com/prospectlab/prospector/pkg/logger"
)

// CostResetTask drops cost ledgers whose billing month has rolled over.
type CostResetTask struct {
	costs *costtracker.Tracker
	log   *slog.Logger
}

// NewCostResetTask creates the cost reset task.
func NewCostResetTask(costs *costtracker.Tracker, log *slog.Logger) *CostResetTask {
	return &CostResetTask{
		costs: costs,
		log:   log.With(logger.Scope("scheduler.cost_reset")),
	}
}

// Run resets expired tenant month ledgers.
func (t *CostResetTask) Run(ctx context.Context) error {
	if n := t.costs.ResetExpiredMonths(); n > 0 {
		t.log.Info("reset expired cost ledgers", slog.Int("tenants", n))
	}
	return nil
}

// CircuitCleanupTask drops breakers for domains with no recent activity.
type CircuitCleanupTask struct {
	circuits *circuit.Manager
	log      *slog.Logger
}

// NewCircuitCleanupTask creates the circuit cleanup task.
func NewCircuitCleanupTask(circuits *circuit.Manager, log *slog.Logger) *CircuitCleanupTask {
	return &CircuitCleanupTask{
		circuits: circuits,
		log:      log.With(logger.Scope("scheduler.circuit_cleanup")),
	}
}

// Run removes inactive breakers.
func (t *CircuitCleanupTask) Run(ctx context.Context) error {
	if n := t.circuits.CleanupInactive(); n > 0 {
		t.log.Info("dropped inactive circuit breakers", slog.Int("domains", n))
	}
	return nil
}

// StaleJobSweepTask fails mining jobs stuck in a non-terminal status,
// usually after a worker crash mid-job.
type StaleJobSweepTask struct {
	db        *bun.DB
	log       *slog.Logger
	threshold time.Duration
}

// NewStaleJobSweepTask creates the stale job sweep.
func NewStaleJobSweepTask(db *bun.DB, log *slog.Logger, threshold time.Duration) *StaleJobSweepTask {
	if threshold <= 0 {
		threshold = 30 * time.Minute
	}
	return &StaleJobSweepTask{
		db:        db,
		log:       log.With(logger.Scope("scheduler.stale_jobs")),
		threshold: threshold,
	}
}

// Run fails every pending or running job not touched within the
// threshold. The updated_at check avoids killing long but live jobs:
// the orchestrator bumps stats as it progresses.
func (t *StaleJobSweepTask) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-t.threshold)

	res, err := t.db.NewUpdate().
		Table("mining_jobs").
		Set("status = 'failed'").
		Set("error_message = 'job marked stale by maintenance sweep'").
		Set("completed_at = now()").
		Set("updated_at = now()").
		Where("status IN ('pending', 'running')").
		Where("updated_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return err
	}

	if rows, err := res.RowsAffected(); err == nil && rows > 0 {
		t.log.Warn("failed stale mining jobs", slog.Int64("count", rows))
	}
	return nil
}
