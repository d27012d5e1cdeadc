package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/prospectlab/prospector/pkg/circuit"
	"github.com/prospectlab/prospector/pkg/costtracker"
)

// Module provides the maintenance scheduler.
var Module = fx.Module("scheduler",
	fx.Provide(
		NewConfig,
		NewScheduler,
	),
	fx.Invoke(
		RegisterTasks,
		RegisterSchedulerLifecycle,
	),
)

// TaskParams contains the dependencies of the built-in sweeps.
type TaskParams struct {
	fx.In
	Scheduler *Scheduler
	DB        *bun.DB
	Costs     *costtracker.Tracker
	Circuits  *circuit.Manager
	Log       *slog.Logger
	Cfg       *Config
}

// RegisterTasks registers the built-in maintenance sweeps.
func RegisterTasks(p TaskParams) error {
	if !p.Cfg.Enabled {
		p.Log.Info("scheduler disabled, skipping task registration")
		return nil
	}

	costTask := NewCostResetTask(p.Costs, p.Log)
	if err := addScheduledTask(p.Scheduler, p.Log, "cost_reset",
		p.Cfg.CostResetSchedule, p.Cfg.CostResetInterval, costTask.Run); err != nil {
		return err
	}

	circuitTask := NewCircuitCleanupTask(p.Circuits, p.Log)
	if err := addScheduledTask(p.Scheduler, p.Log, "circuit_cleanup",
		p.Cfg.CircuitCleanupSchedule, p.Cfg.CircuitCleanupInterval, circuitTask.Run); err != nil {
		return err
	}

	staleTask := NewStaleJobSweepTask(p.DB, p.Log, p.Cfg.StaleJobThreshold)
	if err := addScheduledTask(p.Scheduler, p.Log, "stale_job_sweep",
		p.Cfg.StaleJobSchedule, p.Cfg.StaleJobInterval, staleTask.Run); err != nil {
		return err
	}

	p.Log.Info("registered scheduled tasks",
		slog.Any("tasks", p.Scheduler.ListTasks()))
	return nil
}

// addScheduledTask registers under the cron override when one is set and
// the plain interval otherwise.
func addScheduledTask(s *Scheduler, log *slog.Logger, name, schedule string, interval time.Duration, task TaskFunc) error {
	if schedule != "" {
		return s.AddCronTask(name, schedule, task)
	}
	return s.AddIntervalTask(name, interval, task)
}

// RegisterSchedulerLifecycle ties the scheduler to the fx lifecycle.
func RegisterSchedulerLifecycle(lc fx.Lifecycle, scheduler *Scheduler, cfg *Config) {
	if !cfg.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}
