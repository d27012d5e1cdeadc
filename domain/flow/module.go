package flow

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/prospectlab/prospector/domain/mining"
	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/internal/jobs"
)

var Module = fx.Module("flow",
	fx.Provide(
		NewPaginator,
		NewOrchestrator,
		NewFlow2Listener,
	),
	fx.Invoke(
		func(svc *mining.Service, orch *Orchestrator) {
			svc.SetRunner(orch)
		},
		registerListener,
		registerRecoveryWorker,
	),
)

const (
	recoveryPollInterval = 30 * time.Second
	recoveryMinAge       = time.Minute
)

// registerRecoveryWorker polls for pending jobs that were never launched,
// typically because the process restarted between create and pickup, and
// hands them to the orchestrator.
func registerRecoveryWorker(lc fx.Lifecycle, repo *mining.Repository, orch *Orchestrator, log *slog.Logger) {
	worker := jobs.NewWorker(jobs.WorkerConfig{
		Name:         "pending_job_recovery",
		PollInterval: recoveryPollInterval,
	}, log, func(ctx context.Context) error {
		stale, err := repo.ListStalePending(ctx, recoveryMinAge, 20)
		if err != nil {
			return err
		}
		for _, job := range stale {
			log.Info("relaunching stale pending job", slog.String("job_id", job.ID.String()))
			orch.Launch(job)
		}
		return nil
	})
	lc.Append(fx.Hook{
		OnStart: worker.Start,
		OnStop:  worker.Stop,
	})
}

// registerListener starts the Flow-2 subscription for the lifetime of the
// process. Shutdown cancels the subscription first, then waits out the
// configured grace period for enrichment jobs already in flight.
func registerListener(lc fx.Lifecycle, listener *Flow2Listener, cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return listener.Start(ctx)
		},
		OnStop: func(context.Context) error {
			cancel()
			listener.Drain(cfg.Mining.Flow2Grace)
			return nil
		},
	})
}
