package importer

import (
	"go.uber.org/fx"

	"github.com/prospectlab/prospector/domain/scheduler"
	"github.com/prospectlab/prospector/internal/config"
)

var Module = fx.Module("importer",
	fx.Provide(
		NewRepository,
		NewService,
		NewHandler,
	),
	fx.Invoke(
		RegisterRoutes,
		registerStaleSweep,
	),
)

// registerStaleSweep recovers imports abandoned by a crashed worker.
func registerStaleSweep(sched *scheduler.Scheduler, svc *Service, cfg *config.Config) error {
	return sched.AddIntervalTask("stale_import_sweep", cfg.Import.StaleThreshold, svc.RecoverStale)
}
