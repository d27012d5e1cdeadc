package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prospectlab/prospector/domain/aggregate"
	"github.com/prospectlab/prospector/domain/contact"
	"github.com/prospectlab/prospector/domain/extractor"
	"github.com/prospectlab/prospector/domain/mining"
	"github.com/prospectlab/prospector/domain/router"
	"github.com/prospectlab/prospector/domain/scout"
	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/pkg/costtracker"
	"github.com/prospectlab/prospector/pkg/eventbus"
	"github.com/prospectlab/prospector/pkg/logger"
	"github.com/prospectlab/prospector/pkg/metrics"
)

// Orchestrator drives a mining job from routing through the Flow-1
// aggregation. It is the only writer of the job status column.
type Orchestrator struct {
	repo       *mining.Repository
	router     *router.SmartRouter
	plans      *router.PlanBuilder
	analyzer   *scout.Analyzer
	registry   *extractor.Registry
	adapter    *extractor.Adapter
	paginator  *Paginator
	aggregator *aggregate.Aggregator
	costs      *costtracker.Tracker
	bus        *eventbus.Bus
	cfg        *config.Config
	log        *slog.Logger

	mu       sync.Mutex
	inFlight map[uuid.UUID]context.CancelFunc
}

// NewOrchestrator creates the orchestrator.
func NewOrchestrator(
	repo *mining.Repository,
	smartRouter *router.SmartRouter,
	plans *router.PlanBuilder,
	analyzer *scout.Analyzer,
	registry *extractor.Registry,
	adapter *extractor.Adapter,
	paginator *Paginator,
	aggregator *aggregate.Aggregator,
	costs *costtracker.Tracker,
	bus *eventbus.Bus,
	cfg *config.Config,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		repo:       repo,
		router:     smartRouter,
		plans:      plans,
		analyzer:   analyzer,
		registry:   registry,
		adapter:    adapter,
		paginator:  paginator,
		aggregator: aggregator,
		costs:      costs,
		bus:        bus,
		cfg:        cfg,
		log:        log.With(logger.Scope("flow")),
		inFlight:   make(map[uuid.UUID]context.CancelFunc),
	}
}

// Launch runs a job in the background with the configured job timeout.
func (o *Orchestrator) Launch(job *mining.MiningJob) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.Mining.JobTimeout)

	o.mu.Lock()
	o.inFlight[job.ID] = cancel
	o.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			o.mu.Lock()
			delete(o.inFlight, job.ID)
			o.mu.Unlock()
		}()
		o.ExecuteJob(ctx, job)
	}()
}

// Cancel aborts an in-flight job. Returns false when this worker is not
// running it.
func (o *Orchestrator) Cancel(jobID uuid.UUID) bool {
	o.mu.Lock()
	cancel, ok := o.inFlight[jobID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// ExecuteJob runs the full Flow-1 pass for one job.
func (o *Orchestrator) ExecuteJob(ctx context.Context, job *mining.MiningJob) {
	start := time.Now()
	log := o.log.With(slog.String("job_id", job.ID.String()))
	metrics.JobsStarted.WithLabelValues("flow1").Inc()

	o.costs.StartJob(job.TenantID.String(), job.ID.String())
	if err := o.repo.UpdateJobStatus(ctx, job.ID, mining.StatusRunning, nil); err != nil {
		log.Error("failed to mark job running", logger.Error(err))
		return
	}

	results := o.mine(ctx, job, log)

	if ctx.Err() != nil {
		o.finishFailed(job, "canceled or timed out", log)
		return
	}

	ref := aggregate.JobRef{JobID: job.ID, TenantID: job.TenantID, SourceURL: job.InputURL}
	outcome, err := o.aggregator.AggregateV1(ctx, results, ref)
	if err != nil {
		log.Error("flow1 aggregation failed", logger.Error(err))
		o.finishFailed(job, "aggregation failed: "+err.Error(), log)
		return
	}

	if outcome.ContactCount == 0 {
		if reason, dead := deadEnd(results); dead {
			o.finishFailed(job, reason, log)
			return
		}
	}

	if err := o.repo.UpdateJobStats(ctx, job.ID, mining.JSONMap{
		"enrichment_rate":    outcome.EnrichmentRate,
		"email_based_count":  outcome.EmailBasedCount,
		"profile_only_count": outcome.ProfileOnlyCount,
		"website_url_count":  len(outcome.WebsiteURLs),
		"flow1_duration_ms":  time.Since(start).Milliseconds(),
	}); err != nil {
		log.Warn("failed to record flow1 stats", logger.Error(err))
	}

	// With the payload already persisted there is no Flow 2; the job is
	// done. Otherwise the aggregation:done listener carries on and owns
	// the terminal status.
	if outcome.AlreadyPersisted {
		if err := o.repo.UpdateJobStatus(ctx, job.ID, mining.StatusCompleted, nil); err != nil {
			log.Error("failed to mark job completed", logger.Error(err))
		}
		o.finishMetrics(job, mining.StatusCompleted, start)
		o.publishCompleted(ctx, job, outcome.ContactCount)
	}

	ledger := o.costs.Finalize(job.ID.String())
	if ledger != nil {
		log.Info("flow1 finished",
			slog.Int("contacts", outcome.ContactCount),
			slog.Float64("enrichment_rate", outcome.EnrichmentRate),
			slog.Float64("job_cost", ledger.Total),
			slog.Bool("already_persisted", outcome.AlreadyPersisted),
		)
	}
}

// mine picks the extraction path (plan vs routed single extractor) and
// returns the per-miner results.
func (o *Orchestrator) mine(ctx context.Context, job *mining.MiningJob, log *slog.Logger) []contact.MinerResult {
	req := extractor.Request{
		JobID:    job.ID.String(),
		TenantID: job.TenantID.String(),
		URL:      job.InputURL,
	}
	in := router.Input{
		JobID:          job.ID.String(),
		TenantID:       job.TenantID.String(),
		URL:            job.InputURL,
		PreferredMiner: job.Config.PreferredMiner,
		MiningMode:     job.Mode(),
		MaxPages:       job.Config.MaxPages,
	}

	// Type-specific plans only apply when the tenant did not force a
	// miner. The analyzer caches the fetch, so the router's own pass
	// stays cheap.
	if job.Config.PreferredMiner == "" {
		report := o.analyzer.Analyze(ctx, job.InputURL)
		plan := o.plans.Build(router.InferInputType(&report), job.Mode(), &report)
		if len(plan.Steps) > 0 {
			return o.runPlan(ctx, job, plan, &report, req, log)
		}
	}

	d := o.router.Route(ctx, in)
	return o.runRouted(ctx, job, d, req, log)
}

// runPlan executes each plan step in order. Enrichment steps see only
// the first page.
func (o *Orchestrator) runPlan(ctx context.Context, job *mining.MiningJob, plan router.Plan, report *scout.Report, req extractor.Request, log *slog.Logger) []contact.MinerResult {
	log.Info("executing plan",
		slog.String("input_type", plan.InputType),
		slog.String("mode", plan.Mode),
		slog.Int("steps", len(plan.Steps)),
	)

	var results []contact.MinerResult
	for _, step := range plan.Steps {
		if ctx.Err() != nil {
			break
		}
		req.Hints = map[string]string{
			"normalizer": step.Normalizer,
			"page_type":  report.PageType,
		}
		paginate := !step.OwnPagination && !step.Enrichment
		res := o.runExtractor(ctx, job, step.Miner, paginate, report.PaginationType, req)
		results = append(results, res)
	}
	return results
}

// runRouted executes the routed primary and walks the fallback chain
// while the runs keep failing.
func (o *Orchestrator) runRouted(ctx context.Context, job *mining.MiningJob, d router.Decision, req extractor.Request, log *slog.Logger) []contact.MinerResult {
	log.Info("routed job",
		slog.String("miner", d.PrimaryMiner),
		slog.String("reason", d.Reason),
		slog.Any("fallbacks", d.FallbackChain),
	)

	var results []contact.MinerResult
	current := &d
	miner := d.PrimaryMiner
	for current != nil {
		if ctx.Err() != nil {
			break
		}
		req.Hints = current.Hints
		res := o.runExtractor(ctx, job, miner, !current.OwnPagination, current.PaginationType, req)
		results = append(results, res)
		if !res.Failed() {
			break
		}

		next := o.router.NextFallback(current, miner, res.Error)
		if next == nil {
			break
		}
		log.Info("falling back",
			slog.String("from", miner),
			slog.String("to", next.PrimaryMiner),
			slog.String("reason", res.Error),
		)
		current = next
		miner = next.PrimaryMiner
	}
	return results
}

// runExtractor runs one miner, paginated unless the miner paginates
// itself, with the cost gate applied up front.
func (o *Orchestrator) runExtractor(ctx context.Context, job *mining.MiningJob, miner string, paginate bool, paginationType string, req extractor.Request) contact.MinerResult {
	ext, ok := o.registry.Get(miner)
	if !ok {
		return contact.MinerResult{Miner: miner, Status: contact.StatusError, Error: "extractor not registered: " + miner}
	}

	if ok, reason := o.costs.CanProceed(job.TenantID.String(), job.ID.String(), router.CostOperation(miner), req.URL); !ok {
		metrics.CostLimitHits.WithLabelValues("job").Inc()
		if err := o.bus.Publish(ctx, eventbus.ChannelCostLimit, job.ID.String(), map[string]any{
			"job_id": job.ID.String(),
			"miner":  miner,
			"reason": reason,
		}); err != nil {
			o.log.Debug("failed to publish cost:limit", logger.Error(err))
		}
		return contact.MinerResult{Miner: miner, Status: contact.StatusCostLimit, Error: reason}
	}

	if paginate && !ext.Capabilities().OwnPagination {
		total := o.paginator.TotalPages(paginationType, job.Config.MaxPages)
		if total > 1 {
			return o.paginator.MineAllPages(ctx, ext, req, total)
		}
	}
	return o.adapter.Run(ctx, ext, req)
}

func (o *Orchestrator) finishFailed(job *mining.MiningJob, reason string, log *slog.Logger) {
	// The job context may already be canceled; status writes use a fresh
	// deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := o.repo.UpdateJobStatus(ctx, job.ID, mining.StatusFailed, &reason); err != nil {
		log.Error("failed to mark job failed", logger.Error(err))
	}
	o.aggregator.DropTempPayload(ctx, job.ID)
	o.costs.Finalize(job.ID.String())
	metrics.JobsCompleted.WithLabelValues(mining.StatusFailed).Inc()

	if err := o.bus.Publish(ctx, eventbus.ChannelJobFailed, job.ID.String(), map[string]any{
		"job_id": job.ID.String(),
		"error":  reason,
	}); err != nil {
		log.Debug("failed to publish job:failed", logger.Error(err))
	}
	log.Warn("job failed", slog.String("reason", reason))
}

func (o *Orchestrator) finishMetrics(job *mining.MiningJob, status string, start time.Time) {
	metrics.JobsCompleted.WithLabelValues(status).Inc()
	metrics.JobDuration.WithLabelValues("flow1").Observe(time.Since(start).Seconds())
}

func (o *Orchestrator) publishCompleted(ctx context.Context, job *mining.MiningJob, contactCount int) {
	if err := o.bus.Publish(ctx, eventbus.ChannelJobCompleted, job.ID.String(), map[string]any{
		"job_id":        job.ID.String(),
		"contact_count": contactCount,
	}); err != nil {
		o.log.Debug("failed to publish job:completed", logger.Error(err))
	}
}

// deadEnd reports whether an empty outcome means the job cannot succeed:
// every extractor run failed, or the site blocked us outright.
func deadEnd(results []contact.MinerResult) (string, bool) {
	if len(results) == 0 {
		return "no extractor could run", true
	}
	blocked := false
	for i := range results {
		if !results[i].Failed() {
			return "", false
		}
		if results[i].Status == contact.StatusBlocked {
			blocked = true
		}
	}
	if blocked {
		return "blocked by target site", true
	}
	return "all extractors failed", true
}
