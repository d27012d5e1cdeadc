package flow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/prospectlab/prospector/domain/aggregate"
	"github.com/prospectlab/prospector/domain/contact"
	"github.com/prospectlab/prospector/domain/extractor"
	"github.com/prospectlab/prospector/domain/mining"
	"github.com/prospectlab/prospector/domain/scout"
	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/pkg/costtracker"
	"github.com/prospectlab/prospector/pkg/eventbus"
	"github.com/prospectlab/prospector/pkg/logger"
	"github.com/prospectlab/prospector/pkg/metrics"
)

// Flow2Listener consumes aggregation:done events and runs the enrichment
// pass: crawl the discovered websites, merge into the parked Flow-1
// payload and finalize the job.
type Flow2Listener struct {
	bus        *eventbus.Bus
	repo       *mining.Repository
	aggregator *aggregate.Aggregator
	registry   *extractor.Registry
	adapter    *extractor.Adapter
	costs      *costtracker.Tracker
	cfg        *config.Config
	log        *slog.Logger

	sem chan struct{}
	wg  sync.WaitGroup
	run func(ctx context.Context, ev eventbus.Event)
}

// NewFlow2Listener creates the listener.
func NewFlow2Listener(
	bus *eventbus.Bus,
	repo *mining.Repository,
	aggregator *aggregate.Aggregator,
	registry *extractor.Registry,
	adapter *extractor.Adapter,
	costs *costtracker.Tracker,
	cfg *config.Config,
	log *slog.Logger,
) *Flow2Listener {
	l := &Flow2Listener{
		bus:        bus,
		repo:       repo,
		aggregator: aggregator,
		registry:   registry,
		adapter:    adapter,
		costs:      costs,
		cfg:        cfg,
		log:        log.With(logger.Scope("flow2")),
		sem:        make(chan struct{}, max(cfg.Mining.Flow2Concurrency, 1)),
	}
	l.run = l.handle
	return l
}

// Start subscribes to the aggregation channel. Without the event store
// Flow 2 never fires; jobs then finish through the direct-write fallback.
func (l *Flow2Listener) Start(ctx context.Context) error {
	if !l.bus.Available() {
		l.log.Warn("event store unavailable, flow2 listener disabled")
		return nil
	}
	return l.bus.Subscribe(ctx, eventbus.ChannelAggregationDone, l.dispatch)
}

// dispatch hands the event to a worker goroutine, admitting at most
// Flow2Concurrency enrichment jobs at a time. Blocking here applies
// backpressure on the bus receive loop instead of dropping events. An
// admitted job detaches from the subscription context so it can finish
// during shutdown; Drain bounds that tail.
func (l *Flow2Listener) dispatch(ctx context.Context, ev eventbus.Event) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	l.wg.Add(1)
	go func() {
		defer func() {
			<-l.sem
			l.wg.Done()
		}()
		l.run(context.WithoutCancel(ctx), ev)
	}()
}

// Drain blocks until in-flight enrichment jobs finish or the grace
// period elapses, whichever comes first.
func (l *Flow2Listener) Drain(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		l.log.Warn("shutdown grace elapsed with enrichment jobs still in flight",
			slog.Duration("grace", grace))
	}
}

func (l *Flow2Listener) handle(ctx context.Context, ev eventbus.Event) {
	var payload aggregate.DonePayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		l.log.Error("malformed aggregation:done payload", logger.Error(err))
		return
	}
	jobID, err := uuid.Parse(ev.JobID)
	if err != nil {
		l.log.Error("malformed job id on event", slog.String("job_id", ev.JobID))
		return
	}
	log := l.log.With(slog.String("job_id", ev.JobID))

	job, err := l.repo.GetJob(ctx, jobID)
	if err != nil {
		log.Error("job lookup failed", logger.Error(err))
		return
	}
	if job.IsTerminal() {
		log.Debug("job already terminal, ignoring event")
		return
	}

	start := time.Now()
	metrics.JobsStarted.WithLabelValues("flow2").Inc()

	decision := DecideFlow2(payload, l.cfg.Mining.Flow2Disabled || job.Config.Flow2Disabled, l.cfg.Mining)
	log.Info("flow2 decision",
		slog.Bool("run", decision.Run),
		slog.String("reason", decision.Reason),
	)

	var scraped []contact.MinerResult
	if decision.Run {
		l.publish(ctx, eventbus.ChannelFlow2Start, job.ID, map[string]any{
			"job_id":       job.ID.String(),
			"max_websites": decision.MaxWebsites,
		}, log)
		scraped = l.crawlWebsites(ctx, job, payload.WebsiteURLs, decision, log)
	}

	ref := aggregate.JobRef{JobID: job.ID, TenantID: job.TenantID, SourceURL: job.InputURL}
	if err := l.aggregator.AggregateV2(ctx, scraped, ref); err != nil {
		l.fail(ctx, job, err, log)
		return
	}

	if decision.Run {
		l.publish(ctx, eventbus.ChannelFlow2Done, job.ID, map[string]any{
			"job_id":           job.ID.String(),
			"websites_crawled": len(scraped),
		}, log)
	}

	metrics.JobsCompleted.WithLabelValues(mining.StatusCompleted).Inc()
	metrics.JobDuration.WithLabelValues("flow2").Observe(time.Since(start).Seconds())
	log.Info("flow2 finished",
		slog.Int("websites_crawled", len(scraped)),
		slog.Duration("took", time.Since(start)),
	)
}

// crawlWebsites fetches the discovered company websites with the static
// extractor, bounded by the decision's cap and concurrency.
func (l *Flow2Listener) crawlWebsites(ctx context.Context, job *mining.MiningJob, urls []string, d Flow2Decision, log *slog.Logger) []contact.MinerResult {
	ext, ok := l.registry.Get(scout.MinerHTTPBasic)
	if !ok {
		log.Error("static extractor not registered, skipping enrichment crawl")
		return nil
	}
	if len(urls) > d.MaxWebsites {
		urls = urls[:d.MaxWebsites]
	}

	req := extractor.Request{
		JobID:    job.ID.String(),
		TenantID: job.TenantID.String(),
		Hints:    map[string]string{"normalizer": "generic"},
	}

	var mu sync.Mutex
	var results []contact.MinerResult

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(d.Concurrency, 1))
	for _, u := range urls {
		g.Go(func() error {
			if ok, reason := l.costs.CanProceed(job.TenantID.String(), job.ID.String(), costtracker.OpDeepCrawl, u); !ok {
				metrics.CostLimitHits.WithLabelValues("flow2").Inc()
				log.Debug("enrichment crawl denied by budget",
					slog.String("url", u),
					slog.String("reason", reason),
				)
				return nil
			}
			res := l.adapter.Run(gctx, ext, req.WithURL(u))
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; failures live on the MinerResult.
	_ = g.Wait()
	return results
}

func (l *Flow2Listener) publish(ctx context.Context, channel string, jobID uuid.UUID, payload map[string]any, log *slog.Logger) {
	if err := l.bus.Publish(ctx, channel, jobID.String(), payload); err != nil {
		log.Debug("failed to publish event", slog.String("channel", channel), logger.Error(err))
	}
}

func (l *Flow2Listener) fail(ctx context.Context, job *mining.MiningJob, err error, log *slog.Logger) {
	reason := "flow2 failed: " + err.Error()
	if errors.Is(err, aggregate.ErrFlow1NotFound) {
		reason = "flow1 results expired before flow2 ran"
	}
	log.Error("flow2 failed", logger.Error(err))

	if uerr := l.repo.UpdateJobStatus(ctx, job.ID, mining.StatusFailed, &reason); uerr != nil {
		log.Error("failed to mark job failed", logger.Error(uerr))
	}
	l.aggregator.DropTempPayload(ctx, job.ID)
	metrics.JobsCompleted.WithLabelValues(mining.StatusFailed).Inc()

	if perr := l.bus.Publish(ctx, eventbus.ChannelJobFailed, job.ID.String(), map[string]any{
		"job_id": job.ID.String(),
		"error":  reason,
	}); perr != nil {
		log.Debug("failed to publish job:failed", logger.Error(perr))
	}
}
