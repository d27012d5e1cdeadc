// Package router picks the extractor for a mining job. The smart router
// combines the scout's structural report with job-config overrides, the
// cache invariants and the cost budget, and hands the orchestrator a
// primary miner plus a fallback chain. The plan builder covers the
// mode-driven multi-step path.
package router

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/prospectlab/prospector/domain/scout"
	"github.com/prospectlab/prospector/pkg/costtracker"
	"github.com/prospectlab/prospector/pkg/logger"
)

var Module = fx.Module("router",
	fx.Provide(NewSmartRouter, NewPlanBuilder),
)

// Input is the routing-relevant slice of a mining job.
type Input struct {
	JobID          string
	TenantID       string
	URL            string
	PreferredMiner string
	MiningMode     string
	MaxPages       int
}

// Decision is the router's outcome for one job.
type Decision struct {
	PrimaryMiner   string            `json:"primary_miner"`
	UseCache       bool              `json:"use_cache"`
	OwnPagination  bool              `json:"own_pagination,omitempty"`
	FallbackChain  []string          `json:"fallback_chain,omitempty"`
	Hints          map[string]string `json:"hints,omitempty"`
	PaginationType string            `json:"pagination_type,omitempty"`
	Reason         string            `json:"reason"`
}

// minerPriority orders miners by preference; lower wins when the budget
// forces a swap.
var minerPriority = map[string]int{
	scout.MinerHTTPBasic:       1,
	scout.MinerPlaywrightTable: 2,
	scout.MinerPlaywright:      3,
	scout.MinerAI:              4,
	scout.MinerWebsiteScraper:  5,
	scout.MinerDocument:        6,
}

// minerCostOp maps each miner to its billable operation.
var minerCostOp = map[string]costtracker.Operation{
	scout.MinerHTTPBasic:       costtracker.OpHTTPRequest,
	scout.MinerPlaywrightTable: costtracker.OpBrowserPage,
	scout.MinerPlaywright:      costtracker.OpBrowserPage,
	scout.MinerAI:              costtracker.OpAIExtraction,
	scout.MinerWebsiteScraper:  costtracker.OpDeepCrawl,
	scout.MinerDocument:        costtracker.OpHTTPRequest,
	scout.MinerDirectory:       costtracker.OpBrowserPage,
	scout.MinerSPANetwork:      costtracker.OpBrowserPage,
}

// browserMiners drive a real browser; their output depends on rendering
// state, so serving them cached HTML is never correct.
var browserMiners = map[string]struct{}{
	scout.MinerPlaywright:      {},
	scout.MinerPlaywrightTable: {},
	scout.MinerSPANetwork:      {},
}

// fetchingMiners fetch remote content themselves during enrichment and
// must always see the live site.
var fetchingMiners = map[string]struct{}{
	scout.MinerWebsiteScraper: {},
}

// fallbackTable lists the static fallback candidates per primary miner,
// in order.
var fallbackTable = map[string][]string{
	scout.MinerHTTPBasic:       {scout.MinerPlaywright, scout.MinerAI},
	scout.MinerPlaywrightTable: {scout.MinerPlaywright, scout.MinerAI},
	scout.MinerPlaywright:      {scout.MinerAI},
	scout.MinerAI:              {scout.MinerPlaywright},
	scout.MinerWebsiteScraper:  {scout.MinerHTTPBasic},
	scout.MinerDocument:        {scout.MinerAI},
	scout.MinerDirectory:       {scout.MinerPlaywright, scout.MinerAI},
	scout.MinerSPANetwork:      {scout.MinerPlaywright, scout.MinerAI},
}

const maxFallbackChain = 3

// CostOperation returns the billable operation for a miner name.
func CostOperation(miner string) costtracker.Operation {
	if op, ok := minerCostOp[miner]; ok {
		return op
	}
	return costtracker.OpHTTPRequest
}

// CacheAllowed reports whether a miner may consume cached HTML at all.
func CacheAllowed(miner string) bool {
	if _, ok := browserMiners[miner]; ok {
		return false
	}
	if _, ok := fetchingMiners[miner]; ok {
		return false
	}
	return true
}

// SmartRouter chooses an extractor for a job.
type SmartRouter struct {
	analyzer *scout.Analyzer
	costs    *costtracker.Tracker
	log      *slog.Logger
}

// NewSmartRouter creates the router.
func NewSmartRouter(analyzer *scout.Analyzer, costs *costtracker.Tracker, log *slog.Logger) *SmartRouter {
	return &SmartRouter{
		analyzer: analyzer,
		costs:    costs,
		log:      log.With(logger.Scope("router")),
	}
}

// Route decides the primary miner and fallback chain for a job.
func (r *SmartRouter) Route(ctx context.Context, in Input) Decision {
	if in.PreferredMiner != "" {
		d := Decision{
			PrimaryMiner: in.PreferredMiner,
			UseCache:     CacheAllowed(in.PreferredMiner),
			Reason:       "forced by job config",
		}
		d.FallbackChain = r.buildFallbackChain(in, d.PrimaryMiner)
		return d
	}

	report := r.analyzer.Analyze(ctx, in.URL)
	rec := report.Recommendation

	d := Decision{
		PrimaryMiner:   rec.Miner,
		UseCache:       rec.UseCache,
		OwnPagination:  rec.OwnPagination,
		PaginationType: report.PaginationType,
		Reason:         rec.Reason,
		Hints: map[string]string{
			"page_type": report.PageType,
		},
	}

	// Cache invariants beat the recommendation.
	if !CacheAllowed(d.PrimaryMiner) {
		d.UseCache = false
	}

	if swapped, reason := r.budgetSwap(in, d.PrimaryMiner); swapped != "" {
		r.log.Info("router swapped miner on budget",
			slog.String("job_id", in.JobID),
			slog.String("from", d.PrimaryMiner),
			slog.String("to", swapped),
			slog.String("reason", reason),
		)
		d.PrimaryMiner = swapped
		d.UseCache = CacheAllowed(swapped)
		d.Reason = "budget swap: " + reason
	}

	d.FallbackChain = r.buildFallbackChain(in, d.PrimaryMiner)
	return d
}

// NextFallback returns the decision for the next miner in the chain after
// failedMiner, or nil when the chain is exhausted.
func (r *SmartRouter) NextFallback(d *Decision, failedMiner, reason string) *Decision {
	chain := d.FallbackChain
	idx := -1
	if failedMiner == d.PrimaryMiner {
		idx = 0
	} else {
		for i, m := range chain {
			if m == failedMiner {
				idx = i + 1
				break
			}
		}
	}
	if idx < 0 || idx >= len(chain) {
		return nil
	}

	next := chain[idx]
	return &Decision{
		PrimaryMiner:   next,
		UseCache:       CacheAllowed(next),
		FallbackChain:  chain,
		PaginationType: d.PaginationType,
		Hints:          d.Hints,
		Reason:         "fallback after " + failedMiner + ": " + reason,
	}
}

// budgetSwap checks the projected cost of the chosen miner and, when the
// budget refuses it, returns the cheapest allowed alternative in priority
// order. An empty string means no swap.
func (r *SmartRouter) budgetSwap(in Input, miner string) (string, string) {
	ok, reason := r.costs.CanProceed(in.TenantID, in.JobID, CostOperation(miner), in.URL)
	if ok {
		return "", ""
	}

	// Walk the priority table cheapest-first for an operation the budget
	// still allows.
	best := ""
	bestPrio := int(^uint(0) >> 1)
	for m, prio := range minerPriority {
		if m == miner || prio >= bestPrio {
			continue
		}
		if allowed, _ := r.costs.CanProceed(in.TenantID, in.JobID, CostOperation(m), in.URL); allowed {
			best = m
			bestPrio = prio
		}
	}
	return best, reason
}

// buildFallbackChain filters the static table by budget and caps length.
func (r *SmartRouter) buildFallbackChain(in Input, primary string) []string {
	var chain []string
	for _, m := range fallbackTable[primary] {
		if len(chain) >= maxFallbackChain {
			break
		}
		if ok, _ := r.costs.CanProceed(in.TenantID, in.JobID, CostOperation(m), in.URL); ok {
			chain = append(chain, m)
		}
	}
	return chain
}
