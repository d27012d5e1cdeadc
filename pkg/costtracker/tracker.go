// Package costtracker keeps the monetary accounting for mining work:
// per-URL and per-job subtotals, per-tenant monthly tallies with rollover,
// and the retry counter that caps re-fetch attempts per URL.
package costtracker

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/pkg/logger"
)

var Module = fx.Module("costtracker",
	fx.Provide(New),
)

// Operation identifies a billable action.
type Operation string

const (
	OpAIExtraction Operation = "ai_extraction"
	OpBrowserPage  Operation = "browser_page"
	OpHTTPRequest  Operation = "http_request"
	OpDeepCrawl    Operation = "deep_crawl_page"
)

// Denial reasons returned by CanProceed.
const (
	ReasonURLLimit     = "url_cost_limit_exceeded"
	ReasonJobLimit     = "job_cost_limit_exceeded"
	ReasonMonthlyLimit = "tenant_monthly_limit_exceeded"
	ReasonRetryLimit   = "url_retry_limit_exceeded"
)

// Ledger is the per-job accounting snapshot.
type Ledger struct {
	JobID        string                `json:"job_id"`
	TenantID     string                `json:"tenant_id"`
	Total        float64               `json:"total"`
	ByURL        map[string]float64    `json:"by_url"`
	ByOperation  map[Operation]float64 `json:"by_operation"`
	RetriesByURL map[string]int        `json:"retries_by_url"`
	StartedAt    time.Time             `json:"started_at"`
}

type tenantMonth struct {
	total     float64
	lastReset time.Time
}

// Tracker is the process-singleton cost accountant. All mutation is
// serialized by a single mutex; amounts are small enough that float64
// accumulation is acceptable.
type Tracker struct {
	mu      sync.Mutex
	cfg     config.CostConfig
	log     *slog.Logger
	jobs    map[string]*Ledger
	tenants map[string]*tenantMonth
	now     func() time.Time
}

// New creates the tracker with limits from configuration.
func New(cfg *config.Config, log *slog.Logger) *Tracker {
	return &Tracker{
		cfg:     cfg.Cost,
		log:     log.With(logger.Scope("costtracker")),
		jobs:    make(map[string]*Ledger),
		tenants: make(map[string]*tenantMonth),
		now:     time.Now,
	}
}

// UnitCost returns the configured price of one operation.
func (t *Tracker) UnitCost(op Operation) float64 {
	switch op {
	case OpAIExtraction:
		return t.cfg.AICost
	case OpBrowserPage:
		return t.cfg.BrowserCost
	case OpDeepCrawl:
		return t.cfg.DeepCrawlCost
	default:
		return t.cfg.HTTPCost
	}
}

// StartJob registers a ledger for a job. Idempotent.
func (t *Tracker) StartJob(tenantID, jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.jobs[jobID]; ok {
		return
	}
	t.jobs[jobID] = &Ledger{
		JobID:        jobID,
		TenantID:     tenantID,
		ByURL:        make(map[string]float64),
		ByOperation:  make(map[Operation]float64),
		RetriesByURL: make(map[string]int),
		StartedAt:    t.now().UTC(),
	}
}

// CanProceed decides whether one more operation against url is within all
// budgets. The reason is one of the Reason* constants when denied.
func (t *Tracker) CanProceed(tenantID, jobID string, op Operation, url string) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	unit := t.UnitCost(op)
	url = normalizeURL(url)

	ledger := t.jobs[jobID]
	if ledger != nil {
		if ledger.ByURL[url]+unit > t.cfg.URLLimit {
			return false, ReasonURLLimit
		}
		if ledger.Total+unit > t.cfg.JobLimit {
			return false, ReasonJobLimit
		}
	}

	tm := t.tenantLocked(tenantID)
	if tm.total+unit > t.cfg.MonthlyLimit {
		return false, ReasonMonthlyLimit
	}

	return true, ""
}

// CanRetry reports whether url has retry budget left within the job.
func (t *Tracker) CanRetry(jobID, url string) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ledger := t.jobs[jobID]
	if ledger == nil {
		return true, ""
	}
	if ledger.RetriesByURL[normalizeURL(url)] >= t.cfg.MaxRetries {
		return false, ReasonRetryLimit
	}
	return true, ""
}

// RecordRetry increments the retry counter for url within the job.
func (t *Tracker) RecordRetry(jobID, url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ledger := t.jobs[jobID]; ledger != nil {
		ledger.RetriesByURL[normalizeURL(url)]++
	}
}

// RecordCost tallies one completed operation against the job, URL and
// tenant month.
func (t *Tracker) RecordCost(tenantID, jobID string, op Operation, url string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	unit := t.UnitCost(op)
	url = normalizeURL(url)

	ledger := t.jobs[jobID]
	if ledger == nil {
		ledger = &Ledger{
			JobID:        jobID,
			TenantID:     tenantID,
			ByURL:        make(map[string]float64),
			ByOperation:  make(map[Operation]float64),
			RetriesByURL: make(map[string]int),
			StartedAt:    t.now().UTC(),
		}
		t.jobs[jobID] = ledger
	}
	ledger.Total += unit
	ledger.ByURL[url] += unit
	ledger.ByOperation[op] += unit

	t.tenantLocked(tenantID).total += unit
	return unit
}

// JobTotal returns the accumulated cost for a job.
func (t *Tracker) JobTotal(jobID string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ledger := t.jobs[jobID]; ledger != nil {
		return ledger.Total
	}
	return 0
}

// TenantMonthTotal returns the tenant's running total for the current month.
func (t *Tracker) TenantMonthTotal(tenantID string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tenantLocked(tenantID).total
}

// Finalize returns the ledger snapshot for a finished job and drops the
// in-memory entry. The tenant month tally is kept.
func (t *Tracker) Finalize(jobID string) *Ledger {
	t.mu.Lock()
	defer t.mu.Unlock()

	ledger := t.jobs[jobID]
	if ledger == nil {
		return nil
	}
	delete(t.jobs, jobID)

	snapshot := *ledger
	snapshot.ByURL = copyMap(ledger.ByURL)
	snapshot.ByOperation = copyMap(ledger.ByOperation)
	snapshot.RetriesByURL = copyMap(ledger.RetriesByURL)
	return &snapshot
}

// ResetExpiredMonths rolls over tenant tallies whose last reset predates
// the current month. Called from the maintenance cron.
func (t *Tracker) ResetExpiredMonths() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	reset := 0
	for tenantID, tm := range t.tenants {
		if tm.lastReset.Year() != now.Year() || tm.lastReset.Month() != now.Month() {
			t.log.Info("monthly cost ledger reset",
				slog.String("tenant_id", tenantID),
				slog.Float64("previous_total", tm.total),
			)
			tm.total = 0
			tm.lastReset = now
			reset++
		}
	}
	return reset
}

// tenantLocked returns the tenant month record, rolling it over when the
// calendar month changed since the last touch.
func (t *Tracker) tenantLocked(tenantID string) *tenantMonth {
	now := t.now()
	tm := t.tenants[tenantID]
	if tm == nil {
		tm = &tenantMonth{lastReset: now}
		t.tenants[tenantID] = tm
		return tm
	}
	if tm.lastReset.Year() != now.Year() || tm.lastReset.Month() != now.Month() {
		tm.total = 0
		tm.lastReset = now
	}
	return tm
}

func normalizeURL(url string) string {
	return strings.ToLower(strings.TrimSpace(url))
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
