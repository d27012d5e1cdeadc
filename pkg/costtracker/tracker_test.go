package costtracker

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospectlab/prospector/internal/config"
)

func newTestTracker() *Tracker {
	cfg := &config.Config{
		Cost: config.CostConfig{
			AICost:        0.01,
			BrowserCost:   0.001,
			HTTPCost:      0.0001,
			DeepCrawlCost: 0.005,
			URLLimit:      0.10,
			JobLimit:      2.00,
			MonthlyLimit:  50.0,
			MaxRetries:    3,
		},
	}
	return New(cfg, slog.Default())
}

func TestRecordCostAccumulates(t *testing.T) {
	tr := newTestTracker()
	tr.StartJob("t1", "j1")

	tr.RecordCost("t1", "j1", OpAIExtraction, "https://example.com/a")
	tr.RecordCost("t1", "j1", OpHTTPRequest, "https://example.com/a")
	tr.RecordCost("t1", "j1", OpBrowserPage, "https://example.com/b")

	assert.InDelta(t, 0.0111, tr.JobTotal("j1"), 1e-9)
	assert.InDelta(t, 0.0111, tr.TenantMonthTotal("t1"), 1e-9)
}

func TestPerURLLimit(t *testing.T) {
	tr := newTestTracker()
	tr.StartJob("t1", "j1")

	// 10 AI calls reach the $0.10 per-URL cap exactly
	for i := 0; i < 10; i++ {
		ok, _ := tr.CanProceed("t1", "j1", OpAIExtraction, "https://example.com")
		require.True(t, ok, "call %d should be allowed", i)
		tr.RecordCost("t1", "j1", OpAIExtraction, "https://example.com")
	}

	ok, reason := tr.CanProceed("t1", "j1", OpAIExtraction, "https://example.com")
	assert.False(t, ok)
	assert.Equal(t, ReasonURLLimit, reason)

	// A different URL on the same job is still fine
	ok, _ = tr.CanProceed("t1", "j1", OpAIExtraction, "https://other.com")
	assert.True(t, ok)
}

func TestJobLimit(t *testing.T) {
	tr := newTestTracker()
	tr.cfg.JobLimit = 0.02
	tr.StartJob("t1", "j1")

	tr.RecordCost("t1", "j1", OpAIExtraction, "https://a.com")
	tr.RecordCost("t1", "j1", OpAIExtraction, "https://b.com")

	ok, reason := tr.CanProceed("t1", "j1", OpAIExtraction, "https://c.com")
	assert.False(t, ok)
	assert.Equal(t, ReasonJobLimit, reason)
}

func TestMonthlyLimitAndRollover(t *testing.T) {
	tr := newTestTracker()
	tr.cfg.MonthlyLimit = 0.01

	now := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	tr.StartJob("t1", "j1")
	tr.RecordCost("t1", "j1", OpAIExtraction, "https://a.com")

	ok, reason := tr.CanProceed("t1", "j1", OpHTTPRequest, "https://b.com")
	assert.False(t, ok)
	assert.Equal(t, ReasonMonthlyLimit, reason)

	// New month resets the tenant tally
	now = now.AddDate(0, 1, 0)
	ok, _ = tr.CanProceed("t1", "j1", OpHTTPRequest, "https://b.com")
	assert.True(t, ok)
	assert.Zero(t, tr.TenantMonthTotal("t1"))
}

func TestRetryCounter(t *testing.T) {
	tr := newTestTracker()
	tr.StartJob("t1", "j1")

	for i := 0; i < 3; i++ {
		ok, _ := tr.CanRetry("j1", "https://example.com")
		require.True(t, ok)
		tr.RecordRetry("j1", "https://example.com")
	}

	ok, reason := tr.CanRetry("j1", "https://example.com")
	assert.False(t, ok)
	assert.Equal(t, ReasonRetryLimit, reason)
}

func TestFinalizeDropsLedger(t *testing.T) {
	tr := newTestTracker()
	tr.StartJob("t1", "j1")
	tr.RecordCost("t1", "j1", OpDeepCrawl, "https://Example.com/page")

	ledger := tr.Finalize("j1")
	require.NotNil(t, ledger)
	assert.InDelta(t, 0.005, ledger.Total, 1e-9)
	assert.InDelta(t, 0.005, ledger.ByURL["https://example.com/page"], 1e-9)
	assert.InDelta(t, 0.005, ledger.ByOperation[OpDeepCrawl], 1e-9)

	assert.Nil(t, tr.Finalize("j1"), "second finalize is a no-op")
	assert.Zero(t, tr.JobTotal("j1"))
	// Tenant tally survives finalization
	assert.InDelta(t, 0.005, tr.TenantMonthTotal("t1"), 1e-9)
}

func TestResetExpiredMonths(t *testing.T) {
	tr := newTestTracker()
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	tr.RecordCost("t1", "j1", OpAIExtraction, "https://a.com")
	tr.RecordCost("t2", "j2", OpAIExtraction, "https://a.com")

	now = now.AddDate(0, 1, 0)
	assert.Equal(t, 2, tr.ResetExpiredMonths())
	assert.Zero(t, tr.TenantMonthTotal("t1"))
	assert.Zero(t, tr.TenantMonthTotal("t2"))
}
