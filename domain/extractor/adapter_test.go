package extractor

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospectlab/prospector/domain/contact"
	"github.com/prospectlab/prospector/domain/normalize"
	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/pkg/circuit"
	"github.com/prospectlab/prospector/pkg/costtracker"
)

type fakeMiner struct {
	name   string
	caps   Capabilities
	output normalize.MinerOutput
	err    error
	calls  int
}

func (f *fakeMiner) Name() string               { return f.name }
func (f *fakeMiner) Capabilities() Capabilities { return f.caps }
func (f *fakeMiner) Mine(ctx context.Context, req Request) (normalize.MinerOutput, error) {
	f.calls++
	return f.output, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		Cost: config.CostConfig{
			AICost: 0.01, BrowserCost: 0.001, HTTPCost: 0.0001, DeepCrawlCost: 0.005,
			URLLimit: 0.10, JobLimit: 2.00, MonthlyLimit: 50, MaxRetries: 3,
		},
		Circuit: config.CircuitConfig{
			FailureThreshold: 5, SuccessThreshold: 2,
			RecoveryTimeout: 30 * time.Minute, InactiveCleanup: 24 * time.Hour,
		},
	}
}

func newTestAdapter(t *testing.T) (*Adapter, *costtracker.Tracker, *circuit.Manager) {
	t.Helper()
	cfg := testConfig()
	log := slog.Default()
	costs := costtracker.New(cfg, log)
	circuits := circuit.NewManager(cfg, log)
	a := NewAdapter(
		normalize.NewNormalizer(log),
		normalize.NewValidator(log),
		normalize.NewHallucinationFilter(log),
		costs, circuits, log,
	)
	return a, costs, circuits
}

func TestRunProducesUnifiedContacts(t *testing.T) {
	a, costs, _ := newTestAdapter(t)

	miner := &fakeMiner{
		name: "httpBasicMiner",
		caps: Capabilities{CostOperation: costtracker.OpHTTPRequest, DefaultConfidence: 60},
		output: normalize.MinerOutput{
			Miner: "httpBasicMiner",
			Text:  "Sales lead: priya.mehta@acme-global.io, Managing Director",
		},
	}

	req := Request{JobID: "j1", TenantID: "t1", URL: "https://acme-global.io/team"}
	res := a.Run(context.Background(), miner, req)

	assert.Equal(t, contact.StatusOK, res.Status)
	require.Len(t, res.Contacts, 1)
	c := res.Contacts[0]
	assert.Equal(t, "priya.mehta@acme-global.io", c.Email)
	assert.Equal(t, "Priya Mehta", c.ContactName)
	assert.Equal(t, "Managing Director", c.JobTitle)
	assert.Equal(t, "httpBasicMiner", c.Source)
	assert.Equal(t, req.URL, c.SourceURL)
	assert.NotNil(t, c.Evidence)

	assert.Positive(t, costs.JobTotal("j1"), "successful run records cost")
}

func TestRunEmptyOutput(t *testing.T) {
	a, _, _ := newTestAdapter(t)

	miner := &fakeMiner{
		name: "httpBasicMiner",
		caps: Capabilities{CostOperation: costtracker.OpHTTPRequest},
		err:  ErrEmpty,
	}
	res := a.Run(context.Background(), miner, Request{JobID: "j1", TenantID: "t1", URL: "https://x.de"})
	assert.Equal(t, contact.StatusEmpty, res.Status)
	assert.Equal(t, 1, miner.calls, "empty is not retried")
}

func TestRunBlockedRecordsCircuitFailure(t *testing.T) {
	a, _, circuits := newTestAdapter(t)

	miner := &fakeMiner{
		name: "httpBasicMiner",
		caps: Capabilities{CostOperation: costtracker.OpHTTPRequest},
		err:  ErrBlocked,
	}
	req := Request{JobID: "j1", TenantID: "t1", URL: "https://bad.example.org/list"}

	for i := 0; i < 5; i++ {
		res := a.Run(context.Background(), miner, req)
		assert.Equal(t, contact.StatusBlocked, res.Status)
	}

	// Circuit is now open: the extractor is not even invoked
	calls := miner.calls
	res := a.Run(context.Background(), miner, req)
	assert.Equal(t, contact.StatusBlocked, res.Status)
	assert.Equal(t, "circuit open for domain", res.Error)
	assert.Equal(t, calls, miner.calls)
	assert.False(t, circuits.Allowed(req.URL))
}

func TestRunTransientErrorRetriesThenFails(t *testing.T) {
	a, _, _ := newTestAdapter(t)

	miner := &fakeMiner{
		name: "httpBasicMiner",
		caps: Capabilities{CostOperation: costtracker.OpHTTPRequest},
		err:  errors.New("connection reset"),
	}
	res := a.Run(context.Background(), miner, Request{JobID: "j1", TenantID: "t1", URL: "https://x.de"})

	assert.Equal(t, contact.StatusError, res.Status)
	assert.Equal(t, 4, miner.calls, "initial attempt plus three retries")
}

func TestRunCostLimit(t *testing.T) {
	a, costs, _ := newTestAdapter(t)

	// Exhaust the per-URL budget with AI-priced operations
	for i := 0; i < 10; i++ {
		costs.RecordCost("t1", "j1", costtracker.OpAIExtraction, "https://x.de")
	}

	miner := &fakeMiner{
		name: "aiMiner",
		caps: Capabilities{CostOperation: costtracker.OpAIExtraction},
	}
	res := a.Run(context.Background(), miner, Request{JobID: "j1", TenantID: "t1", URL: "https://x.de"})

	assert.Equal(t, contact.StatusCostLimit, res.Status)
	assert.Equal(t, costtracker.ReasonURLLimit, res.Error)
	assert.Zero(t, miner.calls)
}

func TestHallucinatedRecordsFiltered(t *testing.T) {
	a, _, _ := newTestAdapter(t)

	miner := &fakeMiner{
		name: "aiMiner",
		caps: Capabilities{CostOperation: costtracker.OpAIExtraction, DefaultConfidence: 70},
		output: normalize.MinerOutput{
			Miner: "aiMiner",
			Blocks: []normalize.Block{{
				Text: "made up",
				Fields: map[string]string{
					"email":        "j.doe@firm.de",
					"contact_name": "John Doe",
					"phone":        "+1 111 111 1111",
				},
			}},
		},
	}
	res := a.Run(context.Background(), miner, Request{JobID: "j1", TenantID: "t1", URL: "https://firm.de"})
	assert.Equal(t, contact.StatusEmpty, res.Status, "all records rejected leaves an empty result")
}
