package scout

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/pkg/circuit"
	"github.com/prospectlab/prospector/pkg/htmlcache"
	"github.com/prospectlab/prospector/pkg/ttlstore"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{
		Mining: config.MiningConfig{ScoutTimeout: 5 * time.Second, HTMLCacheTTL: time.Hour},
		Circuit: config.CircuitConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			RecoveryTimeout:  30 * time.Minute,
			InactiveCleanup:  24 * time.Hour,
		},
	}
	store := ttlstore.NewStore(client, slog.Default())
	return NewAnalyzer(cfg, htmlcache.New(store, cfg, slog.Default()), circuit.NewManager(cfg, slog.Default()), slog.Default())
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func pad(s string) string {
	return s + strings.Repeat("<div>filler content for the size gate</div>", 20)
}

func TestPDFShortCircuit(t *testing.T) {
	a := newTestAnalyzer(t)
	report := a.Analyze(context.Background(), "https://example.com/catalog/list.PDF")
	assert.Equal(t, PageDocumentViewer, report.PageType)
	assert.Equal(t, MinerDocument, report.Recommendation.Miner)
}

func TestBlockedStatusCodes(t *testing.T) {
	a := newTestAnalyzer(t)
	srv := serve(t, http.StatusForbidden, "denied")

	report := a.Analyze(context.Background(), srv.URL)
	assert.Equal(t, PageBlocked, report.PageType)
	assert.Equal(t, MinerPlaywright, report.Recommendation.Miner)
}

func TestHTTPErrorFallsBackToBrowser(t *testing.T) {
	a := newTestAnalyzer(t)
	srv := serve(t, http.StatusInternalServerError, "boom")

	report := a.Analyze(context.Background(), srv.URL)
	assert.Equal(t, PageError, report.PageType)
	assert.Equal(t, MinerPlaywright, report.Recommendation.Miner)
}

func TestExhibitorTableWithEmails(t *testing.T) {
	a := newTestAnalyzer(t)
	srv := serve(t, http.StatusOK, pad(`<html><body><table>
		<tr><td>Firma Meyer</td><td>m.meyer@firma-meyer.de</td></tr>
		<tr><td>Acme GmbH</td><td>k.weber@acme.de</td></tr>
		<tr><td>Berg AG</td><td>a.berg@berg.ag</td></tr>
	</table></body></html>`))

	report := a.Analyze(context.Background(), srv.URL)
	assert.Equal(t, PageExhibitorTable, report.PageType)
	assert.True(t, report.HasTable)
	assert.Equal(t, 3, report.EmailCount)
	assert.Equal(t, MinerHTTPBasic, report.Recommendation.Miner)
	assert.True(t, report.Recommendation.UseCache)
}

func TestSPAShellDetected(t *testing.T) {
	a := newTestAnalyzer(t)
	srv := serve(t, http.StatusOK, pad(`<html><head>
		<meta name="generator" content="Next.js 14"></head>
		<body><div id="__next"></div><noscript>Please enable JavaScript</noscript></body></html>`))

	report := a.Analyze(context.Background(), srv.URL)
	assert.Equal(t, PageSPACatalog, report.PageType)
	assert.Equal(t, MinerSPANetwork, report.Recommendation.Miner)
	assert.True(t, report.Recommendation.OwnPagination)
	assert.False(t, report.Recommendation.UseCache)
}

func TestNumberedPaginationDetected(t *testing.T) {
	a := newTestAnalyzer(t)
	srv := serve(t, http.StatusOK, pad(`<html><body>
		<div class="results">many entries</div>
		<ul class="pagination"><li>1</li><li>2</li><li>3</li></ul>
	</body></html>`))

	report := a.Analyze(context.Background(), srv.URL)
	assert.Equal(t, PaginationNumbered, report.PaginationType)
	assert.Equal(t, PagePaginated, report.PageType)
}

func TestCircuitOpenBlocksScout(t *testing.T) {
	a := newTestAnalyzer(t)
	srv := serve(t, http.StatusTooManyRequests, "slow down")

	// Five blocked fetches trip the domain circuit
	for i := 0; i < 5; i++ {
		report := a.Analyze(context.Background(), srv.URL+"/page")
		require.Equal(t, PageBlocked, report.PageType)
	}

	report := a.Analyze(context.Background(), srv.URL+"/page")
	assert.Equal(t, PageBlocked, report.PageType)
	assert.Equal(t, "domain circuit is open", report.Recommendation.Reason)
}

func TestDocumentViewerScore(t *testing.T) {
	a := newTestAnalyzer(t)
	srv := serve(t, http.StatusOK, pad(`<html><body class="flipbook">
		<canvas></canvas><canvas></canvas>
		<span>P:01</span><span>P:02</span><span>P:03</span>
	</body></html>`))

	report := a.Analyze(context.Background(), srv.URL)
	assert.Equal(t, PageDocumentViewer, report.PageType)
	assert.Equal(t, MinerDocument, report.Recommendation.Miner)
}
