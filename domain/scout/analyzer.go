// Package scout performs the cheap HTTP-only structural sniff of a target
// URL: what kind of page it is, how it paginates, and which extractor
// should mine it. It never renders JavaScript.
package scout

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/fx"

	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/pkg/circuit"
	"github.com/prospectlab/prospector/pkg/htmlcache"
	"github.com/prospectlab/prospector/pkg/logger"
)

var Module = fx.Module("scout",
	fx.Provide(NewAnalyzer),
)

// Page types.
const (
	PageExhibitorTable = "exhibitor_table"
	PageExhibitorList  = "exhibitor_list"
	PageSingle         = "single_page"
	PagePaginated      = "paginated"
	PageDynamic        = "dynamic"
	PageDocumentViewer = "document_viewer"
	PageDirectory      = "directory"
	PageSPACatalog     = "spa_catalog"
	PageBlocked        = "blocked"
	PageError          = "error"
	PageUnknown        = "unknown"
)

// Pagination types.
const (
	PaginationNumbered   = "numbered"
	PaginationNextButton = "next_button"
	PaginationLoadMore   = "load_more"
	PaginationInfinite   = "infinite"
	PaginationNone       = "none"
)

// Miner names, shared with the router's priority table.
const (
	MinerHTTPBasic       = "httpBasicMiner"
	MinerPlaywrightTable = "playwrightTableMiner"
	MinerPlaywright      = "playwrightMiner"
	MinerAI              = "aiMiner"
	MinerWebsiteScraper  = "websiteScraperMiner"
	MinerDocument        = "documentMiner"
	MinerDirectory       = "directoryMiner"
	MinerSPANetwork      = "spaNetworkMiner"
)

// knownDirectories force the directory route by hostname.
var knownDirectories = []string{
	"exhibitors.messefrankfurt.com",
	"europages.com",
	"wlw.de",
	"kompass.com",
	"gelbeseiten.de",
	"yellowpages.com",
	"yelp.com",
}

// Recommendation is the miner choice the analyzer derives from a report.
type Recommendation struct {
	Miner         string `json:"miner"`
	UseCache      bool   `json:"use_cache"`
	Reason        string `json:"reason"`
	OwnPagination bool   `json:"own_pagination,omitempty"`
}

// Report is the analyzer's outcome. Analysis never fails: errors surface
// as page_type error or blocked with a usable recommendation.
type Report struct {
	URL                  string         `json:"url"`
	PageType             string         `json:"page_type"`
	PaginationType       string         `json:"pagination_type"`
	EmailCount           int            `json:"email_count"`
	DetailLinkCount      int            `json:"detail_link_count"`
	HasTable             bool           `json:"has_table"`
	HasDynamicIndicators bool           `json:"has_dynamic_indicators"`
	Recommendation       Recommendation `json:"recommendation"`
	AnalysisTimeMS       int64          `json:"analysis_time_ms"`
}

// Analyzer is the scout service.
type Analyzer struct {
	client   *http.Client
	cache    *htmlcache.Cache
	circuits *circuit.Manager
	log      *slog.Logger
}

// NewAnalyzer creates the scout with the configured fetch timeout.
func NewAnalyzer(cfg *config.Config, cache *htmlcache.Cache, circuits *circuit.Manager, log *slog.Logger) *Analyzer {
	return &Analyzer{
		client:   &http.Client{Timeout: cfg.Mining.ScoutTimeout},
		cache:    cache,
		circuits: circuits,
		log:      log.With(logger.Scope("scout")),
	}
}

// Analyze classifies a URL. It consults the HTML cache before fetching
// and records the fetch outcome on the domain's circuit breaker.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string) Report {
	start := time.Now()
	report := Report{URL: rawURL, PageType: PageUnknown, PaginationType: PaginationNone}

	finish := func(r Report) Report {
		r.AnalysisTimeMS = time.Since(start).Milliseconds()
		return r
	}

	if isPDFURL(rawURL) {
		report.PageType = PageDocumentViewer
		report.Recommendation = Recommendation{
			Miner:    MinerDocument,
			UseCache: false,
			Reason:   "url points at a pdf document",
		}
		return finish(report)
	}

	body, fetchOutcome := a.fetch(ctx, rawURL)
	switch fetchOutcome {
	case fetchBlocked:
		report.PageType = PageBlocked
		report.Recommendation = Recommendation{
			Miner:  MinerPlaywright,
			Reason: "plain http fetch was blocked",
		}
		return finish(report)
	case fetchCircuitOpen:
		report.PageType = PageBlocked
		report.Recommendation = Recommendation{
			Miner:  MinerPlaywright,
			Reason: "domain circuit is open",
		}
		return finish(report)
	case fetchError:
		report.PageType = PageError
		report.Recommendation = Recommendation{
			Miner:  MinerPlaywright,
			Reason: "http fetch failed, falling back to browser",
		}
		return finish(report)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		report.PageType = PageError
		report.Recommendation = Recommendation{Miner: MinerPlaywright, Reason: "unparseable html"}
		return finish(report)
	}

	a.inspect(&report, rawURL, body, doc)
	report.Recommendation = recommend(&report)
	return finish(report)
}

type fetchResult int

const (
	fetchOK fetchResult = iota
	fetchBlocked
	fetchError
	fetchCircuitOpen
)

func (a *Analyzer) fetch(ctx context.Context, rawURL string) (string, fetchResult) {
	if body, ok := a.cache.Load(ctx, rawURL); ok {
		return body, fetchOK
	}

	done, err := a.circuits.Acquire(rawURL)
	if err != nil {
		a.log.Debug("scout fetch refused by circuit", slog.String("url", rawURL))
		return "", fetchCircuitOpen
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		done(false, "invalid url")
		return "", fetchError
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; prospector/1.0)")

	resp, err := a.client.Do(req)
	if err != nil {
		done(false, "fetch: "+err.Error())
		return "", fetchError
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		done(false, "http "+resp.Status)
		return "", fetchBlocked
	}
	if resp.StatusCode >= 400 {
		done(false, "http "+resp.Status)
		return "", fetchError
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		done(false, "read body: "+err.Error())
		return "", fetchError
	}
	body := string(raw)
	done(true, "")

	if err := a.cache.Store(ctx, rawURL, body); err != nil {
		a.log.Debug("scout body not cacheable", slog.String("url", rawURL), logger.Error(err))
	}
	return body, fetchOK
}

func isPDFURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(rawURL), ".pdf")
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}
