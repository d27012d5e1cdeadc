package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/prospectlab/prospector/domain/normalize"
	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/pkg/costtracker"
	"github.com/prospectlab/prospector/pkg/htmlcache"
)

// HTTPBasicMiner extracts contacts from static HTML over a plain GET.
// Cheapest extractor, first in every fallback chain.
type HTTPBasicMiner struct {
	client *http.Client
	cache  *htmlcache.Cache
	caps   Capabilities
}

// NewHTTPBasicMiner creates the basic HTTP extractor.
func NewHTTPBasicMiner(cfg *config.Config, cache *htmlcache.Cache) *HTTPBasicMiner {
	return &HTTPBasicMiner{
		client: &http.Client{Timeout: cfg.Mining.TableTimeout},
		cache:  cache,
		caps: Capabilities{
			UseCache:           true,
			SupportsPagination: true,
			CostOperation:      costtracker.OpHTTPRequest,
			DefaultConfidence:  60,
			Timeout:            cfg.Mining.TableTimeout,
		},
	}
}

func (m *HTTPBasicMiner) Name() string { return "httpBasicMiner" }

func (m *HTTPBasicMiner) Capabilities() Capabilities { return m.caps }

// Mine fetches the page and lifts out the title, visible text, table rows
// and mailto targets.
func (m *HTTPBasicMiner) Mine(ctx context.Context, req Request) (normalize.MinerOutput, error) {
	out := normalize.MinerOutput{Miner: m.Name(), SourceURL: req.URL}

	body, err := m.fetch(ctx, req.URL)
	if err != nil {
		return out, err
	}
	if ok, reason := htmlcache.Validate(body); !ok && strings.HasPrefix(reason, "block indicator") {
		return out, fmt.Errorf("%w: %s", ErrBlocked, reason)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("parse html: %w", err)
	}

	out.HTML = body
	out.PageTitle = strings.TrimSpace(doc.Find("title").First().Text())
	out.Text = strings.TrimSpace(doc.Text())

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		text := strings.TrimSpace(strings.Join(strings.Fields(row.Text()), " "))
		if text != "" {
			out.Blocks = append(out.Blocks, normalize.Block{Text: text})
		}
	})

	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		email := strings.TrimPrefix(href, "mailto:")
		if i := strings.IndexAny(email, "?&"); i >= 0 {
			email = email[:i]
		}
		if email == "" {
			return
		}
		out.Blocks = append(out.Blocks, normalize.Block{
			Text:   strings.TrimSpace(link.Parent().Text()),
			Fields: map[string]string{"email": email},
		})
	})

	if out.Text == "" && len(out.Blocks) == 0 {
		return out, ErrEmpty
	}
	return out, nil
}

func (m *HTTPBasicMiner) fetch(ctx context.Context, url string) (string, error) {
	if body, ok := m.cache.Load(ctx, url); ok {
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; prospector/1.0)")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: http %s", ErrBlocked, resp.Status)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: http %s", url, resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	body := string(raw)

	_ = m.cache.Store(ctx, url, body)
	return body, nil
}
