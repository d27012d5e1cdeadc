package extractor

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/prospectlab/prospector/domain/normalize"
	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/pkg/costtracker"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// DocumentMiner extracts contacts from large raw document text (exported
// catalogs, text layers of viewers). It streams the body in bounded
// chunks instead of holding it in memory.
type DocumentMiner struct {
	client *http.Client
	caps   Capabilities
}

// NewDocumentMiner creates the document extractor.
func NewDocumentMiner(cfg *config.Config) *DocumentMiner {
	return &DocumentMiner{
		client: &http.Client{Timeout: cfg.Mining.CrawlTimeout},
		caps: Capabilities{
			UseCache:          false,
			OwnPagination:     true,
			CostOperation:     costtracker.OpHTTPRequest,
			DefaultConfidence: 45,
			Timeout:           cfg.Mining.CrawlTimeout,
		},
	}
}

func (m *DocumentMiner) Name() string { return "documentMiner" }

func (m *DocumentMiner) Capabilities() Capabilities { return m.caps }

// Mine streams the document and emits one block per chunk that contains
// at least one email.
func (m *DocumentMiner) Mine(ctx context.Context, req Request) (normalize.MinerOutput, error) {
	out := normalize.MinerOutput{Miner: m.Name(), SourceURL: req.URL}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return out, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", "Mozilla/5.0 (compatible; prospector/1.0)")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return out, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return out, fmt.Errorf("%w: http %s", ErrBlocked, resp.Status)
	}
	if resp.StatusCode >= 400 {
		return out, fmt.Errorf("fetch %s: http %s", req.URL, resp.Status)
	}

	err = ChunkReader(resp.Body, defaultChunkSize, defaultChunkOverlap, func(chunk string) error {
		text := tagPattern.ReplaceAllString(chunk, " ")
		if !strings.Contains(text, "@") {
			return nil
		}
		out.Blocks = append(out.Blocks, normalize.Block{Text: text})
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("read document: %w", err)
	}

	if len(out.Blocks) == 0 {
		return out, ErrEmpty
	}
	return out, nil
}
