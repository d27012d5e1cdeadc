package flow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prospectlab/prospector/domain/contact"
	"github.com/prospectlab/prospector/domain/extractor"
	"github.com/prospectlab/prospector/domain/scout"
	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/pkg/logger"
)

// Stop conditions for the page walk.
const (
	duplicatePageLimit = 2
	emptyPageLimit     = 3
)

// Paginator walks the page=N sequence of a paginated site for extractors
// that do not paginate themselves.
type Paginator struct {
	adapter *extractor.Adapter
	cfg     *config.Config
	log     *slog.Logger
}

// NewPaginator creates the paginator.
func NewPaginator(adapter *extractor.Adapter, cfg *config.Config, log *slog.Logger) *Paginator {
	return &Paginator{
		adapter: adapter,
		cfg:     cfg,
		log:     log.With(logger.Scope("flow.pagination")),
	}
}

// TotalPages derives the page budget for a job: one page for unpaginated
// sites, the configured default otherwise, clamped by the job override
// and the global ceiling.
func (p *Paginator) TotalPages(paginationType string, jobMaxPages int) int {
	if paginationType == "" || paginationType == scout.PaginationNone {
		return 1
	}
	total := p.cfg.Mining.DefaultTotal
	if jobMaxPages > 0 && jobMaxPages < total {
		total = jobMaxPages
	}
	if total > p.cfg.Mining.MaxPages {
		total = p.cfg.Mining.MaxPages
	}
	if total < 1 {
		total = 1
	}
	return total
}

// MineAllPages runs the extractor across the page sequence, merging the
// per-page results into one. The walk stops early after repeated
// identical pages (past the real last page servers often repeat it) or
// a run of empty pages.
func (p *Paginator) MineAllPages(ctx context.Context, ext extractor.Extractor, req extractor.Request, totalPages int) contact.MinerResult {
	set := contact.NewMergeSet()
	merged := contact.MinerResult{Miner: ext.Name(), Status: contact.StatusEmpty}

	seenHashes := make(map[string]int)
	duplicates := 0
	emptyRun := 0

	for page := 1; page <= totalPages; page++ {
		if page > 1 {
			select {
			case <-ctx.Done():
				merged.Error = ctx.Err().Error()
				merged.Status = contact.StatusError
				merged.Contacts = set.Contacts()
				return merged
			case <-time.After(p.cfg.Mining.PageDelay):
			}
		}

		res := p.adapter.Run(ctx, ext, req.WithURL(PageURL(req.URL, page)))
		merged.PagesProcessed++
		merged.DurationMS += res.DurationMS

		if res.Status == contact.StatusBlocked || res.Status == contact.StatusCostLimit {
			// A hard stop mid-walk keeps what earlier pages yielded.
			if set.Len() == 0 {
				merged.Status = res.Status
				merged.Error = res.Error
				return merged
			}
			p.log.Warn("page walk stopped early",
				slog.String("miner", ext.Name()),
				slog.Int("page", page),
				slog.String("status", string(res.Status)),
			)
			break
		}

		if len(res.Contacts) == 0 {
			emptyRun++
			if emptyRun >= emptyPageLimit {
				break
			}
			continue
		}
		emptyRun = 0

		hash := pageHash(res.Contacts)
		seenHashes[hash]++
		if seenHashes[hash] > 1 {
			duplicates++
			if duplicates >= duplicatePageLimit {
				break
			}
			continue
		}
		// Only an unbroken run of repeats means the sequence ended.
		duplicates = 0

		for _, c := range res.Contacts {
			set.Add(c)
		}
	}

	merged.Contacts = set.Contacts()
	if len(merged.Contacts) > 0 {
		merged.Status = contact.StatusOK
	}
	return merged
}

// PageURL sets the page query parameter on the job URL. Page 1 is the
// URL as given.
func PageURL(rawURL string, page int) string {
	if page <= 1 {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// pageHash fingerprints a page by its sorted email set, falling back to
// profile keys for email-less pages.
func pageHash(contacts []contact.UnifiedContact) string {
	keys := make([]string, 0, len(contacts))
	for i := range contacts {
		c := contacts[i]
		if c.HasEmail() {
			keys = append(keys, c.EmailKey())
			continue
		}
		name, srcURL := c.ProfileKey()
		keys = append(keys, name+"|"+srcURL)
	}
	sort.Strings(keys)
	sum := sha256.Sum256([]byte(strings.Join(keys, "\n")))
	return hex.EncodeToString(sum[:])
}
