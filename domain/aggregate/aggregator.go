// Package aggregate implements the two result-aggregation passes. V1
// merges extractor outputs deterministically and parks the payload in the
// TTL store; V2 folds in the enrichment results and performs the final
// single-transaction write, followed by the best-effort canonical
// persons/affiliations upsert.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prospectlab/prospector/domain/contact"
	"github.com/prospectlab/prospector/domain/mining"
	"github.com/prospectlab/prospector/domain/normalize"
	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/internal/database"
	"github.com/prospectlab/prospector/pkg/eventbus"
	"github.com/prospectlab/prospector/pkg/logger"
	"github.com/prospectlab/prospector/pkg/ttlstore"
)

// ErrFlow1NotFound is returned by AggregateV2 when the temp payload
// expired or was never written.
var ErrFlow1NotFound = errors.New("aggregate: flow1 temp payload not found")

// Fields counted by the enrichment rate, per contact.
const enrichmentFieldCount = 5

// Confidence floor applied during the V2 validation pass.
const flow2MinConfidence = 25

// Websites carried on the aggregation:done event are capped; the payload
// itself keeps the full list.
const eventWebsiteCap = 50

// TempPayload is the Flow-1 output parked in the TTL store between the
// two aggregation passes.
type TempPayload struct {
	Contacts       []contact.UnifiedContact `json:"contacts"`
	WebsiteURLs    []string                 `json:"website_urls"`
	MinerStats     map[string]any           `json:"miner_stats,omitempty"`
	EnrichmentRate float64                  `json:"enrichment_rate"`
	SavedAt        time.Time                `json:"saved_at"`
}

// JobRef identifies the job an aggregation run belongs to.
type JobRef struct {
	JobID     uuid.UUID
	TenantID  uuid.UUID
	SourceURL string
}

// DonePayload is the aggregation:done event body.
type DonePayload struct {
	JobID              string   `json:"job_id"`
	EnrichmentRate     float64  `json:"enrichment_rate"`
	ContactCount       int      `json:"contact_count"`
	EmailBasedCount    int      `json:"email_based_count"`
	ProfileOnlyCount   int      `json:"profile_only_count"`
	WebsiteURLs        []string `json:"website_urls,omitempty"`
	DeepCrawlAttempted bool     `json:"deep_crawl_attempted"`
}

// V1Outcome summarizes a Flow-1 aggregation.
type V1Outcome struct {
	ContactCount     int
	EmailBasedCount  int
	ProfileOnlyCount int
	EnrichmentRate   float64
	WebsiteURLs      []string

	// AlreadyPersisted means the TTL store was unavailable and the rows
	// went straight to the database; Flow 2 must not run.
	AlreadyPersisted bool
}

// Aggregator implements both aggregation passes.
type Aggregator struct {
	store     *ttlstore.Store
	bus       *eventbus.Bus
	repo      *mining.Repository
	validator *normalize.Validator
	filter    *normalize.HallucinationFilter
	canonical *Canonical
	cfg       *config.Config
	log       *slog.Logger
}

// NewAggregator creates the aggregator.
func NewAggregator(
	store *ttlstore.Store,
	bus *eventbus.Bus,
	repo *mining.Repository,
	validator *normalize.Validator,
	filter *normalize.HallucinationFilter,
	canonical *Canonical,
	cfg *config.Config,
	log *slog.Logger,
) *Aggregator {
	return &Aggregator{
		store:     store,
		bus:       bus,
		repo:      repo,
		validator: validator,
		filter:    filter,
		canonical: canonical,
		cfg:       cfg,
		log:       log.With(logger.Scope("aggregate")),
	}
}

// AggregateV1 merges all extractor results, parks the payload in the TTL
// store and announces it. When the store is unavailable it falls back to
// the direct write and marks the outcome already persisted.
func (a *Aggregator) AggregateV1(ctx context.Context, results []contact.MinerResult, ref JobRef) (*V1Outcome, error) {
	set := contact.NewMergeSet()
	set.AddAll(results)
	contacts := set.Contacts()

	outcome := &V1Outcome{
		ContactCount:     set.Len(),
		EmailBasedCount:  set.EmailCount(),
		ProfileOnlyCount: set.ProfileOnlyCount(),
		EnrichmentRate:   EnrichmentRate(contacts),
		WebsiteURLs:      WebsiteURLs(contacts),
	}

	payload := TempPayload{
		Contacts:       contacts,
		WebsiteURLs:    outcome.WebsiteURLs,
		MinerStats:     minerStats(results),
		EnrichmentRate: outcome.EnrichmentRate,
		SavedAt:        time.Now().UTC(),
	}

	saved := false
	if a.store.Available() {
		key := ttlstore.TempResultsKey(ref.JobID.String())
		if err := a.store.Set(ctx, key, payload, a.cfg.Mining.TempTTL); err != nil {
			a.log.Warn("temp payload save failed, falling back to direct write",
				slog.String("job_id", ref.JobID.String()),
				logger.Error(err),
			)
		} else {
			saved = true
		}
	}

	if !saved {
		if err := a.AggregateSimple(ctx, contacts, ref); err != nil {
			return nil, err
		}
		outcome.AlreadyPersisted = true
		return outcome, nil
	}

	a.publishDone(ctx, ref, outcome)
	return outcome, nil
}

// AggregateSimple persists the merged contacts directly, bypassing Flow 2.
func (a *Aggregator) AggregateSimple(ctx context.Context, contacts []contact.UnifiedContact, ref JobRef) error {
	return a.persist(ctx, contacts, ref, nil)
}

// AggregateV2 merges the Flow-1 payload with the enrichment results,
// validates, persists in one transaction and triggers the canonical
// upsert. scraperResults may be empty; the result is then identical to
// AggregateSimple on the Flow-1 set.
func (a *Aggregator) AggregateV2(ctx context.Context, scraperResults []contact.MinerResult, ref JobRef) error {
	key := ttlstore.TempResultsKey(ref.JobID.String())
	lockKey := ttlstore.LockKey(ref.JobID.String())

	// The per-job lock is optional: losing it means another worker is
	// finalizing the same job.
	if ok, err := a.store.AcquireLock(ctx, lockKey, time.Minute); err == nil && !ok {
		a.log.Warn("another worker holds the finalize lock, skipping",
			slog.String("job_id", ref.JobID.String()))
		return nil
	}
	defer func() {
		if err := a.store.ReleaseLock(context.WithoutCancel(ctx), lockKey); err != nil {
			a.log.Debug("failed to release finalize lock", logger.Error(err))
		}
	}()

	var payload TempPayload
	found, err := a.store.Get(ctx, key, &payload)
	if err != nil {
		return fmt.Errorf("read temp payload: %w", err)
	}
	if !found {
		return ErrFlow1NotFound
	}

	set := contact.NewMergeSet()
	for _, c := range payload.Contacts {
		set.Add(c)
	}
	set.AddAll(scraperResults)

	// Validation + hallucination pass over the merged set.
	var cleaned []contact.UnifiedContact
	for _, c := range set.Contacts() {
		val := a.validator.Validate(c)
		if !val.Valid {
			continue
		}
		cleaned = append(cleaned, val.Cleaned)
	}
	cleaned = a.filter.FilterAll(cleaned, true, flow2MinConfidence)

	// Every record carries a source URL, falling back to the job input.
	for i := range cleaned {
		if cleaned[i].SourceURL == "" {
			cleaned[i].SourceURL = ref.SourceURL
		}
	}

	stats := mining.JSONMap{
		"enrichment_rate":  payload.EnrichmentRate,
		"flow2_contacts":   len(cleaned),
		"websites_crawled": len(scraperResults),
	}
	if err := a.persist(ctx, cleaned, ref, stats); err != nil {
		return err
	}

	// Canonical aggregation and event publishing never fail the write.
	if err := a.canonical.AggregateContacts(ctx, ref.TenantID, ref.JobID, cleaned); err != nil {
		a.log.Warn("canonical aggregation failed",
			slog.String("job_id", ref.JobID.String()),
			logger.Error(err),
		)
	}

	if err := a.store.Delete(ctx, key); err != nil {
		a.log.Debug("failed to drop temp payload", logger.Error(err))
	}

	if err := a.bus.Publish(ctx, eventbus.ChannelJobCompleted, ref.JobID.String(), map[string]any{
		"job_id":        ref.JobID.String(),
		"contact_count": len(cleaned),
	}); err != nil {
		a.log.Debug("failed to publish job:completed", logger.Error(err))
	}
	return nil
}

// ReadTempPayload exposes the parked Flow-1 payload to the orchestrator.
func (a *Aggregator) ReadTempPayload(ctx context.Context, jobID uuid.UUID) (*TempPayload, error) {
	var payload TempPayload
	found, err := a.store.Get(ctx, ttlstore.TempResultsKey(jobID.String()), &payload)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrFlow1NotFound
	}
	return &payload, nil
}

// DropTempPayload removes the parked payload, used on cancellation.
func (a *Aggregator) DropTempPayload(ctx context.Context, jobID uuid.UUID) {
	if err := a.store.Delete(ctx, ttlstore.TempResultsKey(jobID.String())); err != nil {
		a.log.Debug("failed to drop temp payload", logger.Error(err))
	}
}

// persist writes the contacts and finalizes the job in one transaction.
func (a *Aggregator) persist(ctx context.Context, contacts []contact.UnifiedContact, ref JobRef, stats mining.JSONMap) error {
	tx, err := database.BeginSafeTx(ctx, a.repo.DB())
	if err != nil {
		return fmt.Errorf("begin aggregate tx: %w", err)
	}
	defer tx.Rollback()

	totalEmails := 0
	for _, c := range contacts {
		if _, err := a.repo.UpsertContact(ctx, tx.Tx, ref.JobID, ref.TenantID, c); err != nil {
			return fmt.Errorf("upsert contact: %w", err)
		}
		totalEmails += len(c.AllEmails())
	}

	if err := a.repo.FinalizeJob(ctx, tx.Tx, ref.JobID, len(contacts), totalEmails, stats); err != nil {
		return err
	}
	return tx.Commit()
}

func (a *Aggregator) publishDone(ctx context.Context, ref JobRef, outcome *V1Outcome) {
	websites := outcome.WebsiteURLs
	if len(websites) > eventWebsiteCap {
		websites = websites[:eventWebsiteCap]
	}
	err := a.bus.Publish(ctx, eventbus.ChannelAggregationDone, ref.JobID.String(), DonePayload{
		JobID:              ref.JobID.String(),
		EnrichmentRate:     outcome.EnrichmentRate,
		ContactCount:       outcome.ContactCount,
		EmailBasedCount:    outcome.EmailBasedCount,
		ProfileOnlyCount:   outcome.ProfileOnlyCount,
		WebsiteURLs:        websites,
		DeepCrawlAttempted: false,
	})
	if err != nil {
		a.log.Warn("failed to publish aggregation:done",
			slog.String("job_id", ref.JobID.String()),
			logger.Error(err),
		)
	}
}

// EnrichmentRate measures how filled the merged set is over the five
// enrichable fields: contact_name, company_name, phone, website, country.
func EnrichmentRate(contacts []contact.UnifiedContact) float64 {
	if len(contacts) == 0 {
		return 0
	}
	filled := 0
	for _, c := range contacts {
		for _, v := range []string{c.ContactName, c.CompanyName, c.Phone, c.Website, c.Country} {
			if strings.TrimSpace(v) != "" {
				filled++
			}
		}
	}
	return float64(filled) / float64(len(contacts)*enrichmentFieldCount)
}

// WebsiteURLs collects the unique crawlable origins of a contact set:
// the origins of explicit websites plus https://<domain> for non-generic
// email domains. Output is sorted for determinism.
func WebsiteURLs(contacts []contact.UnifiedContact) []string {
	seen := make(map[string]struct{})
	for _, c := range contacts {
		if origin := originOf(c.Website); origin != "" {
			seen[origin] = struct{}{}
		}
		if domain := normalize.EmailDomain(c.Email); domain != "" && !normalize.IsGenericProvider(domain) {
			seen["https://"+domain] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for origin := range seen {
		out = append(out, origin)
	}
	sort.Strings(out)
	return out
}

func originOf(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func minerStats(results []contact.MinerResult) map[string]any {
	stats := make(map[string]any, len(results))
	for _, r := range results {
		stats[r.Miner] = map[string]any{
			"status":          string(r.Status),
			"contacts":        len(r.Contacts),
			"pages_processed": r.PagesProcessed,
			"duration_ms":     r.DurationMS,
			"error":           r.Error,
		}
	}
	return stats
}
