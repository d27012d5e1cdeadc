// Package flow orchestrates mining jobs end to end: routing, extraction
// with pagination and fallbacks, the Flow-1 aggregation, and the
// event-driven Flow-2 enrichment pass.
package flow

import (
	"fmt"

	"github.com/prospectlab/prospector/domain/aggregate"
	"github.com/prospectlab/prospector/internal/config"
)

// Flow-2 sizing thresholds.
const (
	// largeJobContacts marks a result set big enough to threaten memory
	// during enrichment.
	largeJobContacts = 500

	// largeJobEnrichment is the enrichment rate above which a large job
	// gains too little from another pass to justify the risk.
	largeJobEnrichment = 0.50

	// smallJobContacts is the size under which crawlable websites alone
	// justify enrichment.
	smallJobContacts = 10
)

// Flow2Decision says whether and how to run the enrichment pass.
// Concurrency is the website crawl fan-out within a single job; the
// job-level admission ceiling lives on the listener.
type Flow2Decision struct {
	Run         bool
	MaxWebsites int
	Concurrency int
	Reason      string
}

// DecideFlow2 applies the enrichment decision table to a Flow-1 outcome.
// Large well-enriched jobs skip; large thin jobs run throttled; thin or
// tiny jobs with crawlable websites run normally.
func DecideFlow2(p aggregate.DonePayload, disabled bool, cfg config.MiningConfig) Flow2Decision {
	skip := func(reason string) Flow2Decision {
		return Flow2Decision{Reason: reason}
	}
	run := func(maxWebsites, concurrency int, reason string) Flow2Decision {
		return Flow2Decision{Run: true, MaxWebsites: maxWebsites, Concurrency: concurrency, Reason: reason}
	}

	if disabled {
		return skip("flow2 disabled for this job")
	}

	if p.ContactCount > largeJobContacts {
		if p.EnrichmentRate >= largeJobEnrichment {
			return skip(fmt.Sprintf("large job (%d contacts) already %.0f%% enriched",
				p.ContactCount, p.EnrichmentRate*100))
		}
		return run(cfg.Flow2MaxWebsites, 1, fmt.Sprintf(
			"large job (%d contacts) under-enriched, running throttled", p.ContactCount))
	}

	if p.EnrichmentRate < cfg.EnrichThreshold {
		return run(cfg.Flow2MaxWebsites, cfg.Flow2BatchConc, fmt.Sprintf(
			"enrichment rate %.2f below threshold %.2f", p.EnrichmentRate, cfg.EnrichThreshold))
	}

	if len(p.WebsiteURLs) > 0 && p.ContactCount < smallJobContacts {
		return run(cfg.Flow2MaxWebsites, cfg.Flow2BatchConc, fmt.Sprintf(
			"small result set (%d contacts) with %d crawlable websites",
			p.ContactCount, len(p.WebsiteURLs)))
	}

	return skip("result set sufficiently enriched")
}
