package extractor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/prospectlab/prospector/domain/contact"
	"github.com/prospectlab/prospector/domain/normalize"
	"github.com/prospectlab/prospector/pkg/circuit"
	"github.com/prospectlab/prospector/pkg/costtracker"
	"github.com/prospectlab/prospector/pkg/logger"
	"github.com/prospectlab/prospector/pkg/metrics"
)

// Adapter decorates every extractor run with budget checks, circuit
// accounting, retries, normalization, validation and hallucination
// filtering. Extractor-level failures never escape as errors: they come
// back as a status-carrying result.
type Adapter struct {
	normalizer *normalize.Normalizer
	validator  *normalize.Validator
	filter     *normalize.HallucinationFilter
	costs      *costtracker.Tracker
	circuits   *circuit.Manager
	log        *slog.Logger
}

// NewAdapter creates the adapter.
func NewAdapter(
	normalizer *normalize.Normalizer,
	validator *normalize.Validator,
	filter *normalize.HallucinationFilter,
	costs *costtracker.Tracker,
	circuits *circuit.Manager,
	log *slog.Logger,
) *Adapter {
	return &Adapter{
		normalizer: normalizer,
		validator:  validator,
		filter:     filter,
		costs:      costs,
		circuits:   circuits,
		log:        log.With(logger.Scope("extractor.adapter")),
	}
}

// Run executes one extractor against one URL and returns a unified,
// validated result.
func (a *Adapter) Run(ctx context.Context, ext Extractor, req Request) contact.MinerResult {
	start := time.Now()
	caps := ext.Capabilities()
	result := contact.MinerResult{Miner: ext.Name()}

	if ok, reason := a.costs.CanProceed(req.TenantID, req.JobID, caps.CostOperation, req.URL); !ok {
		metrics.CostLimitHits.WithLabelValues(reason).Inc()
		result.Status = contact.StatusCostLimit
		result.Error = reason
		return result
	}

	done, err := a.circuits.Acquire(req.URL)
	if err != nil {
		metrics.CircuitRejections.Inc()
		result.Status = contact.StatusBlocked
		result.Error = "circuit open for domain"
		return result
	}

	output, mineErr := a.mineWithRetries(ctx, ext, req, caps, done)
	result.DurationMS = time.Since(start).Milliseconds()

	switch {
	case errors.Is(mineErr, ErrBlocked):
		result.Status = contact.StatusBlocked
		result.Error = mineErr.Error()
		return result
	case errors.Is(mineErr, ErrEmpty):
		result.Status = contact.StatusEmpty
		return result
	case mineErr != nil:
		result.Status = contact.StatusError
		result.Error = mineErr.Error()
		return result
	}

	a.costs.RecordCost(req.TenantID, req.JobID, caps.CostOperation, req.URL)
	metrics.CostRecorded.WithLabelValues(string(caps.CostOperation)).
		Add(a.costs.UnitCost(caps.CostOperation))

	contacts := a.convert(output, req, caps)
	if len(contacts) == 0 {
		result.Status = contact.StatusEmpty
		return result
	}

	metrics.ContactsExtracted.WithLabelValues(ext.Name()).Add(float64(len(contacts)))
	result.Status = contact.StatusOK
	result.Contacts = contacts
	return result
}

// mineWithRetries retries transient errors within the per-URL retry
// budget. Blocked and empty outcomes are never retried.
func (a *Adapter) mineWithRetries(ctx context.Context, ext Extractor, req Request, caps Capabilities, done circuit.Done) (normalize.MinerOutput, error) {
	for {
		runCtx := ctx
		var cancel context.CancelFunc
		if caps.Timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, caps.Timeout)
		}
		output, err := ext.Mine(runCtx, req)
		if cancel != nil {
			cancel()
		}

		switch {
		case err == nil:
			done(true, "")
			return output, nil
		case errors.Is(err, ErrBlocked):
			done(false, "blocked: "+req.URL)
			return output, err
		case errors.Is(err, ErrEmpty):
			done(true, "")
			return output, err
		case errors.Is(err, ErrUnavailable):
			// Build configuration, not a site failure: no retries, no
			// circuit penalty, so fallback chains move on immediately.
			done(true, "")
			return output, err
		}

		if ok, reason := a.costs.CanRetry(req.JobID, req.URL); !ok {
			done(false, err.Error())
			a.log.Debug("retry budget exhausted",
				slog.String("url", req.URL),
				slog.String("reason", reason),
			)
			return output, err
		}
		a.costs.RecordRetry(req.JobID, req.URL)
		a.log.Debug("retrying extractor",
			slog.String("miner", ext.Name()),
			slog.String("url", req.URL),
			logger.Error(err),
		)

		select {
		case <-ctx.Done():
			done(false, "canceled")
			return output, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// convert runs the normalize → validate → filter pipeline and produces
// unified contacts in canonical form.
func (a *Adapter) convert(output normalize.MinerOutput, req Request, caps Capabilities) []contact.UnifiedContact {
	normRes := a.normalizer.Normalize(output)

	var contacts []contact.UnifiedContact
	for _, cand := range normRes.Candidates {
		c := a.candidateToContact(cand, output, req, caps)

		val := a.validator.Validate(c)
		if !val.Valid {
			metrics.ContactsRejected.WithLabelValues(val.Reason).Inc()
			continue
		}
		contacts = append(contacts, val.Cleaned)
	}

	return a.filter.FilterAll(contacts, true, 0)
}

func (a *Adapter) candidateToContact(cand contact.Candidate, output normalize.MinerOutput, req Request, caps Capabilities) contact.UnifiedContact {
	c := contact.UnifiedContact{
		Email:       cand.Email,
		ContactName: strings.TrimSpace(cand.FirstName + " " + cand.LastName),
		Source:      output.Miner,
		SourceURL:   req.URL,
		Confidence:  caps.DefaultConfidence,
		EmailType:   normalize.ClassifyEmail(cand.Email),
		ExtractedAt: time.Now().UTC(),
	}

	if len(cand.Affiliations) > 0 {
		aff := cand.Affiliations[0]
		c.CompanyName = aff.CompanyName
		c.JobTitle = aff.Position
		c.Country = aff.CountryCode
		c.City = aff.City
		c.Website = aff.Website
		c.Phone = aff.Phone
		if aff.Confidence != nil {
			c.Confidence = *aff.Confidence
		}
	}

	c.Evidence = deriveEvidence(cand, output)
	return c
}

// deriveEvidence tags where the email was found: a mailto link beats a
// structured block beats a plain text match.
func deriveEvidence(cand contact.Candidate, output normalize.MinerOutput) *contact.Evidence {
	if output.HTML != "" && strings.Contains(strings.ToLower(output.HTML), "mailto:"+cand.Email) {
		return &contact.Evidence{Kind: contact.EvidenceMailtoLink, Value: "mailto:" + cand.Email}
	}
	if cand.ExtractionMeta["origin"] == "block" {
		return &contact.Evidence{Kind: contact.EvidenceTableCell, Value: cand.Email}
	}
	return &contact.Evidence{Kind: contact.EvidenceTextMatch, Value: cand.Email}
}
