// Package contact holds the unified in-memory contact model shared by the
// extractors, the aggregation pipeline and the importer.
package contact

import (
	"strings"
	"time"
)

// Email classification.
const (
	EmailTypePersonal = "personal"
	EmailTypeGeneric  = "generic"
	EmailTypeRole     = "role"
	EmailTypeUnknown  = "unknown"
)

// Confidence caps enforced during merging and filtering.
const (
	MaxConfidence          = 100
	ProfileOnlyCap         = 25
	AIWithoutEvidenceCap   = 40
	DefaultMinerConfidence = 50
)

// UnifiedContact is the canonical contact record. Identity is the
// lowercased email when present; otherwise the (name, source_url) pair.
// A contact without an email is "profile-only" and carries strictly
// weaker identity and capped confidence.
type UnifiedContact struct {
	Email            string     `json:"email,omitempty"`
	AdditionalEmails []string   `json:"additional_emails,omitempty"`
	ContactName      string     `json:"contact_name,omitempty"`
	JobTitle         string     `json:"job_title,omitempty"`
	CompanyName      string     `json:"company_name,omitempty"`
	Website          string     `json:"website,omitempty"`
	Country          string     `json:"country,omitempty"` // ISO-3166 alpha-2 when resolvable
	City             string     `json:"city,omitempty"`
	Address          string     `json:"address,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	Source           string     `json:"source,omitempty"` // extractor name
	SourceURL        string     `json:"source_url,omitempty"`
	Confidence       int        `json:"confidence"`
	Evidence         *Evidence  `json:"evidence,omitempty"`
	EmailType        string     `json:"email_type,omitempty"`
	ExtractedAt      time.Time  `json:"extracted_at,omitempty"`
}

// HasEmail reports whether the contact is email-keyed.
func (c *UnifiedContact) HasEmail() bool {
	return strings.TrimSpace(c.Email) != ""
}

// EmailKey returns the email identity, empty for profile-only contacts.
func (c *UnifiedContact) EmailKey() string {
	return strings.ToLower(strings.TrimSpace(c.Email))
}

// ProfileKey returns the weaker (name, source_url) identity used for
// profile-only contacts. Whitespace runs in the name collapse so that
// " Ada  Lovelace " and "ada lovelace" collide.
func (c *UnifiedContact) ProfileKey() (name, sourceURL string) {
	name = strings.ToLower(strings.Join(strings.Fields(c.ContactName), " "))
	sourceURL = strings.ToLower(strings.TrimSpace(c.SourceURL))
	return name, sourceURL
}

// AllEmails returns the primary plus additional emails, lowercased and
// deduplicated, in order.
func (c *UnifiedContact) AllEmails() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(e string) {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			return
		}
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	add(c.Email)
	for _, e := range c.AdditionalEmails {
		add(e)
	}
	return out
}

// ClampConfidence bounds confidence into [0, 100] and applies the
// profile-only cap.
func (c *UnifiedContact) ClampConfidence() {
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > MaxConfidence {
		c.Confidence = MaxConfidence
	}
	if !c.HasEmail() && c.Confidence > ProfileOnlyCap {
		c.Confidence = ProfileOnlyCap
	}
}

// MinerStatus classifies an extractor run outcome.
type MinerStatus string

const (
	StatusOK        MinerStatus = "OK"
	StatusEmpty     MinerStatus = "EMPTY"
	StatusError     MinerStatus = "ERROR"
	StatusBlocked   MinerStatus = "BLOCKED"
	StatusCostLimit MinerStatus = "COST_LIMIT"
)

// MinerResult is what an extractor run hands to the aggregation layer.
type MinerResult struct {
	Miner          string           `json:"miner"`
	Status         MinerStatus      `json:"status"`
	Contacts       []UnifiedContact `json:"contacts,omitempty"`
	PagesProcessed int              `json:"pages_processed,omitempty"`
	DurationMS     int64            `json:"duration_ms,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// Failed reports whether the run produced no usable outcome.
func (r *MinerResult) Failed() bool {
	return r.Status == StatusError || r.Status == StatusBlocked || r.Status == StatusCostLimit
}

// Candidate is the normalizer's output unit: one record per unique email.
type Candidate struct {
	Email          string            `json:"email"`
	FirstName      string            `json:"first_name,omitempty"`
	LastName       string            `json:"last_name,omitempty"`
	Affiliations   []Affiliation     `json:"affiliations,omitempty"`
	ExtractionMeta map[string]string `json:"extraction_meta,omitempty"`
}

// Affiliation is a candidate's company attachment. Confidence is only a
// pass-through of a miner-provided hint; the normalizer never invents it.
type Affiliation struct {
	CompanyName string `json:"company_name,omitempty"`
	Position    string `json:"position,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	City        string `json:"city,omitempty"`
	Website     string `json:"website,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Confidence  *int   `json:"confidence,omitempty"`
}
