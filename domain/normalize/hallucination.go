package normalize

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/prospectlab/prospector/domain/contact"
	"github.com/prospectlab/prospector/pkg/logger"
)

// placeholderNames flag obviously invented people.
var placeholderNames = map[string]struct{}{
	"john doe": {}, "jane doe": {}, "john smith": {}, "jane smith": {},
	"max mustermann": {}, "erika mustermann": {}, "test user": {},
	"lorem ipsum": {}, "first last": {}, "your name": {},
}

// cityCountry is a small canonical list used only to catch blatant
// city/country contradictions.
var cityCountry = map[string]string{
	"berlin": "DE", "munich": "DE", "münchen": "DE", "hamburg": "DE",
	"frankfurt": "DE", "cologne": "DE", "köln": "DE", "stuttgart": "DE",
	"vienna": "AT", "wien": "AT", "zurich": "CH", "zürich": "CH",
	"geneva": "CH", "paris": "FR", "lyon": "FR", "london": "GB",
	"manchester": "GB", "madrid": "ES", "barcelona": "ES", "rome": "IT",
	"milan": "IT", "amsterdam": "NL", "rotterdam": "NL", "brussels": "BE",
	"warsaw": "PL", "prague": "CZ", "budapest": "HU", "stockholm": "SE",
	"copenhagen": "DK", "oslo": "NO", "helsinki": "FI", "dublin": "IE",
	"lisbon": "PT", "new york": "US", "san francisco": "US", "chicago": "US",
	"tokyo": "JP", "singapore": "SG", "sydney": "AU",
}

const rejectScore = 50

var digitsOnly = regexp.MustCompile(`[^0-9]`)

// FilterOutcome reports what the hallucination filter did to a record.
type FilterOutcome struct {
	Contact  contact.UnifiedContact `json:"contact"`
	Rejected bool                   `json:"rejected"`
	Score    int                    `json:"score"`
	Flags    []string               `json:"flags,omitempty"`
}

// HallucinationFilter adjusts confidence by evidence reliability and
// rejects records whose heuristic hallucination score crosses the
// threshold.
type HallucinationFilter struct {
	log *slog.Logger
}

// NewHallucinationFilter creates the filter.
func NewHallucinationFilter(log *slog.Logger) *HallucinationFilter {
	return &HallucinationFilter{log: log.With(logger.Scope("hallucination"))}
}

// Filter applies the evidence rules to one record. With reject=false the
// record is only scored and confidence-adjusted, never dropped.
func (f *HallucinationFilter) Filter(c contact.UnifiedContact, reject bool) FilterOutcome {
	out := FilterOutcome{}

	ai := isAISource(c.Source)
	reliability := c.Evidence.Reliability()
	hasEvidence := c.Evidence.Valid()

	if ai && !hasEvidence && c.Confidence > contact.AIWithoutEvidenceCap {
		c.Confidence = contact.AIWithoutEvidenceCap
	}
	if hasEvidence && reliability >= 80 {
		boost := (reliability - 80) + 10 // 80→+10 ... 90+→up to +20
		if boost > 20 {
			boost = 20
		}
		c.Confidence += boost
	}
	if hasEvidence && reliability >= 90 && c.Confidence < 85 {
		c.Confidence = 85
	}
	c.ClampConfidence()

	score := 0
	flag := func(points int, name string) {
		score += points
		out.Flags = append(out.Flags, name)
	}

	if ai && !hasEvidence {
		flag(30, "ai_without_evidence")
	}
	if ai && filledFieldCount(&c) >= 8 {
		flag(20, "ai_overfilled")
	}
	if _, placeholder := placeholderNames[strings.ToLower(strings.TrimSpace(c.ContactName))]; placeholder {
		flag(40, "placeholder_name")
	}
	if domainMismatch(&c) {
		flag(15, "email_website_domain_mismatch")
	}
	if suspiciousPhone(c.Phone) {
		flag(50, "synthetic_phone")
	}
	if cityCountryMismatch(&c) {
		flag(25, "city_country_mismatch")
	}

	out.Score = score
	out.Contact = c
	if reject && score >= rejectScore {
		out.Rejected = true
		f.log.Debug("hallucinated record rejected",
			slog.String("email", c.Email),
			slog.Int("score", score),
			slog.Any("flags", out.Flags),
		)
	}
	return out
}

// FilterAll runs Filter over a slice, dropping rejected records and
// enforcing a confidence floor.
func (f *HallucinationFilter) FilterAll(contacts []contact.UnifiedContact, reject bool, minConfidence int) []contact.UnifiedContact {
	var kept []contact.UnifiedContact
	for _, c := range contacts {
		out := f.Filter(c, reject)
		if out.Rejected {
			continue
		}
		if out.Contact.Confidence < minConfidence {
			continue
		}
		kept = append(kept, out.Contact)
	}
	return kept
}

func isAISource(source string) bool {
	return strings.HasPrefix(strings.ToLower(source), "ai")
}

func filledFieldCount(c *contact.UnifiedContact) int {
	fields := []string{
		c.Email, c.ContactName, c.JobTitle, c.CompanyName, c.Website,
		c.Country, c.City, c.Address, c.Phone,
	}
	n := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			n++
		}
	}
	return n
}

// domainMismatch flags records whose email domain and website domain name
// different organizations. Generic providers are exempt.
func domainMismatch(c *contact.UnifiedContact) bool {
	emailDomain := EmailDomain(c.Email)
	if emailDomain == "" || c.Website == "" || IsGenericProvider(emailDomain) {
		return false
	}
	site := strings.ToLower(c.Website)
	site = strings.TrimPrefix(site, "https://")
	site = strings.TrimPrefix(site, "http://")
	site = strings.TrimPrefix(site, "www.")
	if i := strings.IndexAny(site, "/?#"); i >= 0 {
		site = site[:i]
	}
	if site == "" {
		return false
	}
	return !strings.HasSuffix(emailDomain, site) && !strings.HasSuffix(site, emailDomain)
}

// suspiciousPhone flags numbers that are one repeated digit or a strict
// ascending sequence.
func suspiciousPhone(phone string) bool {
	digits := digitsOnly.ReplaceAllString(phone, "")
	if len(digits) < 7 {
		return false
	}
	repeated := true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			repeated = false
			break
		}
	}
	if repeated {
		return true
	}
	sequential := true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[i-1]+1 {
			sequential = false
			break
		}
	}
	return sequential
}

func cityCountryMismatch(c *contact.UnifiedContact) bool {
	if c.City == "" || c.Country == "" {
		return false
	}
	expected, known := cityCountry[strings.ToLower(strings.TrimSpace(c.City))]
	return known && expected != strings.ToUpper(c.Country)
}
