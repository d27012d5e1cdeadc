package normalize

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/prospectlab/prospector/domain/contact"
	"github.com/prospectlab/prospector/pkg/logger"
)

// trackingDomains are analytics/CDN domains whose "emails" are artifacts
// of error pages and tracking snippets.
var trackingDomains = []string{
	"sentry.io", "sentry.wixpress.com", "google-analytics.com",
	"googletagmanager.com", "doubleclick.net", "cloudfront.net",
	"cloudflareinsights.com", "newrelic.com", "nr-data.net",
	"hotjar.com", "segment.io", "mixpanel.com",
}

// disposableDomains are throwaway mail providers.
var disposableDomains = []string{
	"mailinator.com", "10minutemail.com", "guerrillamail.com",
	"tempmail.com", "temp-mail.org", "trashmail.com", "yopmail.com",
	"sharklasers.com", "dispostable.com", "getnada.com",
}

var exampleDomains = []string{
	"example.com", "example.org", "example.net", "test.com", "email.com",
	"domain.com", "yourdomain.com", "yoursite.com", "acme.test",
}

var antiBotMarkers = []string{"cloudflare", "recaptcha", "captcha", "akamai"}

var (
	longDigitLocal  = regexp.MustCompile(`^[0-9]{6,}`)
	fieldLabel      = regexp.MustCompile(`(?i)^(name|email|e-mail|tel|phone|company|firma|web|website|address|city|country)\s*[:=]\s*`)
	phoneCharsOnly  = regexp.MustCompile(`^[+0-9 ()./-]{5,25}$`)
	nonLetterDigits = regexp.MustCompile(`^[^A-Za-zÄÖÜäöüß]+$`)
)

// ValidationResult is the validator's per-record outcome.
type ValidationResult struct {
	Cleaned      contact.UnifiedContact `json:"cleaned"`
	Valid        bool                   `json:"valid"`
	Reason       string                 `json:"reason,omitempty"`
	QualityScore int                    `json:"quality_score"`
}

// Validator cleans fields and rejects garbage records.
type Validator struct {
	log *slog.Logger
}

// NewValidator creates the validator.
func NewValidator(log *slog.Logger) *Validator {
	return &Validator{log: log.With(logger.Scope("validate"))}
}

// Validate cleans every field and applies the garbage rules. Cleaning is
// idempotent: validating a cleaned record yields the same cleaned record.
func (v *Validator) Validate(c contact.UnifiedContact) ValidationResult {
	res := ValidationResult{}

	c.Email = strings.ToLower(CleanField(c.Email))
	c.ContactName = CleanName(CleanField(c.ContactName))
	c.JobTitle = CleanField(c.JobTitle)
	c.CompanyName = CleanField(c.CompanyName)
	c.Website = CleanField(c.Website)
	c.City = CleanField(c.City)
	c.Address = CleanField(c.Address)
	c.Phone = CleanField(c.Phone)
	c.Country = strings.ToUpper(CleanField(c.Country))

	if !validLength(c.ContactName, 0, 120) {
		c.ContactName = ""
	}
	if !validLength(c.CompanyName, 0, 200) || nonLetterDigits.MatchString(c.CompanyName) {
		c.CompanyName = ""
	}
	if c.Phone != "" && !phoneCharsOnly.MatchString(c.Phone) {
		c.Phone = ""
	}
	if len(c.Country) != 2 {
		c.Country = ""
	}

	res.Cleaned = c

	if c.Email != "" {
		if reason := garbageReason(c.Email); reason != "" {
			res.Reason = reason
			return res
		}
	} else if c.ContactName == "" {
		res.Reason = "no email and no contact name"
		return res
	}

	res.Valid = true
	res.QualityScore = qualityScore(&c)
	return res
}

// garbageReason returns a non-empty reason when the email marks the whole
// record as garbage.
func garbageReason(email string) string {
	if r := RejectEmail(email); r != "" {
		return r
	}
	domain := EmailDomain(email)
	local := email[:strings.LastIndex(email, "@")]

	for _, d := range trackingDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return "tracking domain"
		}
	}
	for _, d := range disposableDomains {
		if domain == d {
			return "disposable mail domain"
		}
	}
	for _, d := range exampleDomains {
		if domain == d {
			return "example or test domain"
		}
	}
	if longDigitLocal.MatchString(local) {
		return "numeric username"
	}
	for _, marker := range antiBotMarkers {
		if strings.Contains(domain, marker) {
			return "anti-bot artifact"
		}
	}
	return ""
}

// CleanField normalizes whitespace and strips a leading field label.
func CleanField(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = fieldLabel.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// CleanName additionally drops names that are only punctuation/digits.
func CleanName(s string) string {
	s = strings.Trim(s, " ,.-_")
	if nonLetterDigits.MatchString(s) {
		return ""
	}
	return s
}

func validLength(s string, min, max int) bool {
	return len(s) >= min && len(s) <= max
}

// qualityScore combines per-field signals into 0-100.
func qualityScore(c *contact.UnifiedContact) int {
	score := 0
	if c.Email != "" {
		score += 30
	}
	if c.ContactName != "" {
		score += 20
	}
	if c.CompanyName != "" {
		score += 15
	}
	if c.JobTitle != "" {
		score += 10
	}
	if c.Phone != "" {
		score += 10
	}
	if c.Website != "" {
		score += 10
	}
	if c.Country != "" {
		score += 5
	}
	if score > 100 {
		score = 100
	}
	return score
}
