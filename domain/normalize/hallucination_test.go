package normalize

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prospectlab/prospector/domain/contact"
)

func newTestFilter() *HallucinationFilter {
	return NewHallucinationFilter(slog.Default())
}

func TestAISourceWithoutEvidenceCapped(t *testing.T) {
	f := newTestFilter()

	out := f.Filter(contact.UnifiedContact{
		Email:      "a.b@firm.de",
		Source:     "aiMiner",
		Confidence: 90,
	}, false)

	assert.Equal(t, contact.AIWithoutEvidenceCap, out.Contact.Confidence)
	assert.False(t, out.Rejected)
	assert.Contains(t, out.Flags, "ai_without_evidence")
}

func TestStrongEvidenceBoostsAndFloors(t *testing.T) {
	f := newTestFilter()

	out := f.Filter(contact.UnifiedContact{
		Email:      "a.b@firm.de",
		Source:     "httpBasicMiner",
		Confidence: 50,
		Evidence:   &contact.Evidence{Kind: contact.EvidenceMailtoLink},
	}, true)

	assert.GreaterOrEqual(t, out.Contact.Confidence, 85, "reliability >= 90 raises the floor")
	assert.False(t, out.Rejected)
}

func TestPlaceholderNamePlusSyntheticPhoneRejected(t *testing.T) {
	f := newTestFilter()

	out := f.Filter(contact.UnifiedContact{
		Email:       "j.doe@firm.de",
		ContactName: "John Doe",
		Phone:       "+1 111 111 1111",
		Source:      "aiMiner",
		Confidence:  80,
		Evidence:    &contact.Evidence{Kind: contact.EvidenceTableCell},
	}, true)

	assert.True(t, out.Rejected)
	assert.Contains(t, out.Flags, "placeholder_name")
	assert.Contains(t, out.Flags, "synthetic_phone")
}

func TestScoreBelowThresholdKept(t *testing.T) {
	f := newTestFilter()

	// Domain mismatch alone scores 15, well under the threshold
	out := f.Filter(contact.UnifiedContact{
		Email:      "a.b@firm.de",
		Website:    "https://other-company.com",
		Source:     "httpBasicMiner",
		Confidence: 60,
		Evidence:   &contact.Evidence{Kind: contact.EvidenceDOMElement},
	}, true)

	assert.False(t, out.Rejected)
	assert.Contains(t, out.Flags, "email_website_domain_mismatch")
}

func TestCityCountryMismatchFlagged(t *testing.T) {
	f := newTestFilter()

	out := f.Filter(contact.UnifiedContact{
		Email:      "a.b@firm.de",
		City:       "Berlin",
		Country:    "FR",
		Source:     "httpBasicMiner",
		Confidence: 60,
	}, true)

	assert.Contains(t, out.Flags, "city_country_mismatch")
	assert.False(t, out.Rejected)
}

func TestSuspiciousPhoneShapes(t *testing.T) {
	assert.True(t, suspiciousPhone("7777777"))
	assert.True(t, suspiciousPhone("+1 234 567 89"))
	assert.False(t, suspiciousPhone("+49 30 901820"))
	assert.False(t, suspiciousPhone("12345"), "too short to judge")
}

func TestFilterAllEnforcesMinConfidence(t *testing.T) {
	f := newTestFilter()

	kept := f.FilterAll([]contact.UnifiedContact{
		{Email: "low@firm.de", Source: "httpBasicMiner", Confidence: 10},
		{Email: "ok@firm.de", Source: "httpBasicMiner", Confidence: 60},
	}, true, 25)

	assert.Len(t, kept, 1)
	assert.Equal(t, "ok@firm.de", kept[0].Email)
}
