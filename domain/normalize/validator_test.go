package normalize

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prospectlab/prospector/domain/contact"
)

func newTestValidator() *Validator {
	return NewValidator(slog.Default())
}

func TestValidateCleansFields(t *testing.T) {
	v := newTestValidator()

	res := v.Validate(contact.UnifiedContact{
		Email:       "  Jane.Doe@Firm.DE ",
		ContactName: "Name:  Jane   Doe ",
		CompanyName: " Firma   Meyer ",
		Phone:       "+49 30 1234567",
		Country:     "de",
	})

	assert.True(t, res.Valid)
	assert.Equal(t, "jane.doe@firm.de", res.Cleaned.Email)
	assert.Equal(t, "Jane Doe", res.Cleaned.ContactName)
	assert.Equal(t, "Firma Meyer", res.Cleaned.CompanyName)
	assert.Equal(t, "DE", res.Cleaned.Country)
	assert.Positive(t, res.QualityScore)
}

func TestValidateIdempotent(t *testing.T) {
	v := newTestValidator()

	input := contact.UnifiedContact{
		Email:       "Email: karl.weber@firma.de",
		ContactName: "  Karl   Weber,",
		JobTitle:    "Tel: CTO",
		Phone:       "+49 (0)30 555-0100",
	}
	once := v.Validate(input)
	twice := v.Validate(once.Cleaned)
	assert.Equal(t, once.Cleaned, twice.Cleaned)
}

func TestGarbageRejection(t *testing.T) {
	v := newTestValidator()

	cases := []struct {
		email  string
		reason string
	}{
		{"abc123@sentry.io", "tracking domain"},
		{"x.y@o123.ingest.sentry.io", "tracking domain"},
		{"someone@mailinator.com", "disposable mail domain"},
		{"a.b@test.com", "example or test domain"},
		{"1234567@firm.de", "numeric username"},
		{"x.y@challenge.cloudflare-check.com", "anti-bot artifact"},
	}
	for _, tc := range cases {
		res := v.Validate(contact.UnifiedContact{Email: tc.email})
		assert.False(t, res.Valid, "email %q", tc.email)
		assert.Equal(t, tc.reason, res.Reason, "email %q", tc.email)
	}
}

func TestProfileOnlyNeedsName(t *testing.T) {
	v := newTestValidator()

	res := v.Validate(contact.UnifiedContact{Phone: "+49 30 1234567"})
	assert.False(t, res.Valid)

	res = v.Validate(contact.UnifiedContact{ContactName: "Ada Lovelace", SourceURL: "https://x.de"})
	assert.True(t, res.Valid)
}

func TestInvalidPhoneDropped(t *testing.T) {
	v := newTestValidator()
	res := v.Validate(contact.UnifiedContact{
		Email: "a.b@firm.de",
		Phone: "call me maybe",
	})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Cleaned.Phone)
}

func TestQualityScoreGrowsWithFields(t *testing.T) {
	v := newTestValidator()

	sparse := v.Validate(contact.UnifiedContact{Email: "a.b@firm.de"})
	rich := v.Validate(contact.UnifiedContact{
		Email:       "a.b@firm.de",
		ContactName: "Anna Berg",
		CompanyName: "Firma Berg",
		JobTitle:    "CEO",
		Phone:       "+49 30 555",
		Website:     "https://firm.de",
		Country:     "DE",
	})
	assert.Greater(t, rich.QualityScore, sparse.QualityScore)
}
