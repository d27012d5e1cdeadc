package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailKeyedMerge(t *testing.T) {
	set := NewMergeSet()
	set.Add(UnifiedContact{
		Email:       "Jane@Acme.COM",
		ContactName: "Jane",
		Confidence:  60,
		SourceURL:   "https://acme.com/team",
	})
	set.Add(UnifiedContact{
		Email:       "jane@acme.com",
		ContactName: "Jane Doe",
		CompanyName: "Acme GmbH",
		Confidence:  40,
		SourceURL:   "https://acme.com/about",
	})

	contacts := set.Contacts()
	require.Len(t, contacts, 1)
	c := contacts[0]
	assert.Equal(t, "jane@acme.com", c.Email)
	assert.Equal(t, "Jane Doe", c.ContactName, "longer non-empty value wins")
	assert.Equal(t, "Acme GmbH", c.CompanyName)
	assert.Equal(t, 60, c.Confidence, "confidence is max of both")
	assert.Equal(t, "https://acme.com/team", c.SourceURL, "source_url comes from the higher-confidence base")
	assert.Equal(t, 1, set.EmailCount())
	assert.Zero(t, set.ProfileOnlyCount())
}

func TestProfileOnlyDedup(t *testing.T) {
	set := NewMergeSet()
	set.Add(UnifiedContact{
		ContactName: "Ada Lovelace",
		SourceURL:   "https://example.com/team",
		Confidence:  80,
	})
	set.Add(UnifiedContact{
		ContactName: " ada  lovelace ",
		SourceURL:   "https://EXAMPLE.com/team",
		Confidence:  70,
	})

	contacts := set.Contacts()
	require.Len(t, contacts, 1)
	assert.Empty(t, contacts[0].Email)
	assert.LessOrEqual(t, contacts[0].Confidence, ProfileOnlyCap)
	assert.Zero(t, set.EmailCount(), "email map unaffected")
	assert.Equal(t, 1, set.ProfileOnlyCount())
}

func TestProfileOnlyNeverCollidesWithEmailKeyed(t *testing.T) {
	set := NewMergeSet()
	set.Add(UnifiedContact{
		Email:       "ada@example.com",
		ContactName: "Ada Lovelace",
		SourceURL:   "https://example.com/team",
		Confidence:  90,
	})
	set.Add(UnifiedContact{
		ContactName: "Ada Lovelace",
		SourceURL:   "https://example.com/team",
		Confidence:  90,
	})

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, 1, set.EmailCount())
	assert.Equal(t, 1, set.ProfileOnlyCount())

	// The email-keyed record keeps its full confidence
	for _, c := range set.Contacts() {
		if c.HasEmail() {
			assert.Equal(t, 90, c.Confidence)
		} else {
			assert.Equal(t, ProfileOnlyCap, c.Confidence)
		}
	}
}

func TestMergeCommutativeAtEqualConfidence(t *testing.T) {
	a := UnifiedContact{Email: "x@y.com", ContactName: "Xavier", Phone: "+49 30 1234", Confidence: 50}
	b := UnifiedContact{Email: "x@y.com", JobTitle: "CTO", Website: "https://y.com", Confidence: 50}

	ab := NewMergeSet()
	ab.Add(a)
	ab.Add(b)
	ba := NewMergeSet()
	ba.Add(b)
	ba.Add(a)

	first := ab.Contacts()[0]
	second := ba.Contacts()[0]
	assert.Equal(t, first.ContactName, second.ContactName)
	assert.Equal(t, first.JobTitle, second.JobTitle)
	assert.Equal(t, first.Phone, second.Phone)
	assert.Equal(t, first.Website, second.Website)
	assert.Equal(t, first.Confidence, second.Confidence)
}

func TestAdditionalEmailsUnion(t *testing.T) {
	set := NewMergeSet()
	set.Add(UnifiedContact{Email: "a@x.com", AdditionalEmails: []string{"b@x.com"}, Confidence: 50})
	set.Add(UnifiedContact{Email: "A@X.com", AdditionalEmails: []string{"B@x.com", "c@x.com"}, Confidence: 50})

	contacts := set.Contacts()
	require.Len(t, contacts, 1)
	assert.Equal(t, []string{"b@x.com", "c@x.com"}, contacts[0].AdditionalEmails)
}

func TestIdentitylessRecordsDropped(t *testing.T) {
	set := NewMergeSet()
	set.Add(UnifiedContact{Phone: "+1 555 0100", Confidence: 50})
	assert.Zero(t, set.Len())
}

func TestHigherReliabilityEvidenceWins(t *testing.T) {
	set := NewMergeSet()
	set.Add(UnifiedContact{
		Email:      "a@x.com",
		Confidence: 50,
		Evidence:   &Evidence{Kind: EvidenceTextMatch},
	})
	set.Add(UnifiedContact{
		Email:      "a@x.com",
		Confidence: 50,
		Evidence:   &Evidence{Kind: EvidenceMailtoLink, Value: "mailto:a@x.com"},
	})

	contacts := set.Contacts()
	require.NotNil(t, contacts[0].Evidence)
	assert.Equal(t, EvidenceMailtoLink, contacts[0].Evidence.Kind)
}

func TestConfidenceClamping(t *testing.T) {
	c := UnifiedContact{Email: "a@x.com", Confidence: 150}
	c.ClampConfidence()
	assert.Equal(t, MaxConfidence, c.Confidence)

	p := UnifiedContact{ContactName: "No Email", Confidence: 90}
	p.ClampConfidence()
	assert.Equal(t, ProfileOnlyCap, p.Confidence)

	n := UnifiedContact{Email: "a@x.com", Confidence: -5}
	n.ClampConfidence()
	assert.Zero(t, n.Confidence)
}
