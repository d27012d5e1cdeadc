package mining

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prospectlab/prospector/domain/contact"
)

func TestClampFilter(t *testing.T) {
	f := clampFilter(ResultFilter{})
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 50, f.Limit)

	f = clampFilter(ResultFilter{Page: -3, Limit: 10000})
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 500, f.Limit)

	f = clampFilter(ResultFilter{Page: 7, Limit: 25})
	assert.Equal(t, 7, f.Page)
	assert.Equal(t, 25, f.Limit)
}

func TestIngestItemToContact(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		item := &IngestResultItem{Email: "anna@acme.io"}
		c := item.toContact()

		assert.Equal(t, "anna@acme.io", c.Email)
		assert.Equal(t, "manualMiner", c.Source)
		assert.Equal(t, contact.DefaultMinerConfidence, c.Confidence)
		assert.False(t, c.ExtractedAt.IsZero())
	})

	t.Run("emails list feeds primary and additional", func(t *testing.T) {
		item := &IngestResultItem{Emails: []string{"a@acme.io", "b@acme.io", "c@acme.io"}}
		c := item.toContact()

		assert.Equal(t, "a@acme.io", c.Email)
		assert.Equal(t, []string{"b@acme.io", "c@acme.io"}, c.AdditionalEmails)
	})

	t.Run("explicit email wins over list head", func(t *testing.T) {
		item := &IngestResultItem{Email: "primary@acme.io", Emails: []string{"other@acme.io", "b@acme.io"}}
		c := item.toContact()

		assert.Equal(t, "primary@acme.io", c.Email)
		assert.Equal(t, []string{"b@acme.io"}, c.AdditionalEmails)
	})

	t.Run("supplied source and confidence kept", func(t *testing.T) {
		item := &IngestResultItem{Email: "x@acme.io", Source: "apiMiner", Confidence: 80}
		c := item.toContact()

		assert.Equal(t, "apiMiner", c.Source)
		assert.Equal(t, 80, c.Confidence)
	})

	t.Run("role email classified", func(t *testing.T) {
		item := &IngestResultItem{Email: "info@acme.io"}
		assert.Equal(t, "role", item.toContact().EmailType)
	})
}
