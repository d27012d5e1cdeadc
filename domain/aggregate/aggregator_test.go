package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospectlab/prospector/domain/contact"
)

func TestEnrichmentRate(t *testing.T) {
	t.Run("empty set is zero", func(t *testing.T) {
		assert.Zero(t, EnrichmentRate(nil))
	})

	t.Run("fully enriched is one", func(t *testing.T) {
		contacts := []contact.UnifiedContact{{
			Email:       "anna@acme.de",
			ContactName: "Anna Schmidt",
			CompanyName: "Acme GmbH",
			Phone:       "+49 30 1234",
			Website:     "https://acme.de",
			Country:     "DE",
		}}
		assert.InDelta(t, 1.0, EnrichmentRate(contacts), 1e-9)
	})

	t.Run("partial fill counts per field", func(t *testing.T) {
		contacts := []contact.UnifiedContact{
			{Email: "a@x.com", ContactName: "A", CompanyName: "X"},
			{Email: "b@y.com"},
		}
		// 2 filled fields out of 10.
		assert.InDelta(t, 0.2, EnrichmentRate(contacts), 1e-9)
	})

	t.Run("whitespace does not count", func(t *testing.T) {
		contacts := []contact.UnifiedContact{{ContactName: "  "}}
		assert.Zero(t, EnrichmentRate(contacts))
	})
}

func TestWebsiteURLs(t *testing.T) {
	contacts := []contact.UnifiedContact{
		{Email: "info@acme.de", Website: "https://acme.de/kontakt?x=1"},
		{Email: "sales@acme.de"},
		{Email: "jane@gmail.com"},
		{Website: "widgets.example.com/about"},
	}
	urls := WebsiteURLs(contacts)

	require.Len(t, urls, 2)
	assert.Equal(t, []string{"https://acme.de", "https://widgets.example.com"}, urls)
}

func TestWebsiteURLsSkipsGenericAndEmpty(t *testing.T) {
	contacts := []contact.UnifiedContact{
		{Email: "a@gmail.com"},
		{Email: "b@outlook.com"},
		{},
	}
	assert.Empty(t, WebsiteURLs(contacts))
}

func TestOriginOf(t *testing.T) {
	assert.Equal(t, "https://acme.de", originOf("https://acme.de/team#a"))
	assert.Equal(t, "https://acme.de", originOf("acme.de/team"))
	assert.Equal(t, "http://acme.de:8080", originOf("http://acme.de:8080/x"))
	assert.Empty(t, originOf(""))
	assert.Empty(t, originOf("   "))
}

func TestMinerStats(t *testing.T) {
	results := []contact.MinerResult{
		{Miner: "httpBasicMiner", Status: contact.StatusOK, Contacts: []contact.UnifiedContact{{Email: "a@x.com"}}, PagesProcessed: 3, DurationMS: 120},
		{Miner: "browserMiner", Status: contact.StatusBlocked, Error: "403"},
	}
	stats := minerStats(results)

	require.Len(t, stats, 2)
	basic := stats["httpBasicMiner"].(map[string]any)
	assert.Equal(t, "OK", basic["status"])
	assert.Equal(t, 1, basic["contacts"])
	assert.Equal(t, 3, basic["pages_processed"])

	browser := stats["browserMiner"].(map[string]any)
	assert.Equal(t, "403", browser["error"])
}
