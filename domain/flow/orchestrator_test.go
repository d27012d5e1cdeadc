package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prospectlab/prospector/domain/contact"
)

func TestDeadEnd(t *testing.T) {
	t.Run("no runs at all", func(t *testing.T) {
		reason, dead := deadEnd(nil)
		assert.True(t, dead)
		assert.Equal(t, "no extractor could run", reason)
	})

	t.Run("one clean empty run is not a dead end", func(t *testing.T) {
		_, dead := deadEnd([]contact.MinerResult{
			{Miner: "httpBasicMiner", Status: contact.StatusEmpty},
		})
		assert.False(t, dead)
	})

	t.Run("all failed", func(t *testing.T) {
		reason, dead := deadEnd([]contact.MinerResult{
			{Miner: "httpBasicMiner", Status: contact.StatusError},
			{Miner: "playwrightMiner", Status: contact.StatusError},
		})
		assert.True(t, dead)
		assert.Equal(t, "all extractors failed", reason)
	})

	t.Run("blocked wins the reason", func(t *testing.T) {
		reason, dead := deadEnd([]contact.MinerResult{
			{Miner: "httpBasicMiner", Status: contact.StatusBlocked},
			{Miner: "playwrightMiner", Status: contact.StatusError},
		})
		assert.True(t, dead)
		assert.Equal(t, "blocked by target site", reason)
	})
}
