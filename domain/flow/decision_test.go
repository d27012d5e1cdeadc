package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prospectlab/prospector/domain/aggregate"
	"github.com/prospectlab/prospector/internal/config"
)

func miningCfg() config.MiningConfig {
	return config.MiningConfig{
		EnrichThreshold:  0.20,
		Flow2Concurrency: 2,
		Flow2BatchConc:   3,
		Flow2MaxWebsites: 50,
	}
}

func TestDecideFlow2(t *testing.T) {
	cfg := miningCfg()

	t.Run("disabled always skips", func(t *testing.T) {
		d := DecideFlow2(aggregate.DonePayload{ContactCount: 3, EnrichmentRate: 0.01}, true, cfg)
		assert.False(t, d.Run)
	})

	t.Run("large enriched job skips", func(t *testing.T) {
		d := DecideFlow2(aggregate.DonePayload{ContactCount: 800, EnrichmentRate: 0.60}, false, cfg)
		assert.False(t, d.Run)
		assert.Contains(t, d.Reason, "large job")
	})

	t.Run("large thin job runs throttled", func(t *testing.T) {
		d := DecideFlow2(aggregate.DonePayload{ContactCount: 800, EnrichmentRate: 0.30}, false, cfg)
		assert.True(t, d.Run)
		assert.Equal(t, 1, d.Concurrency)
		assert.Equal(t, 50, d.MaxWebsites)
	})

	t.Run("thin enrichment runs at batch concurrency", func(t *testing.T) {
		d := DecideFlow2(aggregate.DonePayload{ContactCount: 100, EnrichmentRate: 0.10}, false, cfg)
		assert.True(t, d.Run)
		assert.Equal(t, 3, d.Concurrency)
	})

	t.Run("small set with websites runs", func(t *testing.T) {
		d := DecideFlow2(aggregate.DonePayload{
			ContactCount:   4,
			EnrichmentRate: 0.40,
			WebsiteURLs:    []string{"https://acme.de"},
		}, false, cfg)
		assert.True(t, d.Run)
	})

	t.Run("small set without websites skips", func(t *testing.T) {
		d := DecideFlow2(aggregate.DonePayload{ContactCount: 4, EnrichmentRate: 0.40}, false, cfg)
		assert.False(t, d.Run)
	})

	t.Run("well enriched medium job skips", func(t *testing.T) {
		d := DecideFlow2(aggregate.DonePayload{
			ContactCount:   200,
			EnrichmentRate: 0.45,
			WebsiteURLs:    []string{"https://acme.de"},
		}, false, cfg)
		assert.False(t, d.Run)
	})

	t.Run("boundary: exactly 500 contacts is not large", func(t *testing.T) {
		d := DecideFlow2(aggregate.DonePayload{ContactCount: 500, EnrichmentRate: 0.10}, false, cfg)
		assert.True(t, d.Run)
		assert.Equal(t, 3, d.Concurrency)
	})
}
