package router

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospectlab/prospector/domain/scout"
)

func TestPlanSingleStepForSelfPaginatingTypes(t *testing.T) {
	b := NewPlanBuilder(slog.Default())

	for _, inputType := range []string{InputDirectory, InputSPACatalog, InputMesseFrankfurt} {
		plan := b.Build(inputType, ModeFull, nil)
		require.Len(t, plan.Steps, 1, inputType)
		assert.True(t, plan.Steps[0].OwnPagination, inputType)
	}
}

func TestPlanAIModeAppendsEnrichment(t *testing.T) {
	b := NewPlanBuilder(slog.Default())

	plan := b.Build(InputWebsite, ModeAI, nil)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, scout.MinerHTTPBasic, plan.Steps[0].Miner)
	assert.False(t, plan.Steps[0].Enrichment)
	assert.Equal(t, scout.MinerAI, plan.Steps[1].Miner)
	assert.True(t, plan.Steps[1].Enrichment)
}

func TestPlanUnknownTypeIsEmpty(t *testing.T) {
	b := NewPlanBuilder(slog.Default())

	plan := b.Build(InputUnknown, ModeFull, nil)
	assert.Empty(t, plan.Steps, "unknown input falls through to the single-extractor route")
}

func TestInferInputType(t *testing.T) {
	cases := []struct {
		report scout.Report
		want   string
	}{
		{scout.Report{URL: "https://exhibitors.messefrankfurt.com/x", PageType: scout.PageDirectory}, InputMesseFrankfurt},
		{scout.Report{URL: "https://europages.com/foo", PageType: scout.PageDirectory}, InputDirectory},
		{scout.Report{URL: "https://a.example", PageType: scout.PageSPACatalog}, InputSPACatalog},
		{scout.Report{URL: "https://a.example/x.pdf", PageType: scout.PageDocumentViewer}, InputDocument},
		{scout.Report{URL: "https://a.example", PageType: scout.PageExhibitorTable}, InputTable},
		{scout.Report{URL: "https://a.example", PageType: scout.PagePaginated}, InputWebsite},
		{scout.Report{URL: "https://a.example", PageType: scout.PageBlocked}, InputUnknown},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, InferInputType(&tc.report), tc.report.PageType)
	}
}
