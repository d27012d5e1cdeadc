package router

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/prospectlab/prospector/domain/scout"
	"github.com/prospectlab/prospector/pkg/logger"
)

// Input types the plan builder understands.
const (
	InputDirectory      = "directory"
	InputSPACatalog     = "spa_catalog"
	InputDocument       = "document"
	InputWebsite        = "website"
	InputTable          = "table"
	InputMemberTable    = "member_table"
	InputMesseFrankfurt = "messe_frankfurt"
	InputUnknown        = "unknown"
)

// Mining modes.
const (
	ModeFull = "full"
	ModeFree = "free"
	ModeAI   = "ai"
)

// Step is one (miner, normalizer, reason) unit of an execution plan.
type Step struct {
	Miner      string `json:"miner"`
	Normalizer string `json:"normalizer"`
	Reason     string `json:"reason"`

	// Enrichment steps run on page 1 only; the primary runs across all
	// pages of a paginated site.
	Enrichment bool `json:"enrichment,omitempty"`

	// OwnPagination means the orchestrator must not wrap this step in
	// its own pagination loop.
	OwnPagination bool `json:"own_pagination,omitempty"`
}

// Plan is the ordered step sequence for one job.
type Plan struct {
	InputType string `json:"input_type"`
	Mode      string `json:"mode"`
	Steps     []Step `json:"steps"`
}

// primarySteps maps input type to the type-specific primary extractor.
// Self-paginating inputs mark OwnPagination.
var primarySteps = map[string]Step{
	InputDirectory: {Miner: scout.MinerDirectory, Normalizer: "directory",
		Reason: "directory host, extractor paginates itself", OwnPagination: true},
	InputSPACatalog: {Miner: scout.MinerSPANetwork, Normalizer: "spa_network",
		Reason: "spa catalog, data comes from the network api", OwnPagination: true},
	InputMesseFrankfurt: {Miner: scout.MinerDirectory, Normalizer: "messe_frankfurt",
		Reason: "messe frankfurt exhibitor catalog", OwnPagination: true},
	InputDocument: {Miner: scout.MinerDocument, Normalizer: "document",
		Reason: "document or flipbook viewer"},
	InputTable: {Miner: scout.MinerPlaywrightTable, Normalizer: "table",
		Reason: "exhibitor table needs rendering"},
	InputMemberTable: {Miner: scout.MinerPlaywrightTable, Normalizer: "member_table",
		Reason: "member table needs rendering"},
	InputWebsite: {Miner: scout.MinerHTTPBasic, Normalizer: "generic",
		Reason: "generic website, static fetch first"},
}

// PlanBuilder turns (input type, mining mode, analysis) into a plan.
type PlanBuilder struct {
	log *slog.Logger
}

// NewPlanBuilder creates the builder.
func NewPlanBuilder(log *slog.Logger) *PlanBuilder {
	return &PlanBuilder{log: log.With(logger.Scope("router.plan"))}
}

// Build produces the ordered plan. Unknown input types yield an empty
// plan, which sends the orchestrator down the single-extractor route.
func (b *PlanBuilder) Build(inputType, mode string, analysis *scout.Report) Plan {
	plan := Plan{InputType: inputType, Mode: mode}

	step, ok := primarySteps[inputType]
	if !ok {
		return plan
	}
	plan.Steps = append(plan.Steps, step)

	if mode == ModeAI {
		plan.Steps = append(plan.Steps, Step{
			Miner:      scout.MinerAI,
			Normalizer: "ai",
			Reason:     "ai enrichment pass requested by mining mode",
			Enrichment: true,
		})
	}

	return plan
}

// InferInputType maps a scout report onto the plan builder's input types.
func InferInputType(report *scout.Report) string {
	switch report.PageType {
	case scout.PageDirectory:
		if hostIsMesseFrankfurt(report.URL) {
			return InputMesseFrankfurt
		}
		return InputDirectory
	case scout.PageSPACatalog:
		return InputSPACatalog
	case scout.PageDocumentViewer:
		return InputDocument
	case scout.PageExhibitorTable:
		return InputTable
	case scout.PageExhibitorList, scout.PagePaginated, scout.PageSingle:
		return InputWebsite
	default:
		return InputUnknown
	}
}

func hostIsMesseFrankfurt(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Hostname()), "messefrankfurt.com")
}
