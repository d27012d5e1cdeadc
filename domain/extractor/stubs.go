package extractor

import (
	"context"
	"errors"
	"time"

	"github.com/prospectlab/prospector/domain/normalize"
	"github.com/prospectlab/prospector/pkg/costtracker"
)

// ErrUnavailable marks a miner that exists in the routing tables but is
// not backed by an engine in this build.
var ErrUnavailable = errors.New("extractor: miner not available in this build")

// UnavailableMiner is a placeholder for miners whose engine (headless
// browser, LLM backend, crawl worker) runs outside this binary. It
// registers under the real name with the real capabilities, so routing
// plans stay valid and fall through to the next miner when it reports
// ErrUnavailable.
type UnavailableMiner struct {
	name string
	caps Capabilities
}

// NewUnavailableMiner creates the placeholder.
func NewUnavailableMiner(name string, caps Capabilities) *UnavailableMiner {
	return &UnavailableMiner{name: name, caps: caps}
}

func (m *UnavailableMiner) Name() string               { return m.name }
func (m *UnavailableMiner) Capabilities() Capabilities { return m.caps }

func (m *UnavailableMiner) Mine(ctx context.Context, req Request) (normalize.MinerOutput, error) {
	return normalize.MinerOutput{Miner: m.name, SourceURL: req.URL}, ErrUnavailable
}

// unavailableMiners lists the out-of-process engines this build knows
// about but does not carry.
func unavailableMiners() []*UnavailableMiner {
	return []*UnavailableMiner{
		NewUnavailableMiner("playwrightTableMiner", Capabilities{
			SupportsPagination: true,
			CostOperation:      costtracker.OpBrowserPage,
			DefaultConfidence:  70,
			Timeout:            60 * time.Second,
		}),
		NewUnavailableMiner("playwrightMiner", Capabilities{
			SupportsPagination: true,
			CostOperation:      costtracker.OpBrowserPage,
			DefaultConfidence:  60,
			Timeout:            60 * time.Second,
		}),
		NewUnavailableMiner("aiMiner", Capabilities{
			UseCache:          true,
			CostOperation:     costtracker.OpAIExtraction,
			DefaultConfidence: 70,
			Timeout:           90 * time.Second,
		}),
		NewUnavailableMiner("websiteScraperMiner", Capabilities{
			OwnPagination:     true,
			CostOperation:     costtracker.OpDeepCrawl,
			DefaultConfidence: 60,
			Timeout:           5 * time.Minute,
		}),
		NewUnavailableMiner("directoryMiner", Capabilities{
			OwnPagination:     true,
			CostOperation:     costtracker.OpBrowserPage,
			DefaultConfidence: 75,
			Timeout:           5 * time.Minute,
		}),
		NewUnavailableMiner("spaNetworkMiner", Capabilities{
			OwnPagination:     true,
			CostOperation:     costtracker.OpBrowserPage,
			DefaultConfidence: 65,
			Timeout:           2 * time.Minute,
		}),
	}
}
