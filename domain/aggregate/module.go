package aggregate

import (
	"go.uber.org/fx"

	"github.com/prospectlab/prospector/domain/mining"
)

var Module = fx.Module("aggregate",
	fx.Provide(
		NewCanonical,
		NewAggregator,
	),
	fx.Invoke(func(svc *mining.Service, canonical *Canonical) {
		svc.SetCanonical(canonical)
	}),
)
