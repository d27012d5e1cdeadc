package mining

import (
	"go.uber.org/fx"
)

var Module = fx.Module("mining",
	fx.Provide(
		NewRepository,
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
