package warranty

import "go.uber.org/fx"

var Module = fx.Module("warranty.module",
	fx.Provide(
		NewMinioStore,
		NewService,
	),
)
