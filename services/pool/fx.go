package pool

import "go.uber.org/fx"

var Module = fx.Module("pool.module",
	fx.Provide(NewService),
)
