package fulfillment

import "go.uber.org/fx"

var Module = fx.Module("fulfillment.module",
	fx.Provide(NewService),
)
