package replacement

import "go.uber.org/fx"

var Module = fx.Module("replacement.module",
	fx.Provide(NewService),
)
