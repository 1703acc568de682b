package apikey

import (
	"licensecore/pkg/middleware"

	"go.uber.org/fx"
)

var Module = fx.Module("apikey.module",
	fx.Provide(
		NewService,
		func(s *Service) middleware.KeyValidator { return s },
	),
)
