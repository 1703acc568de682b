package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	pkgasynq "licensecore/pkg/asynq"
	"licensecore/pkg/config"
	"licensecore/pkg/db"
	"licensecore/pkg/gen"
	"licensecore/pkg/health"
	"licensecore/pkg/logger"
	"licensecore/pkg/minio"
	"licensecore/pkg/ratelimit"
	"licensecore/pkg/redis"

	"licensecore/internal/httpapi"
	"licensecore/internal/server"

	"licensecore/services/apikey"
	"licensecore/services/bootstrap"
	"licensecore/services/catalog"
	"licensecore/services/fulfillment"
	"licensecore/services/notify"
	"licensecore/services/order"
	"licensecore/services/pool"
	"licensecore/services/replacement"
	"licensecore/services/verification"
	"licensecore/services/warranty"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		minio.Client,
		pkgasynq.Client,
		pkgasynq.Server,
		gen.Module,
		health.Module,
		ratelimit.Module,

		catalog.Module,
		pool.Module,
		order.Module,
		notify.Module,
		fulfillment.Module,
		warranty.Module,
		replacement.Module,
		verification.Module,
		apikey.Module,
		bootstrap.Module,

		server.Module,
		httpapi.Module,

		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
