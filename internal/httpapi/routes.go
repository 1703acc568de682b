package httpapi

import (
	"licensecore/pkg/health"
	"licensecore/pkg/middleware"
	"licensecore/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)

type RouteParams struct {
	fx.In
	Engine    *gin.Engine
	Handler   *Handler
	Health    health.HealthService
	Validator middleware.KeyValidator
	Limiter   *ratelimit.Limiter
}

func RegisterRoutes(p RouteParams) {
	e := p.Engine

	e.GET("/healthz", p.Health.Liveness)
	e.GET("/readyz", p.Health.Readiness)

	api := e.Group("/api", middleware.Error(), middleware.Channel())
	{
		api.POST("/orders", p.Handler.CreateOrder)
		api.POST("/checkout/verify-payment", p.Handler.VerifyPayment)

		api.POST("/warranty", p.Handler.SubmitWarranty)
		api.GET("/warranty", p.Handler.WarrantyStatus)
		api.POST("/warranty/resubmit", p.Handler.ResubmitWarranty)

		api.POST("/replacement-requests", p.Handler.CreateReplacement)
		api.POST("/instant-replacement",
			middleware.RateLimit(p.Limiter, "instant-replacement"), p.Handler.InstantReplacement)

		api.POST("/verify-order",
			middleware.RateLimit(p.Limiter, "verify-order"),
			middleware.APIKey(p.Validator, "verify"), p.Handler.VerifyOrder)

		admin := api.Group("/admin", middleware.APIKey(p.Validator, "admin"))
		{
			admin.PATCH("/warranty/:id", p.Handler.AdminWarranty)
			admin.PATCH("/replacement-requests/:id", p.Handler.AdminReplacement)
			admin.POST("/license-keys", p.Handler.AddKeys)
			admin.GET("/license-keys", p.Handler.ListKeys)
			admin.POST("/license-keys/:id/block", p.Handler.BlockKey)
			admin.GET("/inventory", p.Handler.Inventory)
		}
	}
}
