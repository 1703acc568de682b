package middleware

import (
	"context"

	"licensecore/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// RateLimiter throttles one subject inside a named scope.
type RateLimiter interface {
	Allow(ctx context.Context, scope, subject string) bool
}

// RateLimit throttles the route by client IP.
func RateLimit(l RateLimiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.Request.Context(), scope, c.ClientIP()) {
			be := errutil.TooManyRequest("too many requests, slow down", nil).(errutil.BaseError)
			c.AbortWithStatusJSON(be.Code.HTTPStatus(), be)
			return
		}

		c.Next()
	}
}
