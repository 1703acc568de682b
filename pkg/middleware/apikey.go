package middleware

import (
	"context"

	"licensecore/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// KeyValidator checks an inbound API key and returns the scopes granted
// to it.
type KeyValidator interface {
	Validate(ctx context.Context, rawKey string) ([]string, error)
}

// APIKey guards admin routes with the X-API-Key header.
func APIKey(v KeyValidator, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-API-Key")
		if raw == "" {
			err := errutil.Unauthorized("missing api key", nil).(errutil.BaseError)
			c.AbortWithStatusJSON(err.Code.HTTPStatus(), err)
			return
		}

		scopes, err := v.Validate(c.Request.Context(), raw)
		if err != nil {
			be := errutil.Unauthorized("invalid api key", err).(errutil.BaseError)
			c.AbortWithStatusJSON(be.Code.HTTPStatus(), be)
			return
		}

		if scope != "" && !hasScope(scopes, scope) {
			be := errutil.Forbidden("insufficient scope", nil).(errutil.BaseError)
			c.AbortWithStatusJSON(be.Code.HTTPStatus(), be)
			return
		}

		c.Next()
	}
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want || s == "*" {
			return true
		}
	}
	return false
}
