package middleware

import (
	"errors"
	"net/http"

	"licensecore/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// Error translates errors attached to the gin context into the wire
// format. Register it before the routes so c.Next() runs the handler
// chain first.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		if errors.As(last.Err, &be) {
			c.JSON(be.Code.HTTPStatus(), be.JSON())
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    errutil.StatusInternal,
				"message": "internal error",
			},
		})
	}
}
