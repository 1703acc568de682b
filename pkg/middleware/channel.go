package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

type channelKey struct{}

var ChannelContextKey = channelKey{}

// Channel copies the sales channel from the X-Sales-Channel header into
// the request context so services can branch on it without touching gin.
func Channel() gin.HandlerFunc {
	return func(c *gin.Context) {
		ch := c.GetHeader("X-Sales-Channel")
		if ch == "" {
			ch = "website_payment"
		}

		ctx := context.WithValue(c.Request.Context(), ChannelContextKey, ch)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func GetChannel(ctx context.Context) string {
	ch, ok := ctx.Value(ChannelContextKey).(string)
	if !ok {
		return "website_payment"
	}
	return ch
}
