package middleware

import (
	"crypto/subtle"

	"storefront-bot/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const APIKeyHeader = "X-API-KEY"

// APIKey rejects requests whose X-API-KEY does not match key. An empty key
// leaves the routes open.
func APIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			_ = c.Error(errutil.Unauthorized("invalid api key", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}
