package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SizeLimitMiddleware caps the signaling surface's request bodies; offer
// SDPs and candidates are small, so anything beyond maxBytes is almost
// certainly malformed or abusive input, not a legitimate payload.
func SizeLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
