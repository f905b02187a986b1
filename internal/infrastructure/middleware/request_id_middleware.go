package middleware

import (
	"webrtc-gateway/pkg/utils"

	"github.com/gin-gonic/gin"
)

const requestIDContextKey = "request_id"
const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware stamps every request with a correlatable ID, echoed
// back in the response header and available to handlers/logging via
// RequestIDFromContext.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = utils.GenerateRequestID()
		}
		c.Set(requestIDContextKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestIDFromContext extracts the request ID stamped by RequestIDMiddleware,
// or "" if the middleware was not installed.
func RequestIDFromContext(c *gin.Context) string {
	if v, ok := c.Get(requestIDContextKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
