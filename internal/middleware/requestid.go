package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID tags every request with a correlation id and echoes it on the
// response. A caller-supplied id is honored only when it is a well-formed
// UUID; anything else is replaced rather than propagated into logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := incomingRequestID(c)
		if rid == "" {
			rid = uuid.NewString()
		}

		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

func incomingRequestID(c *gin.Context) string {
	rid := c.GetHeader(requestIDHeader)
	if rid == "" {
		return ""
	}
	if _, err := uuid.Parse(rid); err != nil {
		return ""
	}
	return rid
}

// requestIDFrom reads the id set by RequestID; middlewares downstream use
// it to correlate their log lines.
func requestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
