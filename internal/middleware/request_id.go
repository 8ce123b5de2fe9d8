package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"partner-chat/internal/observability"
)

const RequestIDKey = "request_id"

// RequestID stores the incoming X-Request-Id, or a fresh uuid, in the
// context and echoes it back.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := observability.RequestIDFromRequest(c.Request)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}
