package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"partner-chat/internal/middleware"
	"partner-chat/internal/observability"
	"partner-chat/internal/telemetry"
)

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(middleware.RequestIDKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := observability.RequestIDFromRequest(c.Request)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func (h *ChatHandler) audit(c *gin.Context, action string, chatID, messageID int) {
	h.auditor.Record(c.Request.Context(), telemetry.AuditRecord{
		Action:    action,
		ActorID:   c.GetInt(middleware.UserIDKey),
		ChatID:    chatID,
		MessageID: messageID,
		RequestID: requestIDFromContext(c),
	})
}
