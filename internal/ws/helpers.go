package ws

import (
	"github.com/google/uuid"

	"partner-chat/internal/observability"
)

const wsRoutingKey = "ws_events.chats"

func newConnID() string {
	return uuid.NewString()
}

// connEvent builds the broker envelope for a connection lifecycle event.
func connEvent(chatID int, info ConnInfo, event, reason string) observability.EventEnvelope {
	return observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		ChatID:    chatID,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "chat",
				"resource_id": chatID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": info.Age().Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}
}
