package ws

import (
	"time"

	"github.com/rs/zerolog"
)

// ConnInfo identifies one websocket subscriber of a chat.
type ConnInfo struct {
	ConnID      string
	ChatID      int
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Age is how long the connection has been open.
func (i ConnInfo) Age() time.Duration {
	return time.Since(i.ConnectedAt)
}

func (i ConnInfo) MarshalZerologObject(e *zerolog.Event) {
	e.Str("conn_id", i.ConnID).
		Int("chat_id", i.ChatID).
		Int("user_id", i.UserID).
		Str("ip", i.IP)
	if i.DeviceID != "" {
		e.Str("device_id", i.DeviceID)
	}
}
