package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"partner-chat/internal/models"
)

// Subscribe streams chatID's pushed events to fn until ctx is cancelled or the
// connection drops. It returns nil after a cancellation.
func (c *Client) Subscribe(ctx context.Context, chatID int, fn func(models.ChatEvent)) error {
	target := c.baseURL
	switch {
	case strings.HasPrefix(target, "https://"):
		target = "wss://" + strings.TrimPrefix(target, "https://")
	case strings.HasPrefix(target, "http://"):
		target = "ws://" + strings.TrimPrefix(target, "http://")
	}
	target += fmt.Sprintf("/ws/chats/%d", chatID)

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return &APIError{Status: resp.StatusCode, Message: "websocket handshake failed"}
		}
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	})
	defer stop()

	for {
		var ev models.ChatEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read chat %d events: %w", chatID, err)
		}
		if ev.ChatID == 0 {
			ev.ChatID = chatID
		}
		c.log.Debug().Int("chat_id", chatID).Str("type", ev.Type).Msg("chat event")
		fn(ev)
	}
}
