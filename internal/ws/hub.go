package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"partner-chat/internal/models"
	"partner-chat/internal/observability"
)

const writeWait = 10 * time.Second

// Publisher receives connection lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

type client struct {
	conn    *websocket.Conn
	info    ConnInfo
	writeMu sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains active websocket chat rooms.
type Hub struct {
	chatRooms map[int]map[*websocket.Conn]*client
	mu        sync.RWMutex
	publisher Publisher
	log       zerolog.Logger
}

// NewHub creates an empty hub. publisher may be nil.
func NewHub(publisher Publisher, logger zerolog.Logger) *Hub {
	return &Hub{
		chatRooms: make(map[int]map[*websocket.Conn]*client),
		publisher: publisher,
		log:       logger.With().Str("component", "ws_hub").Logger(),
	}
}

// AddChatClient registers a websocket connection to a chat room.
func (h *Hub) AddChatClient(chatID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.chatRooms[chatID]; !ok {
		h.chatRooms[chatID] = make(map[*websocket.Conn]*client)
	}
	h.chatRooms[chatID][conn] = &client{conn: conn, info: info}
}

// RemoveChatClient removes a chat websocket connection.
func (h *Hub) RemoveChatClient(chatID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.chatRooms[chatID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.chatRooms, chatID)
		}
	}
}

// ClientCount returns the number of connections in a chat room.
func (h *Hub) ClientCount(chatID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.chatRooms[chatID])
}

// RoomStats returns the connection count of every non-empty room.
func (h *Hub) RoomStats() map[int]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[int]int, len(h.chatRooms))
	for chatID, room := range h.chatRooms {
		out[chatID] = len(room)
	}
	return out
}

// BroadcastChatEvent sends ev to all clients in ev.ChatID. Clients that fail
// the write are dropped.
func (h *Hub) BroadcastChatEvent(ev models.ChatEvent) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.chatRooms[ev.ChatID]))
	for _, c := range h.chatRooms[ev.ChatID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal chat event")
		return
	}
	for _, c := range clients {
		if err := c.write(payload); err != nil {
			h.log.Warn().Err(err).EmbedObject(c.info).Msg("websocket write error")
			h.publishWSEvent(context.Background(), ev.ChatID, c.info, "ws_error", err.Error())
			h.RemoveChatClient(ev.ChatID, c.conn)
			c.conn.Close()
			continue
		}
		observability.IncWSEvent("chat", ev.Type)
	}
}

func (h *Hub) publishWSEvent(ctx context.Context, chatID int, info ConnInfo, event, reason string) {
	observability.IncWSEvent("chat", event)
	if h.publisher == nil {
		return
	}
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	if err := h.publisher.Publish(ctx, wsRoutingKey, connEvent(chatID, info, event, reason), headers); err != nil {
		h.log.Debug().Err(err).Str("event", event).Msg("ws event publish failed")
	}
}
