package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"partner-chat/internal/middleware"
	"partner-chat/internal/models"
	"partner-chat/internal/observability"
	"partner-chat/internal/repositories"
	"partner-chat/internal/telemetry"
)

const defaultPageLimit = 20

// Broadcaster pushes chat events to connected websocket clients.
type Broadcaster interface {
	BroadcastChatEvent(ev models.ChatEvent)
}

// EventPublisher forwards chat events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// ChatHandler manages direct chat endpoints.
type ChatHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	hub         Broadcaster
	publisher   EventPublisher
	auditor     *telemetry.AuditLog
	log         zerolog.Logger
}

// NewChatHandler builds a ChatHandler. hub, publisher and auditor may be nil.
func NewChatHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository, hub Broadcaster, publisher EventPublisher, auditor *telemetry.AuditLog, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		hub:         hub,
		publisher:   publisher,
		auditor:     auditor,
		log:         logger.With().Str("component", "chat_handler").Logger(),
	}
}

// ListChats returns the chats of the authenticated user with unread counts.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt(middleware.UserIDKey)

	chats, err := h.chatRepo.ListChats(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int("user_id", userID).Msg("list chats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// StartChat creates or returns the direct chat between the caller and a friend.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		FriendID int `json:"friend_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt(middleware.UserIDKey)
	if userID == req.FriendID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
		return
	}

	chat, err := h.chatRepo.CreateOrGetChat(c.Request.Context(), userID, req.FriendID)
	if err != nil {
		h.log.Error().Err(err).Int("user_id", userID).Int("friend_id", req.FriendID).Msg("create chat")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	h.audit(c, telemetry.ActionChatStarted, chat.ID, 0)
	c.JSON(http.StatusOK, gin.H{"chat_id": chat.ID, "chat": chat})
}

// ListMessages returns one ascending page of a chat's messages.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	chatID, ok := h.memberChatID(c)
	if !ok {
		return
	}

	page, err := parsePage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), chatID, page)
	if err != nil {
		h.log.Error().Err(err).Int("chat_id", chatID).Msg("list messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage stores a message and broadcasts it.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	chatID, ok := h.memberChatID(c)
	if !ok {
		return
	}

	var draft models.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if draft.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content or attachment required"})
		return
	}
	if draft.ParentID != nil {
		parent, err := h.messageRepo.GetMessage(c.Request.Context(), *draft.ParentID)
		if err != nil || parent.ChatID != chatID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "parent message not in chat"})
			return
		}
	}

	userID := c.GetInt(middleware.UserIDKey)
	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), chatID, userID, draft)
	if err != nil {
		h.log.Error().Err(err).Int("chat_id", chatID).Msg("store message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.emit(c, "message.created", models.ChatEvent{Type: models.EventMessage, ChatID: chatID, Message: &msg, MessageID: msg.ID})
	c.JSON(http.StatusCreated, msg)
}

// EditMessage replaces the content of the caller's own message.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	msg, ok := h.ownMessage(c)
	if !ok {
		return
	}
	if msg.Deleted {
		c.JSON(http.StatusConflict, gin.H{"error": "message is deleted"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	edited, err := h.messageRepo.EditMessage(c.Request.Context(), msg.ID, msg.SenderID, req.Content)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not edit message"})
		return
	}

	h.emit(c, "message.edited", models.ChatEvent{Type: models.EventEdit, ChatID: edited.ChatID, Message: &edited, MessageID: edited.ID})
	h.audit(c, telemetry.ActionMessageEdited, edited.ChatID, edited.ID)
	c.JSON(http.StatusOK, edited)
}

// DeleteMessage tombstones the caller's own message for everyone.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	msg, ok := h.ownMessage(c)
	if !ok {
		return
	}
	if msg.Deleted {
		c.JSON(http.StatusConflict, gin.H{"error": "message is already deleted"})
		return
	}

	tombstone, err := h.messageRepo.DeleteMessage(c.Request.Context(), msg.ID, msg.SenderID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not delete message"})
		return
	}

	h.emit(c, "message.deleted", models.ChatEvent{Type: models.EventDelete, ChatID: tombstone.ChatID, Message: &tombstone, MessageID: tombstone.ID})
	h.audit(c, telemetry.ActionMessageDeleted, tombstone.ChatID, tombstone.ID)
	c.Status(http.StatusNoContent)
}

// MarkRead moves the caller's read marker to the newest message.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := c.GetInt(middleware.UserIDKey)
	if err := h.chatRepo.MarkRead(c.Request.Context(), chatID, userID); err != nil {
		if errors.Is(err, repositories.ErrNotParticipant) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
			return
		}
		h.log.Error().Err(err).Int("chat_id", chatID).Msg("mark read")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) memberChatID(c *gin.Context) (int, bool) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return 0, false
	}

	userID := c.GetInt(middleware.UserIDKey)
	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return 0, false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return 0, false
	}
	return chatID, true
}

func (h *ChatHandler) ownMessage(c *gin.Context) (models.Message, bool) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return models.Message{}, false
	}

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return models.Message{}, false
	}
	if msg.SenderID != c.GetInt(middleware.UserIDKey) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only sender can modify message"})
		return models.Message{}, false
	}
	return msg, true
}

// emit pushes ev to websocket clients and the broker. Broker failures are
// logged, never returned.
func (h *ChatHandler) emit(c *gin.Context, routingKey string, ev models.ChatEvent) {
	observability.IncMessageEvent(ev.Type)
	if h.hub != nil {
		h.hub.BroadcastChatEvent(ev)
	}
	if h.publisher == nil {
		return
	}
	ctx := c.Request.Context()
	envelope := observability.EventEnvelope{
		EventType: routingKey,
		EventName: ev.Type,
		ChatID:    ev.ChatID,
		Payload:   ev,
	}
	headers := observability.BuildHeaders(requestIDFromContext(c), observability.TraceIDFromContext(ctx))
	if err := h.publisher.Publish(ctx, routingKey, envelope, headers); err != nil {
		h.log.Warn().Err(err).Str("routing_key", routingKey).Msg("publish chat event")
	}
}

func parsePage(c *gin.Context) (models.Page, error) {
	page := models.Page{Limit: defaultPageLimit}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return models.Page{}, errors.New("invalid limit")
		}
		if limit > models.MaxPageLimit {
			limit = models.MaxPageLimit
		}
		page.Limit = limit
	}

	cursor := func(name string) (*int, error) {
		raw := c.Query(name)
		if raw == "" {
			return nil, nil
		}
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid %s", name)
		}
		return &id, nil
	}
	var err error
	if page.BeforeID, err = cursor("before_id"); err != nil {
		return models.Page{}, err
	}
	if page.AfterID, err = cursor("after_id"); err != nil {
		return models.Page{}, err
	}
	if page.BeforeID != nil && page.AfterID != nil {
		return models.Page{}, errors.New("before_id and after_id are mutually exclusive")
	}
	return page, nil
}
