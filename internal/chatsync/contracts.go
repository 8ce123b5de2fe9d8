package chatsync

import (
	"context"

	"partner-chat/internal/models"
)

// DefaultPageSize is the number of messages requested per page.
const DefaultPageSize = 20

// Backend is the chat REST service as consumed by the engine.
type Backend interface {
	ListMessages(ctx context.Context, chatID int, page models.Page) ([]models.Message, error)
	MarkRead(ctx context.Context, chatID int) error
	SendMessage(ctx context.Context, chatID int, draft models.Draft) (models.Message, error)
	EditMessage(ctx context.Context, messageID int, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID int) error
	ListChats(ctx context.Context) ([]models.Chat, error)
}

// ScrollMetrics mirrors a scroll container's geometry.
type ScrollMetrics struct {
	ScrollTop    int
	ScrollHeight int
	ClientHeight int
}

// Viewport is the scrolling surface that displays the active chat. It only
// receives effects; the engine never reads it back into its state.
type Viewport interface {
	// Render lays out messages. Once it returns, ScrollMetrics reflects the
	// new content.
	Render(messages []models.Message)
	ScrollMetrics() ScrollMetrics
	SetScrollTop(value int)
	ScrollToBottom(smooth bool)
	IsAtBottom(tolerance int) bool
}
