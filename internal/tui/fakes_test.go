package tui

import (
	"context"
	"sync"
	"time"

	"partner-chat/internal/models"
)

func message(id, sender int, content string) models.Message {
	return models.Message{
		ID:        id,
		ChatID:    1,
		SenderID:  sender,
		Content:   &content,
		CreatedAt: time.Unix(int64(id)*60, 0),
	}
}

func messageRange(from, to int) []models.Message {
	var out []models.Message
	for i := from; i <= to; i++ {
		out = append(out, message(i, 2, "hello"))
	}
	return out
}

type stubBackend struct {
	mu    sync.Mutex
	pages func(page models.Page) []models.Message
	chats []models.Chat
	sent  []string
}

func (b *stubBackend) ListMessages(ctx context.Context, chatID int, page models.Page) ([]models.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pages == nil {
		return nil, nil
	}
	return b.pages(page), nil
}

func (b *stubBackend) MarkRead(ctx context.Context, chatID int) error { return nil }

func (b *stubBackend) SendMessage(ctx context.Context, chatID int, draft models.Draft) (models.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, *draft.Content)
	return message(500+len(b.sent), 7, *draft.Content), nil
}

func (b *stubBackend) EditMessage(ctx context.Context, messageID int, content string) (models.Message, error) {
	return message(messageID, 7, content), nil
}

func (b *stubBackend) DeleteMessage(ctx context.Context, messageID int) error { return nil }

func (b *stubBackend) ListChats(ctx context.Context) ([]models.Chat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chats, nil
}

func (b *stubBackend) sentContents() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.sent...)
}
