package chatsync

import (
	"context"
	"sync"
	"time"

	"partner-chat/internal/models"
)

func text(s string) *string { return &s }

func msg(id, ts, sender int) models.Message {
	return models.Message{
		ID:        id,
		ChatID:    1,
		SenderID:  sender,
		Content:   text("m"),
		CreatedAt: time.Unix(int64(ts), 0),
	}
}

func msgs(from, to, sender int) []models.Message {
	var out []models.Message
	for i := from; i <= to; i++ {
		out = append(out, msg(i, i, sender))
	}
	return out
}

func ids(list []models.Message) []int {
	out := make([]int, 0, len(list))
	for _, m := range list {
		out = append(out, m.ID)
	}
	return out
}

type listCall struct {
	ChatID int
	Page   models.Page
}

// fakeBackend answers ListMessages from a handler and records every call.
type fakeBackend struct {
	mu        sync.Mutex
	list      func(ctx context.Context, chatID int, page models.Page) ([]models.Message, error)
	calls     []listCall
	markReads []int
	sent      []models.Draft
	nextID    int
	chats     []models.Chat
	deleteErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{nextID: 1000}
}

func (b *fakeBackend) ListMessages(ctx context.Context, chatID int, page models.Page) ([]models.Message, error) {
	b.mu.Lock()
	b.calls = append(b.calls, listCall{ChatID: chatID, Page: page})
	handler := b.list
	b.mu.Unlock()
	if handler == nil {
		return nil, nil
	}
	return handler(ctx, chatID, page)
}

func (b *fakeBackend) MarkRead(ctx context.Context, chatID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markReads = append(b.markReads, chatID)
	return nil
}

func (b *fakeBackend) SendMessage(ctx context.Context, chatID int, draft models.Draft) (models.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, draft)
	b.nextID++
	return models.Message{
		ID:         b.nextID,
		ChatID:     chatID,
		SenderID:   7,
		Content:    draft.Content,
		Attachment: draft.Attachment,
		ParentID:   draft.ParentID,
		CreatedAt:  time.Unix(int64(b.nextID), 0),
	}, nil
}

func (b *fakeBackend) EditMessage(ctx context.Context, messageID int, content string) (models.Message, error) {
	edited := msg(messageID, messageID, 7)
	edited.Content = &content
	now := time.Unix(5000, 0)
	edited.EditedAt = &now
	return edited, nil
}

func (b *fakeBackend) DeleteMessage(ctx context.Context, messageID int) error {
	return b.deleteErr
}

func (b *fakeBackend) ListChats(ctx context.Context) ([]models.Chat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Chat(nil), b.chats...), nil
}

func (b *fakeBackend) setList(fn func(ctx context.Context, chatID int, page models.Page) ([]models.Message, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.list = fn
}

func (b *fakeBackend) listCalls() []listCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]listCall(nil), b.calls...)
}

func (b *fakeBackend) markReadCalls() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.markReads...)
}

// fakeViewport lays every message out at a fixed height.
type fakeViewport struct {
	mu           sync.Mutex
	lineHeight   int
	atBottom     bool
	scrollTop    int
	scrollHeight int
	rendered     []models.Message
	bottomCalls  []bool
	setTopCalls  []int
}

func newFakeViewport() *fakeViewport {
	return &fakeViewport{lineHeight: 10, atBottom: true}
}

func (v *fakeViewport) Render(messages []models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rendered = messages
	v.scrollHeight = len(messages) * v.lineHeight
}

func (v *fakeViewport) ScrollMetrics() ScrollMetrics {
	v.mu.Lock()
	defer v.mu.Unlock()
	return ScrollMetrics{ScrollTop: v.scrollTop, ScrollHeight: v.scrollHeight, ClientHeight: 100}
}

func (v *fakeViewport) SetScrollTop(value int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setTopCalls = append(v.setTopCalls, value)
	v.scrollTop = value
}

func (v *fakeViewport) ScrollToBottom(smooth bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bottomCalls = append(v.bottomCalls, smooth)
}

func (v *fakeViewport) IsAtBottom(tolerance int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.atBottom
}

func (v *fakeViewport) setAtBottom(atBottom bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.atBottom = atBottom
}

func (v *fakeViewport) scrollCalls() []bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]bool(nil), v.bottomCalls...)
}
