package chatsync

import (
	"context"
	"sync"

	"partner-chat/internal/models"
)

// ChatLister is the part of Backend the chat list needs.
type ChatLister interface {
	ListChats(ctx context.Context) ([]models.Chat, error)
}

// ChatList caches the user's chats with their unread counts. Marking a chat
// read zeroes its count locally right away; the next Refresh replaces every
// count with the server's value.
type ChatList struct {
	lister ChatLister

	mu        sync.RWMutex
	chats     []models.Chat
	localRead map[int]struct{}
}

// NewChatList builds an empty ChatList.
func NewChatList(lister ChatLister) *ChatList {
	return &ChatList{lister: lister, localRead: map[int]struct{}{}}
}

// Refresh reloads the chats from the server. On error the cached list is kept.
func (l *ChatList) Refresh(ctx context.Context) error {
	chats, err := l.lister.ListChats(ctx)
	if err != nil {
		return &NetworkError{Op: "list chats", Err: err}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chats = chats
	l.localRead = map[int]struct{}{}
	return nil
}

// MarkReadLocal zeroes chatID's unread count until the next Refresh.
func (l *ChatList) MarkReadLocal(chatID int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.localRead[chatID] = struct{}{}
}

// Unread returns chatID's effective unread count.
func (l *ChatList) Unread(chatID int) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.localRead[chatID]; ok {
		return 0
	}
	for _, c := range l.chats {
		if c.ID == chatID {
			return c.UnreadCount
		}
	}
	return 0
}

// Chats returns a copy of the list with local read overrides applied.
func (l *ChatList) Chats() []models.Chat {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Chat, len(l.chats))
	copy(out, l.chats)
	for i := range out {
		if _, ok := l.localRead[out[i].ID]; ok {
			out[i].UnreadCount = 0
		}
	}
	return out
}

// TotalUnread sums the effective unread counts.
func (l *ChatList) TotalUnread() int {
	total := 0
	for _, c := range l.Chats() {
		total += c.UnreadCount
	}
	return total
}
