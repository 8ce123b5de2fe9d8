package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partner-chat/internal/chatsync"
	"partner-chat/internal/models"
)

func TestChatViewportMetrics(t *testing.T) {
	vp := NewChatViewport(40, 5, 7)
	vp.Render(messageRange(1, 20))

	assert.Equal(t, chatsync.ScrollMetrics{ScrollTop: 0, ScrollHeight: 20, ClientHeight: 5}, vp.ScrollMetrics())
	assert.True(t, vp.AtTop())
	assert.False(t, vp.IsAtBottom(2))

	vp.SetScrollTop(13)
	assert.True(t, vp.IsAtBottom(2))
	assert.False(t, vp.IsAtBottom(1))

	vp.ScrollToBottom(true)
	assert.Equal(t, 15, vp.ScrollMetrics().ScrollTop)
	assert.True(t, vp.IsAtBottom(0))
}

func TestChatViewportFormatsMessages(t *testing.T) {
	vp := NewChatViewport(80, 10, 7)

	own := message(1, 7, "mine")
	edited := message(2, 2, "fixed")
	at := time.Unix(9999, 0)
	edited.EditedAt = &at
	deleted := message(3, 2, "gone").Tombstone()
	file := "/files/a.png"
	withFile := models.Message{ID: 4, SenderID: 2, Attachment: &file, CreatedAt: time.Unix(240, 0)}
	parent := 1
	reply := message(5, 2, "answer")
	reply.ParentID = &parent

	vp.Render([]models.Message{own, edited, deleted, withFile, reply})
	lines := strings.Split(vp.View(), "\n")
	require.GreaterOrEqual(t, len(lines), 5)

	assert.Contains(t, lines[0], "you:")
	assert.Contains(t, lines[0], "mine")
	assert.Contains(t, lines[1], "them:")
	assert.Contains(t, lines[1], "(edited)")
	assert.Contains(t, lines[2], "message deleted")
	assert.NotContains(t, lines[2], "gone")
	assert.Contains(t, lines[3], "[file /files/a.png]")
	assert.Contains(t, lines[4], "re #1")
}

func TestOlderPageKeepsFirstVisibleMessage(t *testing.T) {
	backend := &stubBackend{pages: func(page models.Page) []models.Message {
		if page.BeforeID != nil {
			return messageRange(1, 20)
		}
		return messageRange(21, 40)
	}}
	vp := NewChatViewport(80, 5, 7)
	engine := chatsync.NewEngine(backend, vp, chatsync.Options{PageSize: 20, LocalUserID: 7, Logger: zerolog.Nop()})

	ctx := context.Background()
	require.NoError(t, engine.LoadInitial(ctx, 1))
	assert.True(t, vp.IsAtBottom(0))

	vp.SetScrollTop(0)
	require.NoError(t, engine.LoadOlder(ctx, 1))

	assert.Equal(t, 40, vp.ScrollMetrics().ScrollHeight)
	assert.Equal(t, 20, vp.ScrollMetrics().ScrollTop)
	assert.Equal(t, 1, engine.Snapshot().Messages[0].ID)
}
