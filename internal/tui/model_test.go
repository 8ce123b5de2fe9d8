package tui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partner-chat/internal/models"
)

func newTestModel(t *testing.T, backend *stubBackend) *Model {
	t.Helper()
	m := New(Options{
		Backend:      backend,
		LocalUserID:  7,
		PageSize:     20,
		PollInterval: time.Hour,
		Logger:       zerolog.Nop(),
	})
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	m.Update(cmd())
}

func TestOpenChatLoadsMessagesAndStartsPolling(t *testing.T) {
	backend := &stubBackend{
		chats: []models.Chat{
			{ID: 1, Participants: []int{2, 7}, UnreadCount: 3},
			{ID: 4, Participants: []int{7, 9}},
		},
		pages: func(page models.Page) []models.Message { return messageRange(1, 5) },
	}
	m := newTestModel(t, backend)
	run(t, m, m.refreshChats())
	assert.Contains(t, m.View(), "#1 user 2")
	assert.Contains(t, m.View(), "(3)")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, m, cmd)

	require.NotNil(t, m.handle)
	assert.Equal(t, 1, m.handle.ChatID())
	assert.Len(t, m.engine.Snapshot().Messages, 5)
	assert.Contains(t, m.View(), "chat #1")
	assert.Equal(t, 0, m.chats.Unread(1))
}

func TestSwitchingChatsStopsPreviousPoller(t *testing.T) {
	backend := &stubBackend{chats: []models.Chat{{ID: 1}, {ID: 4}}}
	m := newTestModel(t, backend)
	run(t, m, m.refreshChats())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, m, cmd)
	first := m.handle

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, m.handle)
	run(t, m, cmd)

	require.NotNil(t, m.handle)
	assert.NotSame(t, first, m.handle)
	assert.Equal(t, 4, m.handle.ChatID())
}

func TestFocusingComposerPausesPolling(t *testing.T) {
	m := newTestModel(t, &stubBackend{})

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.True(t, m.poller.Composing())

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.poller.Composing())
}

func TestEnterSendsDraft(t *testing.T) {
	backend := &stubBackend{chats: []models.Chat{{ID: 1}}}
	m := newTestModel(t, backend)
	run(t, m, m.refreshChats())
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, m, cmd)

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi there")})
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, m, cmd)

	assert.Equal(t, []string{"hi there"}, backend.sentContents())
	assert.Empty(t, m.input.Value())
	msgs := m.engine.Snapshot().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, 7, msgs[0].SenderID)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestTickErrorsShowAsNotice(t *testing.T) {
	m := newTestModel(t, &stubBackend{chats: []models.Chat{{ID: 1}}})
	run(t, m, m.refreshChats())
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, m, cmd)

	_, next := m.Update(tickMsg{chatID: 1, err: errors.New("connection refused")})
	assert.NotNil(t, next)
	assert.Contains(t, m.View(), "connection refused")

	m.Update(tickMsg{chatID: 9, err: nil})
	assert.Contains(t, m.View(), "connection refused")

	m.Update(tickMsg{chatID: 1, err: nil})
	assert.NotContains(t, m.View(), "connection refused")
}
