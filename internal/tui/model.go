package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"partner-chat/internal/chatsync"
	"partner-chat/internal/models"
)

const listWidth = 24

var (
	paneStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8"))
	focusedStyle  = paneStyle.BorderForeground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	unreadStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	headerStyle   = lipgloss.NewStyle().Bold(true)
)

type focusArea int

const (
	focusList focusArea = iota
	focusInput
)

// Options configures a Model.
type Options struct {
	Backend         chatsync.Backend
	LocalUserID     int
	PageSize        int
	PollInterval    time.Duration
	BottomTolerance int
	Logger          zerolog.Logger
}

type chatsLoadedMsg struct{ err error }

type chatOpenedMsg struct {
	chatID int
	err    error
}

type olderLoadedMsg struct{ err error }

type sentMsg struct{ err error }

type tickMsg struct {
	chatID int
	err    error
}

// Model is the two pane chat client: chats on the left, the active
// conversation and the composer on the right.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger

	localUserID int
	chats       *chatsync.ChatList
	engine      *chatsync.Engine
	poller      *chatsync.Poller
	handle      *chatsync.PollHandle
	ticks       chan tickMsg

	viewport *ChatViewport
	input    textarea.Model

	focus    focusArea
	selected int
	active   int
	notice   string
	width    int
	height   int
}

// New wires the sync engine, chat list and poller around a fresh viewport.
func New(opts Options) *Model {
	ctx, cancel := context.WithCancel(context.Background())
	vp := NewChatViewport(0, 0, opts.LocalUserID)
	chats := chatsync.NewChatList(opts.Backend)
	engine := chatsync.NewEngine(opts.Backend, vp, chatsync.Options{
		PageSize:        opts.PageSize,
		BottomTolerance: opts.BottomTolerance,
		LocalUserID:     opts.LocalUserID,
		Chats:           chats,
		Logger:          opts.Logger,
	})

	interval := opts.PollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	m := &Model{
		ctx:         ctx,
		cancel:      cancel,
		log:         opts.Logger,
		localUserID: opts.LocalUserID,
		chats:       chats,
		engine:      engine,
		poller:      chatsync.NewPoller(engine, chats, interval, opts.Logger),
		ticks:       make(chan tickMsg, 8),
		viewport:    vp,
	}
	m.poller.OnTick = func(chatID int, err error) {
		select {
		case m.ticks <- tickMsg{chatID: chatID, err: err}:
		default:
		}
	}

	ta := textarea.New()
	ta.Placeholder = "Write a message..."
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.Prompt = ""
	ta.KeyMap.InsertNewline.SetEnabled(false)
	m.input = ta
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refreshChats(), m.listenTicks())
}

// Close stops polling. The model is unusable afterwards.
func (m *Model) Close() {
	m.handle.Stop()
	m.cancel()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m, m.viewport.Update(msg)

	case chatsLoadedMsg:
		m.setNotice(msg.err)
		return m, nil

	case chatOpenedMsg:
		if msg.chatID != m.active {
			return m, nil
		}
		if msg.err != nil {
			m.setNotice(msg.err)
			return m, nil
		}
		m.notice = ""
		m.handle.Stop()
		m.handle = m.poller.Start(m.ctx, msg.chatID)
		return m, nil

	case olderLoadedMsg:
		m.setNotice(msg.err)
		return m, nil

	case sentMsg:
		m.setNotice(msg.err)
		return m, nil

	case tickMsg:
		if msg.chatID == m.active {
			m.setNotice(msg.err)
		}
		return m, m.listenTicks()
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.Close()
		return m, tea.Quit
	case tea.KeyTab:
		if m.focus == focusList {
			m.setFocus(focusInput)
		} else {
			m.setFocus(focusList)
		}
		return m, nil
	case tea.KeyPgUp:
		cmd := m.viewport.Update(msg)
		if m.viewport.AtTop() {
			return m, tea.Batch(cmd, m.loadOlder())
		}
		return m, cmd
	case tea.KeyPgDown:
		return m, m.viewport.Update(msg)
	}

	if m.focus == focusInput {
		switch msg.Type {
		case tea.KeyEsc:
			m.setFocus(focusList)
			return m, nil
		case tea.KeyEnter:
			return m, m.send()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "esc":
		m.Close()
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case "down", "j":
		if m.selected < len(m.chats.Chats())-1 {
			m.selected++
		}
		return m, nil
	case "r":
		return m, m.refreshChats()
	case "enter":
		chats := m.chats.Chats()
		if m.selected < len(chats) {
			return m, m.openChat(chats[m.selected].ID)
		}
		return m, nil
	case "i":
		m.setFocus(focusInput)
		return m, nil
	}
	return m, nil
}

func (m *Model) setFocus(f focusArea) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
		m.poller.SetComposing(true)
		return
	}
	m.input.Blur()
	m.poller.SetComposing(false)
}

func (m *Model) setNotice(err error) {
	switch {
	case err == nil:
		m.notice = ""
	case errors.Is(err, context.Canceled), errors.Is(err, chatsync.ErrNoActiveChat):
	default:
		m.notice = err.Error()
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	right := width - listWidth - 4
	if right < 10 {
		right = 10
	}
	m.input.SetWidth(right)
	// header, notice, borders and composer
	vpHeight := height - m.input.Height() - 6
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.SetSize(right, vpHeight)
}

func (m *Model) refreshChats() tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return chatsLoadedMsg{err: m.chats.Refresh(ctx)}
	}
}

func (m *Model) listenTicks() tea.Cmd {
	ticks, done := m.ticks, m.ctx.Done()
	return func() tea.Msg {
		select {
		case t := <-ticks:
			return t
		case <-done:
			return nil
		}
	}
}

// openChat switches the conversation pane. The previous chat's poller is
// stopped before the new chat loads.
func (m *Model) openChat(chatID int) tea.Cmd {
	m.handle.Stop()
	m.handle = nil
	m.active = chatID
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		return chatOpenedMsg{chatID: chatID, err: engine.LoadInitial(ctx, chatID)}
	}
}

func (m *Model) loadOlder() tea.Cmd {
	if m.active == 0 {
		return nil
	}
	ctx, engine, chatID := m.ctx, m.engine, m.active
	return func() tea.Msg {
		return olderLoadedMsg{err: engine.LoadOlder(ctx, chatID)}
	}
}

func (m *Model) send() tea.Cmd {
	content := strings.TrimSpace(m.input.Value())
	if content == "" || m.active == 0 {
		return nil
	}
	m.input.Reset()
	ctx, engine, chatID := m.ctx, m.engine, m.active
	return func() tea.Msg {
		_, err := engine.Send(ctx, chatID, models.Draft{Content: &content})
		return sentMsg{err: err}
	}
}

func (m *Model) View() string {
	list := m.renderList()
	listPane := paneStyle
	if m.focus == focusList {
		listPane = focusedStyle
	}
	left := listPane.Width(listWidth).Height(max(m.height-2, 1)).Render(list)

	header := headerStyle.Render("no chat open")
	if m.active != 0 {
		header = headerStyle.Render(fmt.Sprintf("chat #%d", m.active))
	}
	inputPane := paneStyle
	if m.focus == focusInput {
		inputPane = focusedStyle
	}
	right := lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		inputPane.Render(m.input.View()),
		noticeStyle.Render(m.notice),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m *Model) renderList() string {
	chats := m.chats.Chats()
	if len(chats) == 0 {
		return "no chats"
	}
	var b strings.Builder
	for i, c := range chats {
		label := fmt.Sprintf("#%d user %d", c.ID, c.PeerOf(m.localUserID))
		if n := c.UnreadCount; n > 0 {
			label += " " + unreadStyle.Render(fmt.Sprintf("(%d)", n))
		}
		if i == m.selected {
			label = selectedStyle.Render("> ") + label
		} else {
			label = "  " + label
		}
		b.WriteString(label)
		b.WriteByte('\n')
	}
	return b.String()
}
