package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"partner-chat/internal/chatsync"
	"partner-chat/internal/models"
)

var (
	ownStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	peerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	deletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	metaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// ChatViewport adapts a bubbles viewport to the sync engine. Every message
// takes exactly one line, so scroll units are lines.
type ChatViewport struct {
	mu          sync.Mutex
	vp          viewport.Model
	localUserID int
}

// NewChatViewport builds an empty viewport.
func NewChatViewport(width, height, localUserID int) *ChatViewport {
	return &ChatViewport{vp: viewport.New(width, height), localUserID: localUserID}
}

func (v *ChatViewport) Render(messages []models.Message) {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, v.formatLine(m))
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vp.SetContent(strings.Join(lines, "\n"))
}

func (v *ChatViewport) formatLine(m models.Message) string {
	who, style := "them", peerStyle
	if m.SenderID == v.localUserID {
		who, style = "you", ownStyle
	}
	prefix := metaStyle.Render(m.CreatedAt.Local().Format("15:04")) + " " + style.Render(who+":")
	if m.Deleted {
		return prefix + " " + deletedStyle.Render("message deleted")
	}

	var parts []string
	if m.ParentID != nil {
		parts = append(parts, metaStyle.Render(fmt.Sprintf("re #%d", *m.ParentID)))
	}
	if text := m.Text(); text != "" {
		parts = append(parts, strings.ReplaceAll(text, "\n", " "))
	}
	if m.Attachment != nil {
		parts = append(parts, metaStyle.Render("[file "+*m.Attachment+"]"))
	}
	if m.EditedAt != nil {
		parts = append(parts, metaStyle.Render("(edited)"))
	}
	return prefix + " " + strings.Join(parts, " ")
}

func (v *ChatViewport) ScrollMetrics() chatsync.ScrollMetrics {
	v.mu.Lock()
	defer v.mu.Unlock()
	return chatsync.ScrollMetrics{
		ScrollTop:    v.vp.YOffset,
		ScrollHeight: v.vp.TotalLineCount(),
		ClientHeight: v.vp.Height,
	}
}

func (v *ChatViewport) SetScrollTop(value int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vp.SetYOffset(value)
}

// ScrollToBottom jumps to the last line. A terminal has no smooth scrolling.
func (v *ChatViewport) ScrollToBottom(bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vp.GotoBottom()
}

func (v *ChatViewport) IsAtBottom(tolerance int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vp.TotalLineCount()-(v.vp.YOffset+v.vp.Height) <= tolerance
}

// AtTop reports whether the first line is visible.
func (v *ChatViewport) AtTop() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vp.AtTop()
}

func (v *ChatViewport) SetSize(width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vp.Width = width
	v.vp.Height = height
}

// Update forwards scrolling keys and mouse wheel events.
func (v *ChatViewport) Update(msg tea.Msg) tea.Cmd {
	v.mu.Lock()
	defer v.mu.Unlock()
	var cmd tea.Cmd
	v.vp, cmd = v.vp.Update(msg)
	return cmd
}

func (v *ChatViewport) View() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vp.View()
}
