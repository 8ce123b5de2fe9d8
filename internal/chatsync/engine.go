package chatsync

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"partner-chat/internal/models"
	"partner-chat/internal/observability"
)

// Options tunes an Engine.
type Options struct {
	// PageSize is the limit sent with every fetch. Defaults to DefaultPageSize
	// and is capped at models.MaxPageLimit.
	PageSize int
	// BottomTolerance is the distance, in viewport units, still counted as
	// "at the bottom" when deciding whether to follow new messages.
	BottomTolerance int
	// LocalUserID identifies messages authored on this client.
	LocalUserID int
	// Chats, when set, gets its local unread count zeroed on mark-read.
	Chats  *ChatList
	Logger zerolog.Logger
}

type fetchKind string

const (
	fetchInitial fetchKind = "initial"
	fetchOlder   fetchKind = "older"
	fetchPoll    fetchKind = "poll"
)

// ticket tags an in-flight fetch with the activation it belongs to.
type ticket struct {
	chatID     int
	generation uint64
	kind       fetchKind
	prevPhase  Phase
}

// Engine keeps the active chat's message list ordered, unique and current.
// One fetch runs per chat at a time; results for a chat that is no longer
// active are dropped.
type Engine struct {
	backend  Backend
	viewport Viewport
	opts     Options
	log      zerolog.Logger
	tracer   trace.Tracer

	mu         sync.Mutex
	state      SyncState
	active     bool
	generation uint64
	inFlight   bool
	// syncCursor is the newest ID seen in a fetched page. Forward sync uses
	// it instead of NewestLoadedID so locally merged sends or pushed events
	// never skip messages the server has not returned yet.
	syncCursor int
}

// NewEngine builds an Engine.
func NewEngine(backend Backend, viewport Viewport, opts Options) *Engine {
	switch {
	case opts.PageSize <= 0:
		opts.PageSize = DefaultPageSize
	case opts.PageSize > models.MaxPageLimit:
		opts.PageSize = models.MaxPageLimit
	}
	return &Engine{
		backend:  backend,
		viewport: viewport,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "chatsync").Logger(),
		tracer:   otel.Tracer("partner-chat/chatsync"),
	}
}

// Snapshot returns a copy of the active chat's state.
func (e *Engine) Snapshot() SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// ActiveChat returns the active chat id, if any.
func (e *Engine) ActiveChat() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ChatID, e.active
}

// Deactivate discards the active chat. Fetches still in flight for it will
// be ignored when they complete.
func (e *Engine) Deactivate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked(0)
	e.active = false
}

func (e *Engine) resetLocked(chatID int) {
	e.generation++
	e.state = SyncState{ChatID: chatID, Phase: PhaseUnloaded}
	e.inFlight = false
	e.syncCursor = 0
}

func (e *Engine) isActiveLocked(chatID int) bool {
	return e.active && e.state.ChatID == chatID
}

func (e *Engine) currentLocked(t ticket) bool {
	return e.active && e.generation == t.generation && e.state.ChatID == t.chatID
}

// LoadInitial activates chatID and replaces its list with the newest page.
// Switching from another chat discards that chat's state first. Reloading
// the active chat keeps its list until the new page arrives. On failure the
// state is left as it was and a *NetworkError is returned.
func (e *Engine) LoadInitial(ctx context.Context, chatID int) error {
	e.mu.Lock()
	if e.isActiveLocked(chatID) {
		// Supersede whatever is in flight for this chat.
		e.generation++
		e.inFlight = false
	} else {
		e.resetLocked(chatID)
		e.active = true
	}
	t := ticket{chatID: chatID, generation: e.generation, kind: fetchInitial, prevPhase: e.state.Phase}
	e.state.Phase = PhaseLoading
	e.inFlight = true
	e.mu.Unlock()

	page, err := e.fetch(ctx, t, models.Page{Limit: e.opts.PageSize})

	e.mu.Lock()
	if !e.currentLocked(t) {
		e.mu.Unlock()
		e.dropStale(t)
		return nil
	}
	e.inFlight = false
	if err != nil {
		switch t.prevPhase {
		case PhaseUnloaded, PhaseLoading:
			e.state.Phase = PhaseUnloaded
		default:
			e.state.Phase = PhaseReady
		}
		e.mu.Unlock()
		return &NetworkError{Op: "load initial", ChatID: chatID, Err: err}
	}
	e.state.Messages = Merge(nil, page)
	e.state.HasMoreOlder = len(page) == e.opts.PageSize
	e.state.Phase = PhaseReady
	e.advanceCursorLocked(page)
	e.viewport.Render(e.state.Messages)
	e.viewport.ScrollToBottom(false)
	e.mu.Unlock()

	e.log.Debug().Int("chat_id", chatID).Int("count", len(page)).Bool("has_more_older", len(page) == e.opts.PageSize).Msg("initial page loaded")
	e.markRead(ctx, chatID)
	return nil
}

// LoadOlder fetches the page before the oldest loaded message and prepends
// it, keeping the on-screen message in place. It is a no-op when there is
// nothing older or another fetch for the chat is pending.
func (e *Engine) LoadOlder(ctx context.Context, chatID int) error {
	e.mu.Lock()
	if !e.isActiveLocked(chatID) {
		e.mu.Unlock()
		return ErrNoActiveChat
	}
	if reason := e.busyLocked(); reason != "" {
		e.mu.Unlock()
		observability.IncSyncSkip(string(fetchOlder), reason)
		return nil
	}
	cursor, ok := e.state.OldestLoadedID()
	if !e.state.HasMoreOlder || !ok {
		e.mu.Unlock()
		observability.IncSyncSkip(string(fetchOlder), "exhausted")
		return nil
	}
	t := ticket{chatID: chatID, generation: e.generation, kind: fetchOlder, prevPhase: e.state.Phase}
	e.state.Phase = PhaseLoadingOlder
	e.inFlight = true
	e.mu.Unlock()

	page, err := e.fetch(ctx, t, models.Page{Limit: e.opts.PageSize, BeforeID: &cursor})

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.currentLocked(t) {
		e.dropStale(t)
		return nil
	}
	e.inFlight = false
	e.state.Phase = PhaseReady
	if err != nil {
		return &NetworkError{Op: "load older", ChatID: chatID, Err: err}
	}
	e.state.HasMoreOlder = len(page) == e.opts.PageSize
	if len(page) == 0 {
		return nil
	}

	before := e.viewport.ScrollMetrics()
	e.state.Messages = Merge(e.state.Messages, page)
	e.viewport.Render(e.state.Messages)
	after := e.viewport.ScrollMetrics()
	e.viewport.SetScrollTop(before.ScrollTop + (after.ScrollHeight - before.ScrollHeight))
	return nil
}

// PollNew fetches messages newer than the last synced one and appends them.
// The viewport follows the new messages when it was at the bottom or the
// newest one is ours. A poll that finds the chat busy is skipped, not queued.
func (e *Engine) PollNew(ctx context.Context, chatID int) error {
	e.mu.Lock()
	if !e.isActiveLocked(chatID) {
		e.mu.Unlock()
		return ErrNoActiveChat
	}
	if reason := e.busyLocked(); reason != "" {
		e.mu.Unlock()
		observability.IncSyncSkip(string(fetchPoll), reason)
		return nil
	}
	page := models.Page{Limit: e.opts.PageSize}
	if e.syncCursor > 0 {
		cursor := e.syncCursor
		page.AfterID = &cursor
	}
	t := ticket{chatID: chatID, generation: e.generation, kind: fetchPoll, prevPhase: e.state.Phase}
	e.state.Phase = PhasePolling
	e.inFlight = true
	e.mu.Unlock()

	fetched, err := e.fetch(ctx, t, page)

	e.mu.Lock()
	if !e.currentLocked(t) {
		e.mu.Unlock()
		e.dropStale(t)
		return nil
	}
	e.inFlight = false
	e.state.Phase = PhaseReady
	if err != nil {
		e.mu.Unlock()
		return &NetworkError{Op: "poll", ChatID: chatID, Err: err}
	}
	if page.AfterID == nil {
		// Without a cursor the server answered with the newest page, the
		// same window LoadInitial asks for.
		e.state.HasMoreOlder = len(fetched) == e.opts.PageSize
	}
	e.advanceCursorLocked(fetched)
	unseen := e.mergeTailLocked(fetched)
	e.mu.Unlock()

	if unseen > 0 {
		e.markRead(ctx, chatID)
	}
	return nil
}

// ApplyEvent merges a pushed chat event into the active list, following the
// same scroll rule as PollNew. Events for other chats, or arriving before
// the first page, are ignored; the next poll picks them up.
func (e *Engine) ApplyEvent(ctx context.Context, ev models.ChatEvent) {
	e.mu.Lock()
	if !e.isActiveLocked(ev.ChatID) || e.state.Phase == PhaseUnloaded || e.state.Phase == PhaseLoading {
		e.mu.Unlock()
		return
	}
	var incoming []models.Message
	switch ev.Type {
	case models.EventMessage, models.EventEdit:
		if ev.Message != nil {
			incoming = append(incoming, *ev.Message)
		}
	case models.EventDelete:
		if existing, ok := e.state.find(ev.MessageID); ok {
			incoming = append(incoming, existing.Tombstone())
		}
	}
	if len(incoming) == 0 {
		e.mu.Unlock()
		return
	}
	unseen := e.mergeTailLocked(incoming)
	e.mu.Unlock()

	if unseen > 0 && ev.Type == models.EventMessage {
		e.markRead(ctx, ev.ChatID)
	}
}

// Send posts a draft and merges the stored message into the active list.
func (e *Engine) Send(ctx context.Context, chatID int, draft models.Draft) (models.Message, error) {
	if draft.Empty() {
		return models.Message{}, ErrEmptyDraft
	}
	e.mu.Lock()
	if !e.isActiveLocked(chatID) {
		e.mu.Unlock()
		return models.Message{}, ErrNoActiveChat
	}
	gen := e.generation
	e.mu.Unlock()

	msg, err := e.backend.SendMessage(ctx, chatID, draft)
	if err != nil {
		return models.Message{}, &NetworkError{Op: "send", ChatID: chatID, Err: err}
	}
	e.applyLocal(ticket{chatID: chatID, generation: gen}, msg)
	return msg, nil
}

// Edit replaces the text of one of our messages.
func (e *Engine) Edit(ctx context.Context, chatID, messageID int, content string) (models.Message, error) {
	e.mu.Lock()
	if !e.isActiveLocked(chatID) {
		e.mu.Unlock()
		return models.Message{}, ErrNoActiveChat
	}
	gen := e.generation
	e.mu.Unlock()

	msg, err := e.backend.EditMessage(ctx, messageID, content)
	if err != nil {
		return models.Message{}, &NetworkError{Op: "edit", ChatID: chatID, Err: err}
	}
	e.applyLocal(ticket{chatID: chatID, generation: gen}, msg)
	return msg, nil
}

// Delete removes one of our messages, leaving a tombstone in the list.
func (e *Engine) Delete(ctx context.Context, chatID, messageID int) error {
	e.mu.Lock()
	if !e.isActiveLocked(chatID) {
		e.mu.Unlock()
		return ErrNoActiveChat
	}
	gen := e.generation
	e.mu.Unlock()

	if err := e.backend.DeleteMessage(ctx, messageID); err != nil {
		return &NetworkError{Op: "delete", ChatID: chatID, Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen || !e.isActiveLocked(chatID) {
		return nil
	}
	if existing, ok := e.state.find(messageID); ok {
		e.state.Messages = Merge(e.state.Messages, []models.Message{existing.Tombstone()})
		e.viewport.Render(e.state.Messages)
	}
	return nil
}

func (e *Engine) applyLocal(t ticket, msg models.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != t.generation || !e.isActiveLocked(t.chatID) || msg.ChatID != t.chatID {
		return
	}
	e.mergeTailLocked([]models.Message{msg})
}

// mergeTailLocked merges incoming at the tail and applies the follow rule.
// It returns how many incoming IDs were not loaded before.
func (e *Engine) mergeTailLocked(incoming []models.Message) int {
	if len(incoming) == 0 {
		return 0
	}
	known := make(map[int]struct{}, len(e.state.Messages))
	for _, m := range e.state.Messages {
		known[m.ID] = struct{}{}
	}
	var added []models.Message
	for _, m := range incoming {
		if _, ok := known[m.ID]; !ok {
			added = append(added, m)
		}
	}

	wasAtBottom := e.viewport.IsAtBottom(e.opts.BottomTolerance)
	e.state.Messages = Merge(e.state.Messages, incoming)
	e.viewport.Render(e.state.Messages)

	newest, ok := newestOf(added)
	if wasAtBottom || (ok && newest.SenderID == e.opts.LocalUserID) {
		e.viewport.ScrollToBottom(true)
	}
	return len(added)
}

func (e *Engine) advanceCursorLocked(page []models.Message) {
	for _, m := range page {
		if m.ID > e.syncCursor {
			e.syncCursor = m.ID
		}
	}
}

func (e *Engine) busyLocked() string {
	if e.inFlight {
		return "in_flight"
	}
	if e.state.Phase != PhaseReady {
		return "not_ready"
	}
	return ""
}

func (e *Engine) fetch(ctx context.Context, t ticket, page models.Page) ([]models.Message, error) {
	ctx, span := e.tracer.Start(ctx, "chatsync."+string(t.kind), trace.WithAttributes(
		attribute.Int("chat.id", t.chatID),
		attribute.Int("page.limit", page.Limit),
	))
	defer span.End()

	msgs, err := e.backend.ListMessages(ctx, t.chatID, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.IncSyncFetch(string(t.kind), "error")
		e.log.Warn().Err(err).Int("chat_id", t.chatID).Str("kind", string(t.kind)).Msg("fetch failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("page.count", len(msgs)))
	observability.IncSyncFetch(string(t.kind), "ok")
	return msgs, nil
}

func (e *Engine) dropStale(t ticket) {
	observability.IncSyncSkip(string(t.kind), "stale")
	e.log.Debug().Int("chat_id", t.chatID).Str("kind", string(t.kind)).Msg("dropped stale response")
}

func (e *Engine) markRead(ctx context.Context, chatID int) {
	if e.opts.Chats != nil {
		e.opts.Chats.MarkReadLocal(chatID)
	}
	if err := e.backend.MarkRead(ctx, chatID); err != nil {
		e.log.Warn().Err(err).Int("chat_id", chatID).Msg("mark read failed")
	}
}
