package chatsync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"partner-chat/internal/observability"
)

// DefaultPollInterval is the fixed delay between poll ticks.
const DefaultPollInterval = 3 * time.Second

// Poller drives PollNew and chat list refreshes on a fixed interval for one
// active chat at a time. Ticks that fire while the user is composing are
// dropped.
type Poller struct {
	engine   *Engine
	chats    *ChatList
	interval time.Duration
	log      zerolog.Logger

	composing atomic.Bool
	// OnTick, if set, is called after every tick that ran with the poll
	// error (nil on success).
	OnTick func(chatID int, err error)
}

// NewPoller builds a Poller. chats may be nil.
func NewPoller(engine *Engine, chats *ChatList, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		engine:   engine,
		chats:    chats,
		interval: interval,
		log:      logger.With().Str("component", "poller").Logger(),
	}
}

// SetComposing marks whether the message input has focus.
func (p *Poller) SetComposing(composing bool) {
	p.composing.Store(composing)
}

// Composing reports the current composing flag.
func (p *Poller) Composing() bool {
	return p.composing.Load()
}

// Tick runs one poll cycle for chatID. It reports whether the cycle ran.
func (p *Poller) Tick(ctx context.Context, chatID int) (bool, error) {
	if p.composing.Load() {
		observability.IncSyncSkip(string(fetchPoll), "composing")
		return false, nil
	}
	err := p.engine.PollNew(ctx, chatID)
	if p.chats != nil {
		if lerr := p.chats.Refresh(ctx); lerr != nil {
			p.log.Warn().Err(lerr).Msg("chat list refresh failed")
		}
	}
	return true, err
}

// Start begins polling chatID until the returned handle is stopped or ctx
// is cancelled.
func (p *Poller) Start(ctx context.Context, chatID int) *PollHandle {
	ctx, cancel := context.WithCancel(ctx)
	h := &PollHandle{chatID: chatID, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ran, err := p.Tick(ctx, chatID)
				if !ran {
					continue
				}
				if err != nil && ctx.Err() == nil {
					p.log.Warn().Err(err).Int("chat_id", chatID).Msg("poll failed")
				}
				if p.OnTick != nil {
					p.OnTick(chatID, err)
				}
			}
		}
	}()
	return h
}

// PollHandle owns the polling goroutine of one chat activation.
type PollHandle struct {
	chatID int
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// ChatID returns the chat being polled.
func (h *PollHandle) ChatID() int {
	return h.chatID
}

// Stop cancels polling and waits for the goroutine to exit. Safe to call
// more than once and on a nil handle.
func (h *PollHandle) Stop() {
	if h == nil {
		return
	}
	h.once.Do(h.cancel)
	<-h.done
}
