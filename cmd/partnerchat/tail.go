package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/urfave/cli/v2"

	"partner-chat/internal/chatsync"
	"partner-chat/internal/models"
)

var tailCommand = &cli.Command{
	Name:   "tail",
	Usage:  "Print a chat's messages and follow new ones",
	Before: requiresToken,
	Action: cmdTail,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:     "chat",
			Aliases:  []string{"c"},
			Usage:    "Chat id",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "ws",
			Usage: "Also apply pushed events from the websocket",
		},
	},
}

// linePrinter is a viewport without scrolling: every render prints the
// messages that are new or changed since the last one.
type linePrinter struct {
	mu      sync.Mutex
	out     io.Writer
	userID  int
	printed map[int]string
}

func newLinePrinter(out io.Writer, userID int) *linePrinter {
	return &linePrinter{out: out, userID: userID, printed: map[int]string{}}
}

func (p *linePrinter) Render(messages []models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range messages {
		line := p.format(m)
		prev, seen := p.printed[m.ID]
		if seen && prev == line {
			continue
		}
		p.printed[m.ID] = line
		if seen {
			line = "~ " + line
		}
		fmt.Fprintln(p.out, line)
	}
}

func (p *linePrinter) format(m models.Message) string {
	who := fmt.Sprintf("user %d", m.SenderID)
	if m.SenderID == p.userID {
		who = "you"
	}
	stamp := m.CreatedAt.Local().Format("2006-01-02 15:04")
	switch {
	case m.Deleted:
		return fmt.Sprintf("[%s] #%d %s: (deleted)", stamp, m.ID, who)
	case m.Attachment != nil:
		return fmt.Sprintf("[%s] #%d %s: %s [%s]", stamp, m.ID, who, m.Text(), *m.Attachment)
	}
	return fmt.Sprintf("[%s] #%d %s: %s", stamp, m.ID, who, m.Text())
}

func (p *linePrinter) ScrollMetrics() chatsync.ScrollMetrics { return chatsync.ScrollMetrics{} }
func (p *linePrinter) SetScrollTop(int)                      {}
func (p *linePrinter) ScrollToBottom(bool)                   {}
func (p *linePrinter) IsAtBottom(int) bool                   { return true }

func cmdTail(ctx *cli.Context) error {
	cfg := getConfig(ctx)
	logger := getLogger(ctx)
	chatID := ctx.Int("chat")
	client := newClient(ctx)

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := chatsync.NewEngine(client, newLinePrinter(os.Stdout, cfg.Client.UserID), chatsync.Options{
		PageSize:    cfg.Client.PageSize,
		LocalUserID: cfg.Client.UserID,
		Logger:      logger,
	})
	if err := engine.LoadInitial(runCtx, chatID); err != nil {
		return err
	}

	poller := chatsync.NewPoller(engine, nil, cfg.Client.PollInterval, logger)
	poller.OnTick = func(_ int, err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "poll: %v\n", err)
		}
	}
	handle := poller.Start(runCtx, chatID)
	defer handle.Stop()

	if ctx.Bool("ws") {
		go func() {
			err := client.Subscribe(runCtx, chatID, func(ev models.ChatEvent) {
				engine.ApplyEvent(runCtx, ev)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn().Err(err).Int("chat_id", chatID).Msg("websocket closed, polling only")
			}
		}()
	}

	<-runCtx.Done()
	return nil
}
