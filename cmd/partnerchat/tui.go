package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"partner-chat/internal/tui"
)

var tuiCommand = &cli.Command{
	Name:   "tui",
	Usage:  "Open the interactive chat client",
	Before: requiresToken,
	Action: cmdTUI,
}

func cmdTUI(ctx *cli.Context) error {
	cfg := getConfig(ctx)
	model := tui.New(tui.Options{
		Backend:         newClient(ctx),
		LocalUserID:     cfg.Client.UserID,
		PageSize:        cfg.Client.PageSize,
		PollInterval:    cfg.Client.PollInterval,
		BottomTolerance: cfg.Client.BottomTolerance,
		Logger:          getLogger(ctx),
	})
	defer model.Close()

	_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx.Context)).Run()
	return err
}
