package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"partner-chat/internal/apiclient"
	"partner-chat/internal/config"
	"partner-chat/internal/logging"
)

type contextKey int

const (
	contextKeyConfig contextKey = iota
	contextKeyLogger
)

func getConfig(ctx *cli.Context) *config.Config {
	return ctx.Context.Value(contextKeyConfig).(*config.Config)
}

func getLogger(ctx *cli.Context) zerolog.Logger {
	return ctx.Context.Value(contextKeyLogger).(zerolog.Logger)
}

// prepareApp loads the config and opens the log file. The terminal is left
// to the command's own output.
func prepareApp(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if ctx.IsSet("base-url") {
		cfg.Client.BaseURL = ctx.String("base-url")
	}
	if ctx.IsSet("token") {
		cfg.Client.Token = ctx.String("token")
	}

	logger, closer, err := logging.OpenFile(cfg.Client.LogFile, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	ctx.App.Metadata["closer"] = closer

	newCtx := context.WithValue(ctx.Context, contextKeyConfig, cfg)
	newCtx = context.WithValue(newCtx, contextKeyLogger, logger)
	ctx.Context = newCtx
	return nil
}

func closeApp(ctx *cli.Context) error {
	if closer, ok := ctx.App.Metadata["closer"].(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// requiresToken also resolves the local user id, which the client needs to
// tell its own messages apart.
func requiresToken(ctx *cli.Context) error {
	cfg := getConfig(ctx)
	if cfg.Client.Token == "" {
		return fmt.Errorf("no API token: set CHAT_TOKEN or run 'partnerchat token'")
	}
	if cfg.Client.UserID == 0 {
		return fmt.Errorf("no user id: set CHAT_USER_ID or client.user_id")
	}
	return nil
}

func newClient(ctx *cli.Context) *apiclient.Client {
	cfg := getConfig(ctx)
	return apiclient.New(cfg.Client.BaseURL, cfg.Client.Token, apiclient.WithLogger(getLogger(ctx)))
}

func main() {
	app := &cli.App{
		Name:     "partnerchat",
		Usage:    "Terminal client for partner chats",
		Metadata: map[string]any{},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to config file",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "Chat API base URL",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "API bearer token",
			},
		},
		Before: prepareApp,
		After:  closeApp,
		Commands: []*cli.Command{
			tuiCommand,
			tailCommand,
			sendCommand,
			startCommand,
			tokenCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
