package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"partner-chat/internal/models"
)

var sendCommand = &cli.Command{
	Name:      "send",
	Usage:     "Send one message, optionally with a file",
	ArgsUsage: "[TEXT]",
	Before:    requiresToken,
	Action:    cmdSend,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:     "chat",
			Aliases:  []string{"c"},
			Usage:    "Chat id",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Path of a file to attach",
		},
		&cli.IntFlag{
			Name:  "reply-to",
			Usage: "Id of the message being answered",
		},
	},
}

func cmdSend(ctx *cli.Context) error {
	client := newClient(ctx)
	var draft models.Draft
	if text := ctx.Args().First(); text != "" {
		draft.Content = &text
	}
	if path := ctx.String("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		url, err := client.UploadAttachment(ctx.Context, filepath.Base(path), f)
		if err != nil {
			return fmt.Errorf("upload %s: %w", path, err)
		}
		draft.Attachment = &url
	}
	if draft.Empty() {
		return fmt.Errorf("nothing to send: give a text or --file")
	}
	if parent := ctx.Int("reply-to"); parent != 0 {
		draft.ParentID = &parent
	}

	msg, err := client.SendMessage(ctx.Context, ctx.Int("chat"), draft)
	if err != nil {
		return err
	}
	fmt.Printf("sent message #%d\n", msg.ID)
	return nil
}

var startCommand = &cli.Command{
	Name:   "start",
	Usage:  "Open (or find) the chat with another user",
	Before: requiresToken,
	Action: cmdStart,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:     "user",
			Aliases:  []string{"u"},
			Usage:    "The other user's id",
			Required: true,
		},
	},
}

func cmdStart(ctx *cli.Context) error {
	chatID, err := newClient(ctx).StartChat(ctx.Context, ctx.Int("user"))
	if err != nil {
		return err
	}
	fmt.Println(chatID)
	return nil
}
