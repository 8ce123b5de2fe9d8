package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"partner-chat/internal/middleware"
)

var tokenCommand = &cli.Command{
	Name:   "token",
	Usage:  "Issue a development token signed with the configured secret",
	Action: cmdToken,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:     "user",
			Aliases:  []string{"u"},
			Usage:    "User id to put in the token",
			Required: true,
		},
		&cli.DurationFlag{
			Name:  "ttl",
			Usage: "Token lifetime",
			Value: 24 * time.Hour,
		},
	},
}

func cmdToken(ctx *cli.Context) error {
	token, err := middleware.IssueToken(getConfig(ctx).Auth.JWTSecret, ctx.Int("user"), ctx.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
