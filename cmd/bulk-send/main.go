package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	_ = godotenv.Load()

	app := &cli.Command{
		Name:  "bulk-send",
		Usage: "Send notifications to institutions and inspect campaign logs",
		Commands: []*cli.Command{
			cmdSend(),
			cmdStats(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
