// Package main starts the chess bot process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	botcmd "github.com/k1rl3s/chessbot/internal/cmd/bot"
	apperrors "github.com/k1rl3s/chessbot/internal/platform/errors"
)

func main() {
	cfg, err := botcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[BOT] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := botcmd.Run(ctx, cfg); err != nil {
		log.Printf("failed to serve: %v", err)
		stop()
		os.Exit(apperrors.ExitCodeOf(err))
	}
}
