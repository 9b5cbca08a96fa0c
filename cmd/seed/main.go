// Package main provides a CLI for seeding a local development database with
// a demo account, server, and channels, printing a ready-to-use token.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	seedcmd "github.com/voxhall/voxhall/internal/cmd/seed"
	entrypoint "github.com/voxhall/voxhall/internal/platform/cmd"
)

func main() {
	fs := flag.NewFlagSet(entrypoint.ServiceSeed, flag.ExitOnError)
	cfg, err := seedcmd.ParseConfig(fs, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[SEED] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seedcmd.Run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}
