package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/spectral.report/cmd/spectral/commands"
	"github.com/banshee-data/spectral.report/internal/version"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := commands.Execute(ctx, version.Version, version.GitSHA, version.BuildTime); err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}
