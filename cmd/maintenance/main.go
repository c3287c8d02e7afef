// Package main provides journal maintenance utilities.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/powerhouse-inc/contributor-billing/internal/platform/config"
	"github.com/powerhouse-inc/contributor-billing/internal/tools/maintenance"
)

func main() {
	log.SetPrefix("[MAINTENANCE] ")
	cfg, err := maintenance.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := maintenance.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, maintenance.ErrVerificationFailed) {
			config.ExitWithCode(2, "Error: %v", err)
		}
		config.Exitf("Error: %v", err)
	}
}
