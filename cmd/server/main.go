// Package main is the entry point for the youthhub API server.
//
// main stays minimal. Its job is to:
//  1. Load configuration (defaults, YAML file, environment, flags)
//  2. Build the logger and open the store
//  3. Hand both to the server and block until it stops
//
// All actual logic lives in internal/.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/juju/clock"
	"github.com/spf13/pflag"

	"github.com/sakif/youthhub/internal/config"
	"github.com/sakif/youthhub/internal/server"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(2)
	}

	// Level was checked by config.Validate.
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	store, err := server.OpenStore(context.Background(), *cfg, logger)
	if err != nil {
		logger.Error("failed to open store",
			slog.String("store", cfg.Store),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	srv, err := server.New(*cfg, store, clock.WallClock, logger)
	if err != nil {
		store.Close()
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
