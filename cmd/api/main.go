// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Companion HTTP API server.
//
// # Commands
//
//   - serve:   Connect dependencies, run migrations and serve HTTP until signalled.
//   - migrate: Apply or roll back schema migrations and exit.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/taibuivan/companion/internal/platform/config"
	"github.com/taibuivan/companion/internal/platform/constants"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           constants.AppName,
		Short:         "Authentication and session service for the companion app",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCommand(), newMigrateCommand())
	return root
}

// bootstrap builds the logger and loads configuration. Both subcommands
// start here so that startup errors are structured JSON.
func bootstrap() (*config.Config, *slog.Logger, error) {
	log := newLogger(slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		log.Error("startup_failure", slog.String("stage", "load configuration"), slog.Any("error", err))
		return nil, nil, err
	}

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)
	return cfg, log, nil
}

func newLogger(level slog.Level) *slog.Logger {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", constants.AppName))
	slog.SetDefault(log)
	return log
}

// fail logs a structured startup error and hands it back to cobra.
func fail(log *slog.Logger, err error, stage string) error {
	log.Error("startup_failure",
		slog.String("stage", stage),
		slog.Any("error", err),
	)
	return err
}
