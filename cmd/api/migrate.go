// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"github.com/spf13/cobra"

	"github.com/taibuivan/companion/internal/platform/migration"
)

func newMigrateCommand() *cobra.Command {
	var down int

	command := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations, or roll back with --down",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}

			if down > 0 {
				if err := migration.RunDown(cfg.DatabaseURL, cfg.MigrationPath, down, log); err != nil {
					return fail(log, err, "roll back migrations")
				}
				return nil
			}

			if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log); err != nil {
				return fail(log, err, "run migrations")
			}
			return nil
		},
	}

	command.Flags().IntVar(&down, "down", 0, "number of migrations to roll back")
	return command
}
