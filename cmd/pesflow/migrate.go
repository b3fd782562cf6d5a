package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/goatkit/pesflow/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the inspection tables for the configured driver",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		if !cfg.Database.UsesSQL() {
			return errors.New("database.dsn is not set; nothing to migrate")
		}
		pool, err := database.Open(cmd.Context(), cfg.Database.PoolConfig(), logger)
		if err != nil {
			return err
		}
		defer pool.Close()

		return database.Migrate(cmd.Context(), pool)
	},
}
