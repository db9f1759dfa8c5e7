package main

import (
	"errors"

	"github.com/spf13/cobra"

	"cmssync/internal/database"
	"cmssync/internal/database/migration"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.Host == "" {
			return errors.New("DB_HOST is not set")
		}
		db, err := database.NewPostgres(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		return migration.EnsureMigrated(cmd.Context(), db, logger, cfg.Database.Host)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
