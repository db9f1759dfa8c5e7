package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"cmssync/internal/database"
	"cmssync/internal/service"
)

var purgeDays int

var purgeCmd = &cobra.Command{
	Use:   "purge-versions",
	Short: "Delete inactive versions older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		days := purgeDays
		if days <= 0 {
			days = cfg.Sync.VersionRetentionDay
		}
		if days <= 0 {
			return errors.New("retention is not set: pass --days or VERSION_RETENTION_DAYS")
		}
		if cfg.Database.Host == "" {
			return errors.New("DB_HOST is not set")
		}

		stores, err := database.OpenStores(cmd.Context(), cfg.Database, logger)
		if err != nil {
			return err
		}
		defer stores.Close()

		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		n, err := service.NewVersionService(stores.Contents, stores.Versions).PurgeVersions(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
		logger.Info("versions_purged", "deleted", n, "older_than", cutoff.Format(time.RFC3339))
		return nil
	},
}

func init() {
	purgeCmd.Flags().IntVar(&purgeDays, "days", 0, "retention in days (defaults to VERSION_RETENTION_DAYS)")
	rootCmd.AddCommand(purgeCmd)
}
