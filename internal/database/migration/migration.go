package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_content_documents",
		SQL: `CREATE TABLE IF NOT EXISTS content_documents (
  content_type TEXT        NOT NULL,
  content_id   TEXT        NOT NULL,
  payload      JSONB       NOT NULL DEFAULT '{}'::jsonb,
  updated_by   TEXT        NOT NULL DEFAULT '',
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  deleted_at   TIMESTAMPTZ,
  PRIMARY KEY (content_type, content_id)
);`,
	},
	{
		Name: "create_table_content_versions",
		SQL: `CREATE TABLE IF NOT EXISTS content_versions (
  id             UUID        PRIMARY KEY,
  content_type   TEXT        NOT NULL,
  content_id     TEXT        NOT NULL,
  version_number INTEGER     NOT NULL CHECK (version_number > 0),
  payload        JSONB,
  changes        JSONB       NOT NULL DEFAULT '[]'::jsonb,
  author_id      TEXT        NOT NULL,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
  is_active      BOOLEAN     NOT NULL DEFAULT FALSE,
  metadata       JSONB
);`,
	},
	{
		Name: "create_index_content_versions_number",
		SQL: `CREATE UNIQUE INDEX IF NOT EXISTS idx_content_versions_number
  ON content_versions (content_type, content_id, version_number);`,
	},
	{
		Name: "create_index_content_versions_active",
		SQL: `CREATE UNIQUE INDEX IF NOT EXISTS idx_content_versions_active
  ON content_versions (content_type, content_id) WHERE is_active;`,
	},
	{
		Name: "create_index_content_versions_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_content_versions_created_at ON content_versions (created_at) WHERE NOT is_active;`,
	},
	{
		Name: "create_index_content_documents_updated_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_content_documents_updated_at ON content_documents (updated_at);`,
	},
}

// EnsureMigrated checks if the 'content_versions' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *log.Logger, dbHost string) error {
	start := time.Now()
	logger = logger.With("component", "database", "db_host", dbHost)

	logger.Info("db_migration_check", "status", "starting")

	var exists bool
	query := "SELECT to_regclass('public.content_versions') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		logger.Error("db_migration_failed",
			"status", "error",
			"error_message", fmt.Sprintf("failed to check sentinel table: %v", err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logger.Info("db_migration_skip",
			"status", "success",
			"detail", "schema already exists, skipping migration",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	logger.Info("db_migration_start", "status", "in_progress")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			logger.Error("db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logger.Info("db_migration_step",
			"status", "success",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	logger.Info("db_migration_success",
		"status", "success",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
