package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/charmbracelet/log"
	_ "github.com/jackc/pgx/v5/stdlib"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"cmssync/internal/config"
	"cmssync/internal/database/migration"
	"cmssync/internal/repository"
	"cmssync/internal/repository/memory"
	"cmssync/internal/repository/postgres"
)

var sqlOpen = sql.Open

// BuildPostgresDSN renders c as a postgres:// URL understood by pgx.
func BuildPostgresDSN(c config.DatabaseConfig) (string, error) {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"DB_HOST", c.Host}, {"DB_PORT", c.Port}, {"DB_USER", c.User}, {"DB_NAME", c.Name},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("database config incomplete: missing %s", strings.Join(missing, ", "))
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   c.Name,
		User:   url.User(c.User),
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String(), nil
}

// NewPostgres opens a traced database/sql pool over the pgx stdlib driver and verifies connectivity.
func NewPostgres(ctx context.Context, c config.DatabaseConfig) (*sql.DB, error) {
	dsn, err := BuildPostgresDSN(c)
	if err != nil {
		return nil, err
	}

	driverName, err := otelsql.Register("pgx",
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
		otelsql.WithSQLCommenter(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register otelsql: %w", err)
	}

	db, err := sqlOpen(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}

	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetimeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(c.ConnMaxLifetimeSec) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

// Stores bundles the repositories the services run on.
// DB is nil when the in-memory store is in use.
type Stores struct {
	DB       *sql.DB
	Contents repository.ContentRepository
	Versions repository.VersionRepository
}

// Close releases the underlying pool, if any.
func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenStores connects to PostgreSQL and migrates it, or falls back to the
// in-memory store when no database host is configured.
func OpenStores(ctx context.Context, c config.DatabaseConfig, logger *log.Logger) (*Stores, error) {
	if c.Host == "" {
		logger.Warn("database_fallback", "component", "database", "store", "memory", "detail", "DB_HOST is empty, content is not durable")
		mem := memory.NewStore()
		return &Stores{Contents: mem.Contents(), Versions: mem.Versions()}, nil
	}

	db, err := NewPostgres(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := migration.EnsureMigrated(ctx, db, logger, c.Host); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Stores{
		DB:       db,
		Contents: postgres.NewContentPostgres(db),
		Versions: postgres.NewVersionPostgres(db),
	}, nil
}
