package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cmssync/internal/model"
	"cmssync/internal/repository"
)

// VersionPostgres is a PostgreSQL implementation of repository.VersionRepository.
type VersionPostgres struct {
	db *sql.DB
}

// NewVersionPostgres creates a new VersionPostgres repository.
func NewVersionPostgres(db *sql.DB) *VersionPostgres {
	return &VersionPostgres{db: db}
}

var _ repository.VersionRepository = (*VersionPostgres)(nil)

const versionColumns = `id, content_type, content_id, version_number, payload, changes, author_id, created_at, is_active, metadata`

// Create numbers, activates and inserts a version inside one transaction.
// A transaction-scoped advisory lock on the document serializes concurrent writers,
// including the very first version when no row exists yet to lock.
func (r *VersionPostgres) Create(ctx context.Context, v *model.Version) (out *model.Version, err error) {
	payload, err := encodeJSON(v.Payload)
	if err != nil {
		return nil, err
	}
	changes, err := encodeJSON(v.Changes)
	if err != nil {
		return nil, err
	}
	meta, err := encodeJSON(v.Metadata)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const qLock = `SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`
	if _, err = tx.ExecContext(ctx, qLock, v.ContentType, v.ContentID); err != nil {
		return nil, fmt.Errorf("lock document: %w", err)
	}

	const qMax = `
		SELECT COALESCE(MAX(version_number), 0)
		FROM content_versions
		WHERE content_type = $1 AND content_id = $2
	`
	var current int
	if err = tx.QueryRowContext(ctx, qMax, v.ContentType, v.ContentID).Scan(&current); err != nil {
		return nil, fmt.Errorf("read max version: %w", err)
	}

	const qDeactivate = `
		UPDATE content_versions SET is_active = FALSE
		WHERE content_type = $1 AND content_id = $2 AND is_active
	`
	if _, err = tx.ExecContext(ctx, qDeactivate, v.ContentType, v.ContentID); err != nil {
		return nil, fmt.Errorf("deactivate version: %w", err)
	}

	createdAt := v.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	const qInsert = `
		INSERT INTO content_versions (id, content_type, content_id, version_number, payload, changes, author_id, created_at, is_active, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9)
		RETURNING ` + versionColumns
	row := tx.QueryRowContext(ctx, qInsert,
		uuid.NewString(),
		v.ContentType,
		v.ContentID,
		current+1,
		payload,
		changes,
		v.AuthorID,
		createdAt,
		meta,
	)
	out, err = scanVersion(row, true)
	if err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit version: %w", err)
	}
	return out, nil
}

// List returns versions newest first using LIMIT/OFFSET pagination and a total count.
func (r *VersionPostgres) List(ctx context.Context, key model.ContentKey, pq repository.PageQuery, includePayload bool) (*repository.PageResult[model.VersionSummary], error) {
	const qCount = `SELECT COUNT(*) FROM content_versions WHERE content_type = $1 AND content_id = $2`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, key.ContentType, key.ContentID).Scan(&total); err != nil {
		return nil, err
	}

	// The payload column is swapped for NULL so large snapshots never leave the database for listings.
	payloadExpr := "NULL::jsonb"
	if includePayload {
		payloadExpr = "payload"
	}
	qList := `
		SELECT id, content_type, content_id, version_number, ` + payloadExpr + `, changes, author_id, created_at, is_active, metadata
		FROM content_versions
		WHERE content_type = $1 AND content_id = $2
		ORDER BY version_number DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.QueryContext(ctx, qList, key.ContentType, key.ContentID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.VersionSummary, 0)
	for rows.Next() {
		v, err := scanVersion(rows, includePayload)
		if err != nil {
			return nil, err
		}
		items = append(items, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.VersionSummary]{
		Items: items,
		Total: total,
	}, nil
}

// FindByNumber fetches a single version.
func (r *VersionPostgres) FindByNumber(ctx context.Context, key model.ContentKey, number int) (*model.Version, error) {
	const q = `
		SELECT ` + versionColumns + `
		FROM content_versions
		WHERE content_type = $1 AND content_id = $2 AND version_number = $3
	`
	return scanVersion(r.db.QueryRowContext(ctx, q, key.ContentType, key.ContentID, number), true)
}

// FindActive fetches the active version.
func (r *VersionPostgres) FindActive(ctx context.Context, key model.ContentKey) (*model.Version, error) {
	const q = `
		SELECT ` + versionColumns + `
		FROM content_versions
		WHERE content_type = $1 AND content_id = $2 AND is_active
	`
	return scanVersion(r.db.QueryRowContext(ctx, q, key.ContentType, key.ContentID), true)
}

// PurgeOlderThan removes inactive versions created before cutoff.
func (r *VersionPostgres) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM content_versions WHERE NOT is_active AND created_at < $1`
	res, err := r.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner, includePayload bool) (*model.Version, error) {
	var (
		v       model.Version
		payload []byte
		changes []byte
		meta    []byte
	)
	if err := row.Scan(
		&v.ID,
		&v.ContentType,
		&v.ContentID,
		&v.VersionNumber,
		&payload,
		&changes,
		&v.AuthorID,
		&v.CreatedAt,
		&v.IsActive,
		&meta,
	); err != nil {
		return nil, err
	}
	if includePayload {
		if err := decodeJSON(payload, &v.Payload); err != nil {
			return nil, err
		}
	}
	if err := decodeJSON(changes, &v.Changes); err != nil {
		return nil, err
	}
	if err := decodeJSON(meta, &v.Metadata); err != nil {
		return nil, err
	}
	if v.Changes == nil {
		v.Changes = []model.Change{}
	}
	return &v, nil
}
