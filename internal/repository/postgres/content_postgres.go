package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cmssync/internal/model"
	"cmssync/internal/repository"
)

// ContentPostgres is a PostgreSQL implementation of repository.ContentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type ContentPostgres struct {
	db *sql.DB
}

// NewContentPostgres creates a new ContentPostgres repository.
func NewContentPostgres(db *sql.DB) *ContentPostgres {
	return &ContentPostgres{db: db}
}

var _ repository.ContentRepository = (*ContentPostgres)(nil)

const contentColumns = `content_type, content_id, payload, updated_by, created_at, updated_at, deleted_at`

// FindByKey fetches a live document.
func (r *ContentPostgres) FindByKey(ctx context.Context, key model.ContentKey) (*model.ContentDocument, error) {
	const q = `
		SELECT ` + contentColumns + `
		FROM content_documents
		WHERE content_type = $1 AND content_id = $2 AND deleted_at IS NULL
	`
	return scanDocument(r.db.QueryRowContext(ctx, q, key.ContentType, key.ContentID))
}

// Create inserts a document row. A soft-deleted row with the same key is revived;
// a live row with the same key is left untouched and repository.ErrDuplicate is returned.
func (r *ContentPostgres) Create(ctx context.Context, doc *model.ContentDocument) (*model.ContentDocument, error) {
	payload, err := encodeJSON(doc.Payload)
	if err != nil {
		return nil, err
	}
	const q = `
		INSERT INTO content_documents (content_type, content_id, payload, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (content_type, content_id) DO UPDATE
			SET payload = EXCLUDED.payload, updated_by = EXCLUDED.updated_by,
			    created_at = now(), updated_at = now(), deleted_at = NULL
			WHERE content_documents.deleted_at IS NOT NULL
		RETURNING ` + contentColumns
	out, err := scanDocument(r.db.QueryRowContext(ctx, q, doc.ContentType, doc.ContentID, payload, doc.UpdatedBy))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrDuplicate
	}
	return out, err
}

// Update overwrites the payload of a live document.
func (r *ContentPostgres) Update(ctx context.Context, doc *model.ContentDocument) (*model.ContentDocument, error) {
	payload, err := encodeJSON(doc.Payload)
	if err != nil {
		return nil, err
	}
	const q = `
		UPDATE content_documents
		SET payload = $3, updated_by = $4, updated_at = now()
		WHERE content_type = $1 AND content_id = $2 AND deleted_at IS NULL
		RETURNING ` + contentColumns
	return scanDocument(r.db.QueryRowContext(ctx, q, doc.ContentType, doc.ContentID, payload, doc.UpdatedBy))
}

// SoftDelete marks a live document as deleted. It returns sql.ErrNoRows if nothing matched.
func (r *ContentPostgres) SoftDelete(ctx context.Context, key model.ContentKey, deletedBy string, at time.Time) error {
	const q = `
		UPDATE content_documents
		SET deleted_at = $3, updated_by = $4, updated_at = $3
		WHERE content_type = $1 AND content_id = $2 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, q, key.ContentType, key.ContentID, at, deletedBy)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanDocument(row rowScanner) (*model.ContentDocument, error) {
	var (
		d         model.ContentDocument
		payload   []byte
		updatedBy sql.NullString
		deletedAt sql.NullTime
	)
	if err := row.Scan(
		&d.ContentType,
		&d.ContentID,
		&payload,
		&updatedBy,
		&d.CreatedAt,
		&d.UpdatedAt,
		&deletedAt,
	); err != nil {
		return nil, err
	}
	if err := decodeJSON(payload, &d.Payload); err != nil {
		return nil, err
	}
	d.UpdatedBy = updatedBy.String
	if deletedAt.Valid {
		at := deletedAt.Time
		d.DeletedAt = &at
	}
	return &d, nil
}
