package repository

import (
	"context"
	"time"

	"cmssync/internal/model"
)

// ContentRepository is the document store. It is the source of truth for content;
// caches are never authoritative. No business logic here.
type ContentRepository interface {
	// FindByKey returns a live (not soft-deleted) document.
	FindByKey(ctx context.Context, key model.ContentKey) (*model.ContentDocument, error)

	// Create inserts a new document.
	Create(ctx context.Context, doc *model.ContentDocument) (*model.ContentDocument, error)

	// Update overwrites the payload of a live document.
	Update(ctx context.Context, doc *model.ContentDocument) (*model.ContentDocument, error)

	// SoftDelete marks a live document as deleted.
	SoftDelete(ctx context.Context, key model.ContentKey, deletedBy string, at time.Time) error
}
