package repository

import (
	"context"
	"time"

	"cmssync/internal/model"
)

// VersionRepository persists the append-only version history.
type VersionRepository interface {
	// Create assigns VersionNumber = max(existing)+1, deactivates the previously active version
	// and inserts v as the active version, all in one atomic step. Returns the stored row.
	Create(ctx context.Context, v *model.Version) (*model.Version, error)

	// List returns versions newest first. Payload is left nil unless includePayload is set.
	List(ctx context.Context, key model.ContentKey, pq PageQuery, includePayload bool) (*PageResult[model.VersionSummary], error)

	// FindByNumber returns one version of a document.
	FindByNumber(ctx context.Context, key model.ContentKey, number int) (*model.Version, error)

	// FindActive returns the active version of a document.
	FindActive(ctx context.Context, key model.ContentKey) (*model.Version, error)

	// PurgeOlderThan deletes inactive versions created before cutoff and reports how many were removed.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
