package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cmssync/internal/model"
	"cmssync/internal/repository"
)

var tracer = otel.Tracer("cmssync/internal/service")

// CreateVersionInput describes a version to append.
type CreateVersionInput struct {
	Key      model.ContentKey
	Payload  map[string]any
	Changes  []model.Change
	AuthorID string
	Metadata map[string]any
	// Initial marks the first version of a document being created; other
	// versions require the document to exist.
	Initial bool
}

// HistoryQuery selects one page of history, newest first.
type HistoryQuery struct {
	Page           int
	PageSize       int
	IncludePayload bool
}

// VersionHistory is one page of a document's versions.
type VersionHistory struct {
	Items    []model.VersionSummary `json:"data"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"pageSize"`
}

// VersionService is the append-only version store.
type VersionService interface {
	// CreateVersion numbers, activates and stores a new version in one atomic step.
	CreateVersion(ctx context.Context, in CreateVersionInput) (*model.Version, error)

	// GetHistory lists versions newest first; payloads are omitted unless requested.
	GetHistory(ctx context.Context, key model.ContentKey, q HistoryQuery) (*VersionHistory, error)

	GetVersion(ctx context.Context, key model.ContentKey, number int) (*model.Version, error)
	GetActiveVersion(ctx context.Context, key model.ContentKey) (*model.Version, error)

	// RestoreVersion appends a new version carrying the payload of version number.
	// Existing versions are never modified.
	RestoreVersion(ctx context.Context, key model.ContentKey, number int, requestedBy string) (*model.Version, error)

	// CompareVersions returns both versions and the diff from a to b.
	CompareVersions(ctx context.Context, key model.ContentKey, a, b int) (*model.VersionComparison, error)

	// PurgeVersions deletes inactive versions created before olderThan.
	PurgeVersions(ctx context.Context, olderThan time.Time) (int64, error)
}

type versionService struct {
	contents repository.ContentRepository
	versions repository.VersionRepository
	now      func() time.Time
}

// NewVersionService constructs a VersionService.
func NewVersionService(contents repository.ContentRepository, versions repository.VersionRepository) VersionService {
	return &versionService{
		contents: contents,
		versions: versions,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func startSpan(ctx context.Context, name string, key model.ContentKey) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("content.type", key.ContentType),
		attribute.String("content.id", key.ContentID),
	))
}

func (s *versionService) CreateVersion(ctx context.Context, in CreateVersionInput) (*model.Version, error) {
	if !in.Key.Valid() {
		return nil, ErrIDRequired
	}
	if in.AuthorID == "" {
		return nil, ErrAuthorRequired
	}
	ctx, span := startSpan(ctx, "VersionService.CreateVersion", in.Key)
	defer span.End()

	if !in.Initial {
		if _, err := s.contents.FindByKey(ctx, in.Key); err != nil {
			return nil, notFound(err, "content")
		}
	}
	return s.append(ctx, in)
}

// append stores a version without checking the document; callers hold the
// document lock and have already loaded it.
func (s *versionService) append(ctx context.Context, in CreateVersionInput) (*model.Version, error) {
	changes := in.Changes
	if changes == nil {
		changes = []model.Change{}
	}
	v, err := s.versions.Create(ctx, &model.Version{
		ContentType: in.Key.ContentType,
		ContentID:   in.Key.ContentID,
		Payload:     in.Payload,
		Changes:     changes,
		AuthorID:    in.AuthorID,
		CreatedAt:   s.now(),
		Metadata:    in.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("create version: %w", err)
	}
	return v, nil
}

func (s *versionService) GetHistory(ctx context.Context, key model.ContentKey, q HistoryQuery) (*VersionHistory, error) {
	if !key.Valid() {
		return nil, ErrIDRequired
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}

	res, err := s.versions.List(ctx, key, repository.PageQuery{
		Limit:  q.PageSize,
		Offset: (q.Page - 1) * q.PageSize,
	}, q.IncludePayload)
	if err != nil {
		return nil, err
	}
	return &VersionHistory{Items: res.Items, Total: res.Total, Page: q.Page, PageSize: q.PageSize}, nil
}

func (s *versionService) GetVersion(ctx context.Context, key model.ContentKey, number int) (*model.Version, error) {
	if !key.Valid() {
		return nil, ErrIDRequired
	}
	v, err := s.versions.FindByNumber(ctx, key, number)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("version %d", number))
	}
	return v, nil
}

func (s *versionService) GetActiveVersion(ctx context.Context, key model.ContentKey) (*model.Version, error) {
	if !key.Valid() {
		return nil, ErrIDRequired
	}
	v, err := s.versions.FindActive(ctx, key)
	if err != nil {
		return nil, notFound(err, "active version")
	}
	return v, nil
}

func (s *versionService) RestoreVersion(ctx context.Context, key model.ContentKey, number int, requestedBy string) (*model.Version, error) {
	ctx, span := startSpan(ctx, "VersionService.RestoreVersion", key)
	defer span.End()

	target, err := s.GetVersion(ctx, key, number)
	if err != nil {
		return nil, err
	}
	return s.CreateVersion(ctx, restoreInput(target, requestedBy, s.now()))
}

func restoreInput(target *model.Version, requestedBy string, at time.Time) CreateVersionInput {
	return CreateVersionInput{
		Key:     target.Key(),
		Payload: target.Payload,
		Changes: []model.Change{{
			Field:     "restored",
			NewValue:  fmt.Sprintf("from version %d", target.VersionNumber),
			Timestamp: at,
		}},
		AuthorID: requestedBy,
		Metadata: map[string]any{"restoredFrom": target.VersionNumber},
	}
}

func (s *versionService) CompareVersions(ctx context.Context, key model.ContentKey, a, b int) (*model.VersionComparison, error) {
	va, err := s.GetVersion(ctx, key, a)
	if err != nil {
		return nil, err
	}
	vb, err := s.GetVersion(ctx, key, b)
	if err != nil {
		return nil, err
	}
	return &model.VersionComparison{
		A:       va,
		B:       vb,
		Changes: CalculateDiff(va.Payload, vb.Payload, s.now()),
	}, nil
}

func (s *versionService) PurgeVersions(ctx context.Context, olderThan time.Time) (int64, error) {
	n, err := s.versions.PurgeOlderThan(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge versions: %w", err)
	}
	return n, nil
}
