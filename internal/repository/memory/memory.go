// Package memory is a process-local implementation of the repository contracts.
// It backs development runs without PostgreSQL and the service tests.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cmssync/internal/model"
	"cmssync/internal/repository"
)

// Store holds documents and their version histories behind one mutex,
// which makes version creation trivially atomic.
type Store struct {
	mu       sync.RWMutex
	docs     map[model.ContentKey]*model.ContentDocument
	versions map[model.ContentKey][]*model.Version
	now      func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		docs:     make(map[model.ContentKey]*model.ContentDocument),
		versions: make(map[model.ContentKey][]*model.Version),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var (
	_ repository.ContentRepository = (*contentView)(nil)
	_ repository.VersionRepository = (*Store)(nil)
)

// Contents exposes the store as a ContentRepository.
func (s *Store) Contents() repository.ContentRepository { return (*contentView)(s) }

// Versions exposes the store as a VersionRepository.
func (s *Store) Versions() repository.VersionRepository { return s }

type contentView Store

func (c *contentView) FindByKey(ctx context.Context, key model.ContentKey) (*model.ContentDocument, error) {
	return (*Store)(c).FindByKey(ctx, key)
}

func (c *contentView) Create(ctx context.Context, doc *model.ContentDocument) (*model.ContentDocument, error) {
	return (*Store)(c).CreateContent(ctx, doc)
}

func (c *contentView) Update(ctx context.Context, doc *model.ContentDocument) (*model.ContentDocument, error) {
	return (*Store)(c).Update(ctx, doc)
}

func (c *contentView) SoftDelete(ctx context.Context, key model.ContentKey, deletedBy string, at time.Time) error {
	return (*Store)(c).SoftDelete(ctx, key, deletedBy, at)
}

// FindByKey returns a copy of a live document.
func (s *Store) FindByKey(_ context.Context, key model.ContentKey) (*model.ContentDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[key]
	if !ok || d.Deleted() {
		return nil, sql.ErrNoRows
	}
	return copyDocument(d), nil
}

// CreateContent inserts a document; a soft-deleted document with the same key is replaced.
func (s *Store) CreateContent(_ context.Context, doc *model.ContentDocument) (*model.ContentDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := doc.Key()
	if d, ok := s.docs[key]; ok && !d.Deleted() {
		return nil, repository.ErrDuplicate
	}
	stored := copyDocument(doc)
	now := s.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.docs[key] = stored
	return copyDocument(stored), nil
}

// Update overwrites the payload of a live document.
func (s *Store) Update(_ context.Context, doc *model.ContentDocument) (*model.ContentDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[doc.Key()]
	if !ok || d.Deleted() {
		return nil, sql.ErrNoRows
	}
	d.Payload = clonePayload(doc.Payload)
	d.UpdatedBy = doc.UpdatedBy
	d.UpdatedAt = s.now()
	return copyDocument(d), nil
}

// SoftDelete marks a live document as deleted.
func (s *Store) SoftDelete(_ context.Context, key model.ContentKey, deletedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[key]
	if !ok || d.Deleted() {
		return sql.ErrNoRows
	}
	d.DeletedAt = &at
	d.UpdatedBy = deletedBy
	d.UpdatedAt = at
	return nil
}

// Create appends a new active version.
func (s *Store) Create(_ context.Context, v *model.Version) (*model.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := v.Key()
	history := s.versions[key]

	next := 1
	for _, existing := range history {
		if existing.VersionNumber >= next {
			next = existing.VersionNumber + 1
		}
		existing.IsActive = false
	}

	stored := copyVersion(v, true)
	stored.ID = uuid.NewString()
	stored.VersionNumber = next
	stored.IsActive = true
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	s.versions[key] = append(history, stored)
	return copyVersion(stored, true), nil
}

// List returns versions newest first.
func (s *Store) List(_ context.Context, key model.ContentKey, pq repository.PageQuery, includePayload bool) (*repository.PageResult[model.VersionSummary], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := append([]*model.Version(nil), s.versions[key]...)
	sort.Slice(history, func(i, j int) bool {
		return history[i].VersionNumber > history[j].VersionNumber
	})

	items := make([]model.VersionSummary, 0)
	for i := pq.Offset; i < len(history) && (pq.Limit <= 0 || len(items) < pq.Limit); i++ {
		if i < 0 {
			continue
		}
		items = append(items, *copyVersion(history[i], includePayload))
	}
	return &repository.PageResult[model.VersionSummary]{Items: items, Total: len(history)}, nil
}

// FindByNumber returns one version of a document.
func (s *Store) FindByNumber(_ context.Context, key model.ContentKey, number int) (*model.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions[key] {
		if v.VersionNumber == number {
			return copyVersion(v, true), nil
		}
	}
	return nil, sql.ErrNoRows
}

// FindActive returns the active version of a document.
func (s *Store) FindActive(_ context.Context, key model.ContentKey) (*model.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions[key] {
		if v.IsActive {
			return copyVersion(v, true), nil
		}
	}
	return nil, sql.ErrNoRows
}

// PurgeOlderThan deletes inactive versions created before cutoff.
func (s *Store) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for key, history := range s.versions {
		kept := history[:0]
		for _, v := range history {
			if !v.IsActive && v.CreatedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, v)
		}
		s.versions[key] = kept
	}
	return removed, nil
}

func copyDocument(d *model.ContentDocument) *model.ContentDocument {
	out := *d
	out.Payload = clonePayload(d.Payload)
	if d.DeletedAt != nil {
		at := *d.DeletedAt
		out.DeletedAt = &at
	}
	return &out
}

func copyVersion(v *model.Version, includePayload bool) *model.Version {
	out := *v
	out.Changes = append([]model.Change(nil), v.Changes...)
	out.Metadata = clonePayload(v.Metadata)
	if includePayload {
		out.Payload = clonePayload(v.Payload)
	} else {
		out.Payload = nil
	}
	return &out
}

// clonePayload deep-copies JSON-shaped data so callers never share maps with the store.
func clonePayload(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return in
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return in
	}
	return out
}
