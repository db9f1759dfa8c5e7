package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"

	"cmssync/internal/cache"
	"cmssync/internal/jobs"
	"cmssync/internal/logging"
	"cmssync/internal/model"
	"cmssync/internal/repository"
	"cmssync/internal/storage"
)

// Background job types.
const (
	JobSnapshotArchive = "snapshot-archive"
	JobCacheWarm       = "cache-warm"
	JobVersionPurge    = "version-purge"
)

// JobRegistrar binds handlers to job types.
type JobRegistrar interface {
	Register(jobType string, h jobs.Handler)
}

// PurgePayload overrides the configured retention for one purge run.
type PurgePayload struct {
	RetentionDays int `json:"retentionDays,omitempty"`
}

// SideWork holds the handlers for work done outside the request path.
type SideWork struct {
	contents  repository.ContentRepository
	versions  VersionService
	store     storage.Storage
	cache     Cache
	cacheTTL  time.Duration
	retention time.Duration
	locks     *DocumentLocks
	logger    *log.Logger
	now       func() time.Time
}

// SideWorkDeps wires SideWork. Store and Cache are optional; the matching
// job is not registered without them. Locks must be the coordinator's.
type SideWorkDeps struct {
	Contents  repository.ContentRepository
	Versions  VersionService
	Store     storage.Storage
	Cache     Cache
	CacheTTL  time.Duration
	Retention time.Duration
	Locks     *DocumentLocks
	Logger    *log.Logger
}

func NewSideWork(deps SideWorkDeps) *SideWork {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Locks == nil {
		deps.Locks = NewDocumentLocks()
	}
	return &SideWork{
		contents:  deps.Contents,
		versions:  deps.Versions,
		store:     deps.Store,
		cache:     deps.Cache,
		cacheTTL:  deps.CacheTTL,
		retention: deps.Retention,
		locks:     deps.Locks,
		logger:    logging.Component(deps.Logger, "sidework"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register adds every available handler to r.
func (w *SideWork) Register(r JobRegistrar) {
	if w.store != nil {
		r.Register(JobSnapshotArchive, w.archiveSnapshot)
	}
	if w.cache != nil {
		r.Register(JobCacheWarm, w.warmCache)
	}
	r.Register(JobVersionPurge, w.purgeVersions)
}

// SideJobs lists the job types to enqueue after each committed version.
func (w *SideWork) SideJobs() []string {
	var out []string
	if w.store != nil {
		out = append(out, JobSnapshotArchive)
	}
	if w.cache != nil {
		out = append(out, JobCacheWarm)
	}
	return out
}

func (w *SideWork) archiveSnapshot(ctx context.Context, job jobs.Job) (any, error) {
	var p SideJobPayload
	if err := job.Decode(&p); err != nil {
		return nil, backoff.Permanent(err)
	}
	key := model.ContentKey{ContentType: p.ContentType, ContentID: p.ContentID}
	v, err := w.versions.GetVersion(ctx, key, p.VersionNumber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("encode version: %w", err))
	}

	objKey := storage.SnapshotKey(p.ContentType, p.ContentID, p.VersionNumber)
	info, err := w.store.Put(ctx, objKey, bytes.NewReader(body), storage.PutObjectOptions{
		Size:        int64(len(body)),
		ContentType: "application/json",
		Metadata: map[string]string{
			"author-id":      v.AuthorID,
			"version-number": strconv.Itoa(v.VersionNumber),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}
	w.logger.Debug("snapshot_archived", "room", key.Room(), "version", v.VersionNumber, "key", info.Key)
	return map[string]any{"key": info.Key, "size": info.Size}, nil
}

// warmCache repopulates the document entry unless a newer version has
// already superseded the one that triggered the job.
func (w *SideWork) warmCache(ctx context.Context, job jobs.Job) (any, error) {
	var p SideJobPayload
	if err := job.Decode(&p); err != nil {
		return nil, backoff.Permanent(err)
	}
	key := model.ContentKey{ContentType: p.ContentType, ContentID: p.ContentID}
	unlock := w.locks.Lock(key.Room())
	defer unlock()

	active, err := w.versions.GetActiveVersion(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	if active.VersionNumber != p.VersionNumber {
		return map[string]any{"warmed": false}, nil
	}
	doc, err := w.contents.FindByKey(ctx, key)
	if err != nil {
		err = notFound(err, "content")
		if errors.Is(err, ErrNotFound) {
			return map[string]any{"warmed": false}, nil
		}
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	w.cache.Set(ctx, cache.DocumentKey(key.ContentType, key.ContentID), raw, w.cacheTTL)
	return map[string]any{"warmed": true}, nil
}

func (w *SideWork) purgeVersions(ctx context.Context, job jobs.Job) (any, error) {
	retention := w.retention
	if len(job.Payload) > 0 {
		var p PurgePayload
		if err := job.Decode(&p); err != nil {
			return nil, backoff.Permanent(err)
		}
		if p.RetentionDays > 0 {
			retention = time.Duration(p.RetentionDays) * 24 * time.Hour
		}
	}
	if retention <= 0 {
		return map[string]any{"deleted": 0, "skipped": true}, nil
	}
	n, err := w.versions.PurgeVersions(ctx, w.now().Add(-retention))
	if err != nil {
		return nil, err
	}
	w.logger.Info("versions_purged", "deleted", n, "retention", retention.String())
	return map[string]any{"deleted": n}, nil
}
