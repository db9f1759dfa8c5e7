package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cmssync/internal/cache"
	"cmssync/internal/jobs"
	"cmssync/internal/logging"
	"cmssync/internal/model"
	"cmssync/internal/presence"
	"cmssync/internal/repository"
)

var ErrDuplicateUpdate = errors.New("update id already submitted")

// Broadcaster fans committed changes out to document rooms.
type Broadcaster interface {
	BroadcastContentUpdate(ctx context.Context, msg presence.ContentUpdated, exclude presence.Exclude) error
	BroadcastContentDeleted(ctx context.Context, msg presence.ContentDeleted, exclude presence.Exclude) error
	BroadcastVersionCreated(ctx context.Context, msg presence.VersionCreated, exclude presence.Exclude) error
	BroadcastRollback(ctx context.Context, msg presence.UpdateRollback) error
}

// Cache is the read-through cache in front of the content store.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Del(ctx context.Context, keys ...string)
	DelPattern(ctx context.Context, pattern string) (int, error)
}

// JobQueue accepts background work.
type JobQueue interface {
	Enqueue(jobType string, payload any, opts jobs.Options) (string, error)
}

// Recorder counts coordinator outcomes.
type Recorder interface {
	SyncOperation(op, outcome string)
}

// Actor identifies who is making a change. ConnectionID is empty for HTTP callers.
type Actor struct {
	AuthorID     string
	ConnectionID string
}

// exclude keeps an actor's own change from being echoed back to them.
func (a Actor) exclude() presence.Exclude {
	if a.ConnectionID != "" {
		return presence.Exclude{ConnectionID: a.ConnectionID}
	}
	return presence.Exclude{AuthorID: a.AuthorID}
}

// SyncResult is the outcome of a committed write.
type SyncResult struct {
	Content *model.ContentDocument `json:"content"`
	Version *model.Version         `json:"version,omitempty"`
	Changes []model.Change         `json:"changes"`
}

// OptimisticResult reports how an optimistic update was resolved.
type OptimisticResult struct {
	Update model.PendingUpdate `json:"update"`
	Result *SyncResult         `json:"result,omitempty"`
}

// ContentRead is a cached document read.
type ContentRead struct {
	Document    json.RawMessage
	CacheStatus string
}

// SideJobPayload is what every post-commit job receives.
type SideJobPayload struct {
	ContentType   string `json:"contentType"`
	ContentID     string `json:"contentId"`
	VersionNumber int    `json:"versionNumber"`
}

// SyncStats counts tracked optimistic updates.
type SyncStats struct {
	Pending    int `json:"pending"`
	Committed  int `json:"committed"`
	RolledBack int `json:"rolledBack"`
}

// SyncOptions tunes the coordinator.
type SyncOptions struct {
	// ConflictWindow is how recent another author's version must be to reject
	// an optimistic update.
	ConflictWindow   time.Duration
	PendingRetention time.Duration
	CacheTTL         time.Duration
	// SideJobs are enqueued after every committed version.
	SideJobs []string
}

// SyncDeps are the collaborators of the coordinator. Cache, Broadcaster, Jobs
// and Recorder are optional. Locks must be the instance given to SideWork.
type SyncDeps struct {
	Contents    repository.ContentRepository
	Versions    repository.VersionRepository
	Validator   Validator
	Cache       Cache
	Broadcaster Broadcaster
	Jobs        JobQueue
	Recorder    Recorder
	Locks       *DocumentLocks
	Logger      *log.Logger
}

// SyncService coordinates content writes with version history, cache
// invalidation and presence broadcasts.
type SyncService interface {
	// SyncCreate stores a new document and its first version.
	SyncCreate(ctx context.Context, key model.ContentKey, payload map[string]any, actor Actor) (*SyncResult, error)

	// SyncUpdate merges patch into the document and records a version when anything changed.
	SyncUpdate(ctx context.Context, key model.ContentKey, patch map[string]any, actor Actor) (*SyncResult, error)

	// SyncDelete soft-deletes the document and records a terminal version.
	SyncDelete(ctx context.Context, key model.ContentKey, actor Actor) (*model.Version, error)

	// HandleOptimisticUpdate commits or rolls back a client-side edit identified by updateID.
	// A generated id is used when updateID is empty.
	HandleOptimisticUpdate(ctx context.Context, key model.ContentKey, changes []model.Change, actor Actor, updateID string) (*OptimisticResult, error)

	// RollbackUpdate abandons a pending optimistic update at the client's request.
	RollbackUpdate(ctx context.Context, key model.ContentKey, updateID, reason string, actor Actor) (model.PendingUpdate, error)

	// RestoreToVersion makes the payload of version number current again.
	RestoreToVersion(ctx context.Context, key model.ContentKey, number int, actor Actor) (*SyncResult, error)

	// GetContent reads a document through the cache.
	GetContent(ctx context.Context, key model.ContentKey) (*ContentRead, error)

	GetPendingUpdate(updateID string) (model.PendingUpdate, error)
	Stats() SyncStats
}

type syncService struct {
	contents  repository.ContentRepository
	versions  *versionService
	validator Validator
	cache     Cache
	hub       Broadcaster
	jobs      JobQueue
	recorder  Recorder
	logger    *log.Logger

	locks   *DocumentLocks
	pending *pendingTracker
	opts    SyncOptions
	now     func() time.Time
}

// NewSyncService constructs a SyncService.
func NewSyncService(deps SyncDeps, opts SyncOptions) SyncService {
	if opts.ConflictWindow <= 0 {
		opts.ConflictWindow = 5 * time.Second
	}
	if deps.Validator == nil {
		deps.Validator = NewSchemaValidator()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Locks == nil {
		deps.Locks = NewDocumentLocks()
	}
	now := func() time.Time { return time.Now().UTC() }
	return &syncService{
		contents:  deps.Contents,
		versions:  &versionService{contents: deps.Contents, versions: deps.Versions, now: now},
		validator: deps.Validator,
		cache:     deps.Cache,
		hub:       deps.Broadcaster,
		jobs:      deps.Jobs,
		recorder:  deps.Recorder,
		logger:    logging.Component(deps.Logger, "sync"),
		locks:     deps.Locks,
		pending:   newPendingTracker(opts.PendingRetention, now),
		opts:      opts,
		now:       now,
	}
}

func (s *syncService) SyncCreate(ctx context.Context, key model.ContentKey, payload map[string]any, actor Actor) (res *SyncResult, err error) {
	if !key.Valid() {
		return nil, ErrIDRequired
	}
	if actor.AuthorID == "" {
		return nil, ErrAuthorRequired
	}
	ctx, span := startSpan(ctx, "SyncService.SyncCreate", key)
	defer func() { s.finishSpan(span, "create", err) }()

	if err := s.validator.Validate(key.ContentType, payload); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(key.Room())
	defer unlock()

	created, err := s.contents.Create(ctx, &model.ContentDocument{
		ContentType: key.ContentType,
		ContentID:   key.ContentID,
		Payload:     payload,
		UpdatedBy:   actor.AuthorID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%s: %w", key.Room(), ErrAlreadyExists)
		}
		return nil, fmt.Errorf("create content: %w", err)
	}

	changes := CalculateDiff(map[string]any{}, payload, s.now())
	v, err := s.versions.append(ctx, CreateVersionInput{
		Key:      key,
		Payload:  created.Payload,
		Changes:  changes,
		AuthorID: actor.AuthorID,
		Initial:  true,
	})
	if err != nil {
		if delErr := s.contents.SoftDelete(ctx, key, actor.AuthorID, s.now()); delErr != nil {
			return nil, fmt.Errorf("version create failed: %v; content rollback failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("version create failed: %w", err)
	}

	s.invalidate(ctx, key)
	s.publish(ctx, created, v, publication{changes: changes, exclude: actor.exclude()})
	s.enqueueSideJobs(key, v)
	s.logger.Info("content_created", "room", key.Room(), "author_id", actor.AuthorID, "version", v.VersionNumber)
	return &SyncResult{Content: created, Version: v, Changes: changes}, nil
}

func (s *syncService) SyncUpdate(ctx context.Context, key model.ContentKey, patch map[string]any, actor Actor) (res *SyncResult, err error) {
	if !key.Valid() {
		return nil, ErrIDRequired
	}
	if actor.AuthorID == "" {
		return nil, ErrAuthorRequired
	}
	ctx, span := startSpan(ctx, "SyncService.SyncUpdate", key)
	defer func() { s.finishSpan(span, "update", err) }()

	unlock := s.locks.Lock(key.Room())
	defer unlock()

	current, err := s.contents.FindByKey(ctx, key)
	if err != nil {
		return nil, notFound(err, "content")
	}
	next, err := MergePatch(current.Payload, patch)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(key.ContentType, next); err != nil {
		return nil, err
	}

	changes := CalculateDiff(current.Payload, next, s.now())
	if len(changes) == 0 {
		s.logger.Debug("content_unchanged", "room", key.Room(), "author_id", actor.AuthorID)
		return &SyncResult{Content: current, Changes: changes}, nil
	}

	return s.commit(ctx, commitInput{
		current: current,
		next:    next,
		changes: changes,
		version: CreateVersionInput{Key: key, Changes: changes, AuthorID: actor.AuthorID},
		actor:   actor,
		exclude: actor.exclude(),
	})
}

func (s *syncService) SyncDelete(ctx context.Context, key model.ContentKey, actor Actor) (v *model.Version, err error) {
	if !key.Valid() {
		return nil, ErrIDRequired
	}
	if actor.AuthorID == "" {
		return nil, ErrAuthorRequired
	}
	ctx, span := startSpan(ctx, "SyncService.SyncDelete", key)
	defer func() { s.finishSpan(span, "delete", err) }()

	unlock := s.locks.Lock(key.Room())
	defer unlock()

	current, err := s.contents.FindByKey(ctx, key)
	if err != nil {
		return nil, notFound(err, "content")
	}
	at := s.now()
	if err := s.contents.SoftDelete(ctx, key, actor.AuthorID, at); err != nil {
		return nil, fmt.Errorf("delete content: %w", notFound(err, "content"))
	}

	v, err = s.versions.append(ctx, CreateVersionInput{
		Key:      key,
		Payload:  current.Payload,
		Changes:  []model.Change{{Field: "deleted", OldValue: false, NewValue: true, Timestamp: at}},
		AuthorID: actor.AuthorID,
		Metadata: map[string]any{"deleted": true},
	})
	if err != nil {
		// Create revives a soft-deleted key.
		if _, revErr := s.contents.Create(ctx, current); revErr != nil {
			s.invalidate(ctx, key)
			return nil, fmt.Errorf("version create failed: %v; content restore failed: %v", err, revErr)
		}
		s.invalidate(ctx, key)
		return nil, fmt.Errorf("version create failed: %w", err)
	}

	s.invalidate(ctx, key)
	if s.hub != nil {
		msg := presence.ContentDeleted{ContentKey: key, DeletedBy: actor.AuthorID, VersionNumber: v.VersionNumber}
		if err := s.hub.BroadcastContentDeleted(ctx, msg, actor.exclude()); err != nil {
			s.logger.Warn("broadcast_failed", "event", presence.EventContentDeleted, "room", key.Room(), "err", err)
		}
	}
	s.enqueueSideJobs(key, v)
	s.logger.Info("content_deleted", "room", key.Room(), "author_id", actor.AuthorID, "version", v.VersionNumber)
	return v, nil
}

func (s *syncService) HandleOptimisticUpdate(ctx context.Context, key model.ContentKey, changes []model.Change, actor Actor, updateID string) (res *OptimisticResult, err error) {
	if !key.Valid() {
		return nil, ErrIDRequired
	}
	if actor.AuthorID == "" {
		return nil, ErrAuthorRequired
	}
	if updateID == "" {
		updateID = uuid.NewString()
	}
	ctx, span := startSpan(ctx, "SyncService.HandleOptimisticUpdate", key)
	span.SetAttributes(attribute.String("update.id", updateID))
	defer func() { s.finishSpan(span, "optimistic", err) }()

	p, ok := s.pending.register(model.PendingUpdate{
		UpdateID:    updateID,
		ContentType: key.ContentType,
		ContentID:   key.ContentID,
		Changes:     changes,
		AuthorID:    actor.AuthorID,
	})
	if !ok {
		return &OptimisticResult{Update: p}, fmt.Errorf("update %s: %w", updateID, ErrDuplicateUpdate)
	}

	unlock := s.locks.Lock(key.Room())
	defer unlock()

	fail := func(cause error) (*OptimisticResult, error) {
		return &OptimisticResult{Update: s.rollback(ctx, p, cause.Error())}, cause
	}

	current, err := s.contents.FindByKey(ctx, key)
	if err != nil {
		return fail(notFound(err, "content"))
	}
	next, err := ApplyChanges(current.Payload, changes)
	if err != nil {
		return fail(err)
	}
	if err := s.validator.Validate(key.ContentType, next); err != nil {
		return fail(err)
	}
	if err := s.checkConflict(ctx, key, actor.AuthorID); err != nil {
		return fail(err)
	}

	diff := CalculateDiff(current.Payload, next, s.now())
	if len(diff) == 0 {
		number := 0
		if active, err := s.versions.versions.FindActive(ctx, key); err == nil {
			number = active.VersionNumber
		}
		resolved := s.resolve(p, number)
		s.publish(ctx, current, nil, publication{changes: diff, updateID: updateID})
		return &OptimisticResult{Update: resolved, Result: &SyncResult{Content: current, Changes: diff}}, nil
	}

	committed, err := s.commit(ctx, commitInput{
		current:  current,
		next:     next,
		changes:  diff,
		version:  CreateVersionInput{Key: key, Changes: diff, AuthorID: actor.AuthorID, Metadata: map[string]any{"updateId": updateID}},
		actor:    actor,
		exclude:  presence.Exclude{},
		updateID: updateID,
	})
	if err != nil {
		return fail(err)
	}
	return &OptimisticResult{Update: s.resolve(p, committed.Version.VersionNumber), Result: committed}, nil
}

func (s *syncService) RollbackUpdate(ctx context.Context, key model.ContentKey, updateID, reason string, actor Actor) (model.PendingUpdate, error) {
	p, ok := s.pending.get(updateID)
	if !ok || p.ContentType != key.ContentType || p.ContentID != key.ContentID {
		return model.PendingUpdate{}, fmt.Errorf("update %s: %w", updateID, ErrUpdateNotFound)
	}
	if actor.AuthorID != "" && actor.AuthorID != p.AuthorID {
		return p, fmt.Errorf("update %s belongs to another author: %w", updateID, ErrUpdateNotFound)
	}
	if p.Status.Terminal() {
		s.logger.Warn("update_already_resolved", "update_id", updateID, "status", p.Status)
		return p, nil
	}
	if reason == "" {
		reason = "cancelled by client"
	}
	return s.rollback(ctx, p, reason), nil
}

func (s *syncService) RestoreToVersion(ctx context.Context, key model.ContentKey, number int, actor Actor) (res *SyncResult, err error) {
	if !key.Valid() {
		return nil, ErrIDRequired
	}
	if actor.AuthorID == "" {
		return nil, ErrAuthorRequired
	}
	ctx, span := startSpan(ctx, "SyncService.RestoreToVersion", key)
	span.SetAttributes(attribute.Int("version.number", number))
	defer func() { s.finishSpan(span, "restore", err) }()

	unlock := s.locks.Lock(key.Room())
	defer unlock()

	current, err := s.contents.FindByKey(ctx, key)
	if err != nil {
		return nil, notFound(err, "content")
	}
	target, err := s.versions.GetVersion(ctx, key, number)
	if err != nil {
		return nil, err
	}
	next, err := clonePayload(target.Payload)
	if err != nil {
		return nil, err
	}

	return s.commit(ctx, commitInput{
		current: current,
		next:    next,
		changes: CalculateDiff(current.Payload, next, s.now()),
		version: restoreInput(target, actor.AuthorID, s.now()),
		actor:   actor,
		exclude: actor.exclude(),
		restore: true,
	})
}

func (s *syncService) GetContent(ctx context.Context, key model.ContentKey) (*ContentRead, error) {
	if !key.Valid() {
		return nil, ErrIDRequired
	}
	ckey := cache.DocumentKey(key.ContentType, key.ContentID)
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, ckey); ok {
			return &ContentRead{Document: raw, CacheStatus: cache.Result{Hit: true}.Status()}, nil
		}
	}

	// Load and fill under the document lock so a commit cannot invalidate
	// between the read and the Set.
	unlock := s.locks.Lock(key.Room())
	defer unlock()

	doc, err := s.contents.FindByKey(ctx, key)
	if err != nil {
		return nil, notFound(err, "content")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	if s.cache != nil {
		s.cache.Set(ctx, ckey, raw, s.opts.CacheTTL)
	}
	return &ContentRead{Document: raw, CacheStatus: cache.Result{}.Status()}, nil
}

func (s *syncService) GetPendingUpdate(updateID string) (model.PendingUpdate, error) {
	p, ok := s.pending.get(updateID)
	if !ok {
		return model.PendingUpdate{}, fmt.Errorf("update %s: %w", updateID, ErrUpdateNotFound)
	}
	return p, nil
}

func (s *syncService) Stats() SyncStats {
	c := s.pending.counts()
	return SyncStats{
		Pending:    c[model.UpdatePending],
		Committed:  c[model.UpdateCommitted],
		RolledBack: c[model.UpdateRolledBack],
	}
}

type commitInput struct {
	current  *model.ContentDocument
	next     map[string]any
	changes  []model.Change
	version  CreateVersionInput
	actor    Actor
	exclude  presence.Exclude
	updateID string
	restore  bool
}

// commit writes the content, appends the version and publishes the result.
// A failed append puts the previous payload back. Callers hold the document lock.
func (s *syncService) commit(ctx context.Context, in commitInput) (*SyncResult, error) {
	key := in.current.Key()
	written, err := s.contents.Update(ctx, &model.ContentDocument{
		ContentType: key.ContentType,
		ContentID:   key.ContentID,
		Payload:     in.next,
		UpdatedBy:   in.actor.AuthorID,
	})
	if err != nil {
		return nil, fmt.Errorf("write content: %w", notFound(err, "content"))
	}

	vin := in.version
	vin.Payload = written.Payload
	v, err := s.versions.append(ctx, vin)
	if err != nil {
		_, rbErr := s.contents.Update(ctx, &model.ContentDocument{
			ContentType: key.ContentType,
			ContentID:   key.ContentID,
			Payload:     in.current.Payload,
			UpdatedBy:   in.current.UpdatedBy,
		})
		s.invalidate(ctx, key)
		if rbErr != nil {
			s.logger.Error("content_rollback_failed", "room", key.Room(), "err", rbErr)
			return nil, fmt.Errorf("version create failed: %v; content rollback failed: %v", err, rbErr)
		}
		s.logger.Warn("content_rolled_back", "room", key.Room(), "err", err)
		return nil, fmt.Errorf("version create failed: %w", err)
	}

	s.invalidate(ctx, key)
	s.publish(ctx, written, v, publication{
		changes:  in.changes,
		exclude:  in.exclude,
		updateID: in.updateID,
		restored: in.restore,
	})
	s.enqueueSideJobs(key, v)
	s.logger.Info("content_synced",
		"room", key.Room(),
		"author_id", in.actor.AuthorID,
		"version", v.VersionNumber,
		"changes", len(in.changes),
		"update_id", in.updateID,
	)
	return &SyncResult{Content: written, Version: v, Changes: in.changes}, nil
}

type publication struct {
	changes  []model.Change
	exclude  presence.Exclude
	updateID string
	restored bool
}

// publish broadcasts content-updated and, when a version was written,
// version-created. Broadcast failures never fail the write.
func (s *syncService) publish(ctx context.Context, doc *model.ContentDocument, v *model.Version, p publication) {
	if s.hub == nil {
		return
	}
	key := doc.Key()
	msg := presence.ContentUpdated{
		ContentKey: key,
		Content:    doc.Payload,
		Changes:    p.changes,
		UpdatedBy:  doc.UpdatedBy,
		UpdateID:   p.updateID,
	}
	if v != nil {
		msg.VersionNumber = v.VersionNumber
	}
	if err := s.hub.BroadcastContentUpdate(ctx, msg, p.exclude); err != nil {
		s.logger.Warn("broadcast_failed", "event", presence.EventContentUpdated, "room", key.Room(), "err", err)
	}
	if v == nil {
		return
	}
	if err := s.hub.BroadcastVersionCreated(ctx, presence.VersionCreated{
		ContentKey:    key,
		VersionNumber: v.VersionNumber,
		AuthorID:      v.AuthorID,
		CreatedAt:     v.CreatedAt,
		Restored:      p.restored,
	}, p.exclude); err != nil {
		s.logger.Warn("broadcast_failed", "event", presence.EventVersionCreated, "room", key.Room(), "err", err)
	}
}

// checkConflict rejects an update when another author committed a version
// within the conflict window.
func (s *syncService) checkConflict(ctx context.Context, key model.ContentKey, authorID string) error {
	active, err := s.versions.versions.FindActive(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("conflict check: %w", err)
	}
	if active.AuthorID == authorID {
		return nil
	}
	if s.now().Sub(active.CreatedAt) < s.opts.ConflictWindow {
		return &ConflictError{
			VersionNumber: active.VersionNumber,
			AuthorID:      active.AuthorID,
			CreatedAt:     active.CreatedAt,
		}
	}
	return nil
}

func (s *syncService) resolve(p model.PendingUpdate, versionNumber int) model.PendingUpdate {
	resolved, ok := s.pending.resolve(p.UpdateID, model.UpdateCommitted, "", versionNumber)
	if !ok {
		s.logger.Warn("update_already_resolved", "update_id", p.UpdateID, "status", resolved.Status)
	}
	return resolved
}

// rollback marks p rolled back and tells every member of the room, the author included.
func (s *syncService) rollback(ctx context.Context, p model.PendingUpdate, reason string) model.PendingUpdate {
	resolved, ok := s.pending.resolve(p.UpdateID, model.UpdateRolledBack, reason, 0)
	if !ok {
		s.logger.Warn("update_already_resolved", "update_id", p.UpdateID, "status", resolved.Status)
		return resolved
	}
	s.logger.Info("update_rolled_back", "update_id", p.UpdateID, "author_id", p.AuthorID, "reason", reason)
	if s.hub == nil {
		return resolved
	}
	key := model.ContentKey{ContentType: p.ContentType, ContentID: p.ContentID}
	if err := s.hub.BroadcastRollback(ctx, presence.UpdateRollback{
		ContentKey: key,
		UpdateID:   p.UpdateID,
		Reason:     reason,
		AuthorID:   p.AuthorID,
	}); err != nil {
		s.logger.Warn("broadcast_failed", "event", presence.EventUpdateRollback, "room", key.Room(), "err", err)
	}
	return resolved
}

// invalidate drops the document and everything derived from it.
func (s *syncService) invalidate(ctx context.Context, key model.ContentKey) {
	if s.cache == nil {
		return
	}
	s.cache.Del(ctx, cache.DocumentKey(key.ContentType, key.ContentID))
	for _, pattern := range []string{
		cache.DocumentPattern(key.ContentType, key.ContentID),
		cache.CollectionPattern(key.ContentType),
	} {
		if _, err := s.cache.DelPattern(ctx, pattern); err != nil {
			s.logger.Warn("cache_invalidate_failed", "pattern", pattern, "err", err)
		}
	}
}

func (s *syncService) enqueueSideJobs(key model.ContentKey, v *model.Version) {
	if s.jobs == nil {
		return
	}
	payload := SideJobPayload{ContentType: key.ContentType, ContentID: key.ContentID, VersionNumber: v.VersionNumber}
	for _, jobType := range s.opts.SideJobs {
		if _, err := s.jobs.Enqueue(jobType, payload, jobs.Options{Priority: jobs.PriorityLow}); err != nil {
			s.logger.Warn("side_job_enqueue_failed", "type", jobType, "room", key.Room(), "err", err)
		}
	}
}

func (s *syncService) finishSpan(span trace.Span, op string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	if s.recorder != nil {
		s.recorder.SyncOperation(op, outcome(err))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConflictDetected):
		return "conflict"
	case errors.Is(err, ErrValidationFailed), errors.Is(err, ErrIDRequired), errors.Is(err, ErrAuthorRequired):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
