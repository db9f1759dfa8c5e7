package service

import (
	"sync"
	"time"

	"cmssync/internal/model"
)

// pendingTracker holds optimistic updates in memory. Terminal entries are
// kept for a retention window for debugging and swept on registration.
type pendingTracker struct {
	mu        sync.Mutex
	updates   map[string]*model.PendingUpdate
	retention time.Duration
	now       func() time.Time
}

func newPendingTracker(retention time.Duration, now func() time.Time) *pendingTracker {
	if retention <= 0 {
		retention = time.Minute
	}
	return &pendingTracker{
		updates:   make(map[string]*model.PendingUpdate),
		retention: retention,
		now:       now,
	}
}

// register stores p as pending. It fails if the id is already tracked.
func (t *pendingTracker) register(p model.PendingUpdate) (model.PendingUpdate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked()
	if existing, ok := t.updates[p.UpdateID]; ok {
		return *existing, false
	}
	p.Status = model.UpdatePending
	if p.SubmittedAt.IsZero() {
		p.SubmittedAt = t.now()
	}
	t.updates[p.UpdateID] = &p
	return p, true
}

// resolve moves a pending update to a terminal status. It reports false and
// leaves the record untouched when the update is unknown or already terminal.
func (t *pendingTracker) resolve(id string, status model.UpdateStatus, reason string, versionNumber int) (model.PendingUpdate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.updates[id]
	if !ok {
		return model.PendingUpdate{}, false
	}
	if p.Status.Terminal() {
		return *p, false
	}
	now := t.now()
	p.Status = status
	p.Reason = reason
	p.ResolvedAt = &now
	p.VersionNumber = versionNumber
	return *p, true
}

func (t *pendingTracker) get(id string) (model.PendingUpdate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.updates[id]
	if !ok {
		return model.PendingUpdate{}, false
	}
	return *p, true
}

// counts reports tracked updates by status.
func (t *pendingTracker) counts() map[model.UpdateStatus]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[model.UpdateStatus]int, 3)
	for _, p := range t.updates {
		out[p.Status]++
	}
	return out
}

func (t *pendingTracker) sweepLocked() {
	cutoff := t.now().Add(-t.retention)
	for id, p := range t.updates {
		if p.Status.Terminal() && p.ResolvedAt != nil && p.ResolvedAt.Before(cutoff) {
			delete(t.updates, id)
		}
	}
}
