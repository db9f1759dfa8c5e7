package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmssync/internal/model"
)

func TestDocumentLocks_SerializesSameKey(t *testing.T) {
	k := NewDocumentLocks()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("PageContent:1")
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, k.size())
}

func TestDocumentLocks_DifferentKeysIndependent(t *testing.T) {
	k := NewDocumentLocks()
	unlockA := k.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b waited for a")
	}
	assert.Equal(t, 1, k.size())
}

func TestPendingTracker(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tr := newPendingTracker(time.Minute, func() time.Time { return now })

	p, ok := tr.register(model.PendingUpdate{UpdateID: "u1", AuthorID: "alice"})
	require.True(t, ok)
	assert.Equal(t, model.UpdatePending, p.Status)
	assert.Equal(t, now, p.SubmittedAt)

	_, ok = tr.register(model.PendingUpdate{UpdateID: "u1"})
	assert.False(t, ok, "duplicate id")

	got, ok := tr.resolve("u1", model.UpdateCommitted, "", 4)
	require.True(t, ok)
	assert.Equal(t, model.UpdateCommitted, got.Status)
	assert.Equal(t, 4, got.VersionNumber)

	again, ok := tr.resolve("u1", model.UpdateRolledBack, "late", 0)
	assert.False(t, ok, "terminal updates do not transition")
	assert.Equal(t, model.UpdateCommitted, again.Status)

	_, ok = tr.resolve("missing", model.UpdateRolledBack, "", 0)
	assert.False(t, ok)

	assert.Equal(t, 1, tr.counts()[model.UpdateCommitted])

	// terminal entries survive the retention window, then get swept
	now = now.Add(2 * time.Minute)
	_, ok = tr.register(model.PendingUpdate{UpdateID: "u2"})
	require.True(t, ok)
	_, ok = tr.get("u1")
	assert.False(t, ok)
	_, ok = tr.get("u2")
	assert.True(t, ok)
}
