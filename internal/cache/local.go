package cache

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type localEntry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

func (e localEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// LocalBackend is the in-process tier: a size-bounded LRU with per-entry expiry.
type LocalBackend struct {
	entries *lru.Cache[string, localEntry]
	now     func() time.Time
}

var _ Backend = (*LocalBackend)(nil)

// NewLocalBackend creates a local tier holding at most size entries.
func NewLocalBackend(size int) (*LocalBackend, error) {
	if size <= 0 {
		size = 1024
	}
	entries, err := lru.New[string, localEntry](size)
	if err != nil {
		return nil, err
	}
	return &LocalBackend{entries: entries, now: time.Now}, nil
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := b.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if e.expired(b.now()) {
		b.entries.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (b *LocalBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := localEntry{value: value}
	if ttl > 0 {
		e.expires = b.now().Add(ttl)
	}
	b.entries.Add(key, e)
	return nil
}

func (b *LocalBackend) Del(_ context.Context, keys ...string) (int, error) {
	n := 0
	for _, k := range keys {
		if b.entries.Remove(k) {
			n++
		}
	}
	return n, nil
}

// Keys scans the whole LRU; key counts are bounded by its size.
func (b *LocalBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	now := b.now()
	var out []string
	for _, k := range b.entries.Keys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if e, ok := b.entries.Peek(k); ok && !e.expired(now) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Len reports the number of entries, expired ones included.
func (b *LocalBackend) Len() int { return b.entries.Len() }
