package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"cmssync/internal/logging"
)

// Stats is a point-in-time copy of the Manager counters.
type Stats struct {
	Mode            string `json:"mode"`
	Hits            uint64 `json:"hits"`
	Misses          uint64 `json:"misses"`
	Sets            uint64 `json:"sets"`
	Deletes         uint64 `json:"deletes"`
	Errors          uint64 `json:"errors"`
	SharedAvailable bool   `json:"sharedAvailable"`
	// PendingDeletes counts shared tier deletes still waiting for a retry.
	PendingDeletes  int    `json:"pendingDeletes"`
}

// Result is returned by GetOrSet.
type Result struct {
	Value json.RawMessage
	Hit   bool
}

// Status renders the cache observability header value.
func (r Result) Status() string {
	if r.Hit {
		return "HIT"
	}
	return "MISS"
}

// retryEvery bounds how often Get retries failed shared tier deletes.
const retryEvery = time.Second

// Manager is the cache facade used by the services.
type Manager struct {
	local      Backend
	shared     Backend // nil in local-only mode
	defaultTTL time.Duration
	logger     *log.Logger
	now        func() time.Time

	pending *pendingDeletes
	maxTTL  atomic.Int64 // longest ttl ever written, in nanoseconds

	hits    atomic.Uint64
	misses  atomic.Uint64
	sets    atomic.Uint64
	deletes atomic.Uint64
	errs    atomic.Uint64
}

// NewLocalOnly builds a Manager backed only by the local tier.
func NewLocalOnly(local Backend, defaultTTL time.Duration, logger *log.Logger) *Manager {
	m := &Manager{
		local:      local,
		defaultTTL: defaultTTL,
		logger:     logging.Component(logger, "cache"),
		now:        time.Now,
		pending:    newPendingDeletes(),
	}
	m.maxTTL.Store(int64(defaultTTL))
	return m
}

// NewTiered builds a Manager that consults shared before local.
func NewTiered(local, shared Backend, defaultTTL time.Duration, logger *log.Logger) *Manager {
	m := NewLocalOnly(local, defaultTTL, logger)
	m.shared = shared
	return m
}

func (m *Manager) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	for {
		cur := m.maxTTL.Load()
		if int64(ttl) <= cur || m.maxTTL.CompareAndSwap(cur, int64(ttl)) {
			return ttl
		}
	}
}

// staleUntil is when every shared value written so far has expired.
func (m *Manager) staleUntil() time.Time {
	return m.now().Add(time.Duration(m.maxTTL.Load()))
}

func (m *Manager) failed(b Backend, op, key string, err error) {
	m.errs.Add(1)
	m.logger.Debug("cache_backend_error", "op", op, "key", key, "backend", b.Name(), "err", err)
}

// Get looks up key in the shared tier first, then the local tier. The shared
// tier is skipped for keys whose delete has not reached it yet.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool) {
	if m.shared != nil && m.pending.covers(key, m.now()) {
		m.retryDeletes(ctx)
	}
	if m.shared != nil && !m.pending.covers(key, m.now()) {
		v, ok, err := m.shared.Get(ctx, key)
		switch {
		case err != nil:
			m.failed(m.shared, "get", key, err)
		case ok:
			m.hits.Add(1)
			return v, true
		}
	}
	v, ok, err := m.local.Get(ctx, key)
	if err != nil {
		m.errs.Add(1)
	}
	if ok {
		m.hits.Add(1)
		return v, true
	}
	m.misses.Add(1)
	return nil, false
}

// Set stores value in both tiers. Shared tier failures are counted, not returned.
func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ttl = m.ttl(ttl)
	if m.shared != nil {
		if err := m.shared.Set(ctx, key, value, ttl); err != nil {
			m.failed(m.shared, "set", key, err)
		} else {
			m.pending.forgetKeys(key)
		}
	}
	if err := m.local.Set(ctx, key, value, ttl); err != nil {
		m.errs.Add(1)
	}
	m.sets.Add(1)
}

// Del removes keys from both tiers.
func (m *Manager) Del(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if m.shared != nil {
		if _, err := m.shared.Del(ctx, keys...); err != nil {
			m.failed(m.shared, "del", keys[0], err)
			m.pending.addKeys(m.staleUntil(), keys...)
		} else {
			m.pending.forgetKeys(keys...)
		}
	}
	if _, err := m.local.Del(ctx, keys...); err != nil {
		m.errs.Add(1)
	}
	m.deletes.Add(uint64(len(keys)))
}

// DelPattern removes every key matching a glob from both tiers and returns
// how many distinct keys were removed. Only a malformed pattern is an error.
func (m *Manager) DelPattern(ctx context.Context, pattern string) (int, error) {
	if !validPattern(pattern) {
		return 0, fmt.Errorf("invalid cache pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	removed := make(map[string]struct{})
	for _, b := range m.backends() {
		matched, err := m.deleteMatching(ctx, b, pattern)
		if err != nil {
			m.failed(b, "del_pattern", pattern, err)
			if b == m.shared {
				m.pending.addPattern(pattern, m.staleUntil())
			}
			continue
		}
		for _, k := range matched {
			removed[k] = struct{}{}
		}
	}
	m.deletes.Add(uint64(len(removed)))
	return len(removed), nil
}

// deleteMatching removes the keys of b matching pattern and returns them.
func (m *Manager) deleteMatching(ctx context.Context, b Backend, pattern string) ([]string, error) {
	candidates, err := b.Keys(ctx, literalPrefix(pattern))
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, k := range candidates {
		if globMatch(pattern, k) {
			matched = append(matched, k)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}
	if _, err := b.Del(ctx, matched...); err != nil {
		return nil, err
	}
	return matched, nil
}

// retryDeletes replays failed shared tier deletes, at most once per retryEvery.
func (m *Manager) retryDeletes(ctx context.Context) {
	keys, patterns, ok := m.pending.due(m.now(), retryEvery)
	if !ok {
		return
	}
	if len(keys) > 0 {
		if _, err := m.shared.Del(ctx, keys...); err != nil {
			m.failed(m.shared, "del_retry", keys[0], err)
			return
		}
		m.pending.forgetKeys(keys...)
	}
	for _, pattern := range patterns {
		if _, err := m.deleteMatching(ctx, m.shared, pattern); err != nil {
			m.failed(m.shared, "del_retry", pattern, err)
			return
		}
		m.pending.forgetPattern(pattern)
	}
	m.logger.Debug("cache_deletes_replayed", "keys", len(keys), "patterns", len(patterns))
}

func (m *Manager) backends() []Backend {
	if m.shared == nil {
		return []Backend{m.local}
	}
	return []Backend{m.shared, m.local}
}

// GetOrSet returns the cached JSON for key, or computes, caches and returns it.
// A compute error is returned as is; caching problems never are.
func (m *Manager) GetOrSet(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (any, error)) (Result, error) {
	if v, ok := m.Get(ctx, key); ok {
		return Result{Value: v, Hit: true}, nil
	}
	value, err := compute(ctx)
	if err != nil {
		return Result{}, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return Result{}, fmt.Errorf("encode cache value: %w", err)
	}
	m.Set(ctx, key, raw, ttl)
	return Result{Value: raw}, nil
}

// Stats snapshots the counters.
func (m *Manager) Stats() Stats {
	s := Stats{
		Mode:    "local",
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Sets:    m.sets.Load(),
		Deletes: m.deletes.Load(),
		Errors:  m.errs.Load(),

		PendingDeletes: m.pending.len(),
	}
	if m.shared != nil {
		s.Mode = "tiered"
		s.SharedAvailable = true
		if r, ok := m.shared.(interface{ Available() bool }); ok {
			s.SharedAvailable = r.Available()
		}
	}
	return s
}
