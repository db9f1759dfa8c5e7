package cache

import (
	"sync"
	"time"
)

// pendingDeletes remembers shared tier deletes that failed. Until a retry
// lands, keys they cover bypass the shared tier, so a value it failed to
// drop is never served. Entries expire once any value they could hide has
// expired on its own.
type pendingDeletes struct {
	mu       sync.Mutex
	keys     map[string]time.Time
	patterns map[string]time.Time
	lastTry  time.Time
}

func newPendingDeletes() *pendingDeletes {
	return &pendingDeletes{
		keys:     make(map[string]time.Time),
		patterns: make(map[string]time.Time),
	}
}

func (p *pendingDeletes) addKeys(until time.Time, keys ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		p.keys[k] = until
	}
}

func (p *pendingDeletes) addPattern(pattern string, until time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.patterns[pattern] = until
}

// covers reports whether key may still be stale in the shared tier.
func (p *pendingDeletes) covers(key string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if until, ok := p.keys[key]; ok {
		if now.Before(until) {
			return true
		}
		delete(p.keys, key)
	}
	for pattern, until := range p.patterns {
		if !now.Before(until) {
			delete(p.patterns, pattern)
			continue
		}
		if globMatch(pattern, key) {
			return true
		}
	}
	return false
}

func (p *pendingDeletes) forgetKeys(keys ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		delete(p.keys, k)
	}
}

func (p *pendingDeletes) forgetPattern(pattern string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.patterns, pattern)
}

// due returns the outstanding deletes when at least every has passed since
// the previous retry, and records this one.
func (p *pendingDeletes) due(now time.Time, every time.Duration) (keys, patterns []string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 && len(p.patterns) == 0 {
		return nil, nil, false
	}
	if !p.lastTry.IsZero() && now.Sub(p.lastTry) < every {
		return nil, nil, false
	}
	p.lastTry = now
	for k := range p.keys {
		keys = append(keys, k)
	}
	for pattern := range p.patterns {
		patterns = append(patterns, pattern)
	}
	return keys, patterns, true
}

func (p *pendingDeletes) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys) + len(p.patterns)
}
