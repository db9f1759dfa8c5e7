// Package cache implements the two-tier cache used for document reads.
//
// A Backend is one tier. The Manager layers a shared tier (Redis) over a local
// tier (in-process LRU) and exposes the same contract whether or not the shared
// tier is configured or reachable.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrBackendUnavailable reports that a tier could not serve a request.
// The Manager absorbs it; callers of Manager never see it.
var ErrBackendUnavailable = errors.New("cache backend unavailable")

// Backend is a single cache tier.
type Backend interface {
	// Get returns the stored bytes; ok is false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int, error)
	// Keys lists live keys starting with prefix. Glob filtering is done by the Manager.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Name() string
}

// literalPrefix returns the part of a glob before its first meta character.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[{\`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// Keys are flat strings, as in Redis MATCH: "*" and "?" also match "/".
// doublestar treats "/" as a separator, so it is folded away before matching.
const foldedSeparator = "\x00"

func foldSeparators(s string) string {
	return strings.ReplaceAll(s, "/", foldedSeparator)
}

func validPattern(pattern string) bool {
	return doublestar.ValidatePattern(foldSeparators(pattern))
}

func globMatch(pattern, key string) bool {
	return doublestar.MatchUnvalidated(foldSeparators(pattern), foldSeparators(key))
}
