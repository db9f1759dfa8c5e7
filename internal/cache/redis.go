package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// RedisOptions configures the shared tier.
type RedisOptions struct {
	// OpTimeout bounds every call so a slow server degrades to a miss quickly.
	OpTimeout time.Duration
	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration
	// ScanCount is the COUNT hint passed to SCAN.
	ScanCount int64
}

// RedisBackend is the shared tier. Every failure, including an open breaker,
// is reported as ErrBackendUnavailable.
type RedisBackend struct {
	client  redis.UniversalClient
	breaker *gobreaker.CircuitBreaker
	opts    RedisOptions
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend wraps client with a circuit breaker.
func NewRedisBackend(client redis.UniversalClient, opts RedisOptions, logger *log.Logger) *RedisBackend {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 250 * time.Millisecond
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if opts.ScanCount <= 0 {
		opts.ScanCount = 200
	}
	settings := gobreaker.Settings{
		Name:        "cache-redis",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.Warn("circuit_breaker_state", "breaker", name, "from", from.String(), "to", to.String())
			}
		},
	}
	return &RedisBackend{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		opts:    opts,
	}
}

func (b *RedisBackend) Name() string { return "redis" }

// Available reports whether the breaker currently lets calls through.
func (b *RedisBackend) Available() bool {
	return b.breaker.State() != gobreaker.StateOpen
}

func (b *RedisBackend) do(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.OpTimeout)
	defer cancel()
	v, err := b.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return v, nil
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.do(ctx, func(ctx context.Context) (any, error) {
		val, err := b.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			// A miss is not a failure and must not trip the breaker.
			return nil, nil
		}
		return val, err
	})
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		return nil, false, nil
	}
	return v.([]byte), true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.do(ctx, func(ctx context.Context) (any, error) {
		return nil, b.client.Set(ctx, key, value, ttl).Err()
	})
	return err
}

func (b *RedisBackend) Del(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	v, err := b.do(ctx, func(ctx context.Context) (any, error) {
		return b.client.Del(ctx, keys...).Result()
	})
	if err != nil {
		return 0, err
	}
	return int(v.(int64)), nil
}

// Keys walks the keyspace with SCAN MATCH prefix*.
func (b *RedisBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	v, err := b.do(ctx, func(ctx context.Context) (any, error) {
		var out []string
		iter := b.client.Scan(ctx, 0, escapeMatch(prefix)+"*", b.opts.ScanCount).Iterator()
		for iter.Next(ctx) {
			out = append(out, iter.Val())
		}
		return out, iter.Err()
	})
	if err != nil {
		return nil, err
	}
	keys, _ := v.([]string)
	return keys, nil
}

var matchEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeMatch(s string) string {
	return matchEscaper.Replace(s)
}
