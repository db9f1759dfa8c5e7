package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmssync/internal/logging"
)

func newLocal(t *testing.T) *LocalBackend {
	t.Helper()
	b, err := NewLocalBackend(128)
	require.NoError(t, err)
	return b
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisBackend) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisBackend(client, RedisOptions{OpTimeout: time.Second}, logging.Discard())
}

func managers(t *testing.T) map[string]*Manager {
	_, shared := newRedis(t)
	return map[string]*Manager{
		"local-only": NewLocalOnly(newLocal(t), time.Minute, logging.Discard()),
		"tiered":     NewTiered(newLocal(t), shared, time.Minute, logging.Discard()),
	}
}

func TestManager_SetGetDel(t *testing.T) {
	ctx := context.Background()
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			m.Set(ctx, "page:1", []byte(`{"v":1}`), time.Minute)

			got, ok := m.Get(ctx, "page:1")
			require.True(t, ok)
			assert.JSONEq(t, `{"v":1}`, string(got))

			m.Del(ctx, "page:1")
			_, ok = m.Get(ctx, "page:1")
			assert.False(t, ok)

			st := m.Stats()
			assert.Equal(t, uint64(1), st.Hits)
			assert.Equal(t, uint64(1), st.Misses)
			assert.Equal(t, uint64(1), st.Sets)
			assert.Equal(t, uint64(1), st.Deletes)
		})
	}
}

func TestManager_DelPattern(t *testing.T) {
	ctx := context.Background()
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"page:1", "page:2", "page:3:history", "pages:1", "blog:page:1"} {
				m.Set(ctx, k, []byte(`1`), time.Minute)
			}

			n, err := m.DelPattern(ctx, "page:*")
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			for _, k := range []string{"page:1", "page:2", "page:3:history"} {
				_, ok := m.Get(ctx, k)
				assert.False(t, ok, k)
			}
			for _, k := range []string{"pages:1", "blog:page:1"} {
				_, ok := m.Get(ctx, k)
				assert.True(t, ok, k)
			}
		})
	}
}

func TestManager_DelPatternInvalid(t *testing.T) {
	m := NewLocalOnly(newLocal(t), time.Minute, logging.Discard())
	_, err := m.DelPattern(context.Background(), "page:[")
	assert.Error(t, err)
}

func TestManager_DocumentInvalidation(t *testing.T) {
	ctx := context.Background()
	m := NewLocalOnly(newLocal(t), time.Minute, logging.Discard())

	m.Set(ctx, DocumentKey("PageContent", "12"), []byte(`1`), 0)
	m.Set(ctx, DocumentKey("PageContent", "123"), []byte(`1`), 0)
	m.Set(ctx, DocumentKey("PageContent", "12")+":history:1", []byte(`[]`), 0)

	n, err := m.DelPattern(ctx, DocumentPattern("PageContent", "12"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := m.Get(ctx, DocumentKey("PageContent", "123"))
	assert.True(t, ok, "sibling document must survive")
}

func TestManager_SharedOutageFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	mr, shared := newRedis(t)
	m := NewTiered(newLocal(t), shared, time.Minute, logging.Discard())

	m.Set(ctx, "page:1", []byte(`"a"`), time.Minute)
	mr.Close()

	got, ok := m.Get(ctx, "page:1")
	require.True(t, ok)
	assert.Equal(t, `"a"`, string(got))

	m.Set(ctx, "page:2", []byte(`"b"`), time.Minute)
	got, ok = m.Get(ctx, "page:2")
	require.True(t, ok)
	assert.Equal(t, `"b"`, string(got))

	n, err := m.DelPattern(ctx, "page:*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.GreaterOrEqual(t, m.Stats().Errors, uint64(3))
}

func TestManager_DelDuringSharedErrorIsNotServedStale(t *testing.T) {
	ctx := context.Background()
	mr, shared := newRedis(t)
	m := NewTiered(newLocal(t), shared, time.Minute, logging.Discard())
	key := DocumentKey("PageContent", "1")

	m.Set(ctx, key, []byte(`"v1"`), time.Minute)
	mr.SetError("LOADING Redis is loading the dataset in memory")
	m.Del(ctx, key)
	assert.Equal(t, 1, m.Stats().PendingDeletes)
	mr.SetError("")

	_, ok := m.Get(ctx, key)
	assert.False(t, ok, "invalidated value served after the shared tier recovered")
	assert.False(t, mr.Exists(key), "failed delete replayed on recovery")
	assert.Zero(t, m.Stats().PendingDeletes)

	m.Set(ctx, key, []byte(`"v2"`), time.Minute)
	got, ok := m.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, `"v2"`, string(got))
}

func TestManager_DelPatternDuringSharedErrorRetriesLater(t *testing.T) {
	ctx := context.Background()
	mr, shared := newRedis(t)
	m := NewTiered(newLocal(t), shared, time.Minute, logging.Discard())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	doc := DocumentKey("PageContent", "1")
	m.Set(ctx, doc, []byte(`"doc"`), time.Minute)
	m.Set(ctx, doc+":history:1", []byte(`[]`), time.Minute)
	m.Set(ctx, DocumentKey("PageContent", "2"), []byte(`"other"`), time.Minute)

	mr.SetError("LOADING")
	n, err := m.DelPattern(ctx, doc+"*")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "local tier still invalidated")

	_, ok := m.Get(ctx, doc)
	assert.False(t, ok)

	mr.SetError("")
	_, ok = m.Get(ctx, doc+":history:1")
	assert.False(t, ok)
	assert.True(t, mr.Exists(doc), "retry waits for its interval")
	assert.Equal(t, 1, m.Stats().PendingDeletes)

	now = now.Add(2 * retryEvery)
	_, ok = m.Get(ctx, doc)
	assert.False(t, ok)
	assert.False(t, mr.Exists(doc))
	assert.False(t, mr.Exists(doc+":history:1"))
	assert.True(t, mr.Exists(DocumentKey("PageContent", "2")))
	assert.Zero(t, m.Stats().PendingDeletes)
}

func TestManager_PendingDeleteExpires(t *testing.T) {
	ctx := context.Background()
	mr, shared := newRedis(t)
	m := NewTiered(newLocal(t), shared, time.Minute, logging.Discard())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Set(ctx, "page:1", []byte(`1`), 10*time.Minute)
	mr.SetError("LOADING")
	m.Del(ctx, "page:1")

	assert.True(t, m.pending.covers("page:1", now.Add(9*time.Minute)), "covers the longest ttl written")
	assert.False(t, m.pending.covers("page:1", now.Add(11*time.Minute)))
	assert.Zero(t, m.pending.len())
}

func TestManager_DelPatternSpansSlashes(t *testing.T) {
	ctx := context.Background()
	for name, m := range managers(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"page:a/b", "page:a/b/c", "page:x", "pages/a"} {
				m.Set(ctx, k, []byte(`1`), time.Minute)
			}

			n, err := m.DelPattern(ctx, "page:*")
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			_, ok := m.Get(ctx, "pages/a")
			assert.True(t, ok)
		})
	}
}

func TestGlobMatch(t *testing.T) {
	assert.True(t, globMatch("page:*", "page:a/b"))
	assert.True(t, globMatch("page:a/*", "page:a/b/c"))
	assert.True(t, globMatch("page:?", "page:/"))
	assert.True(t, globMatch("page:{1,2}", "page:2"))
	assert.False(t, globMatch("page:*", "pages:1"))
	assert.False(t, validPattern("page:["))
}

func TestManager_SharedHitSkipsLocal(t *testing.T) {
	ctx := context.Background()
	mr, shared := newRedis(t)
	local := newLocal(t)
	m := NewTiered(local, shared, time.Minute, logging.Discard())

	require.NoError(t, mr.Set("page:9", `"remote"`))

	got, ok := m.Get(ctx, "page:9")
	require.True(t, ok)
	assert.Equal(t, `"remote"`, string(got))
	assert.Equal(t, 0, local.Len())
}

func TestManager_GetOrSet(t *testing.T) {
	ctx := context.Background()
	m := NewLocalOnly(newLocal(t), time.Minute, logging.Discard())
	calls := 0
	compute := func(context.Context) (any, error) {
		calls++
		return map[string]string{"title": "x"}, nil
	}

	first, err := m.GetOrSet(ctx, "content:PageContent:1", 0, compute)
	require.NoError(t, err)
	assert.False(t, first.Hit)
	assert.Equal(t, "MISS", first.Status())

	second, err := m.GetOrSet(ctx, "content:PageContent:1", 0, compute)
	require.NoError(t, err)
	assert.True(t, second.Hit)
	assert.Equal(t, "HIT", second.Status())
	assert.JSONEq(t, string(first.Value), string(second.Value))
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err = m.GetOrSet(ctx, "content:PageContent:2", 0, func(context.Context) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestManager_GetOrSetSurvivesSharedOutage(t *testing.T) {
	mr, shared := newRedis(t)
	mr.Close()
	m := NewTiered(newLocal(t), shared, time.Minute, logging.Discard())

	res, err := m.GetOrSet(context.Background(), "k", 0, func(context.Context) (any, error) { return 42, nil })

	require.NoError(t, err)
	var v int
	require.NoError(t, json.Unmarshal(res.Value, &v))
	assert.Equal(t, 42, v)
}

func TestLocalBackend_Expiry(t *testing.T) {
	ctx := context.Background()
	b := newLocal(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	require.NoError(t, b.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, b.Set(ctx, "b", []byte("2"), 0))

	now = now.Add(2 * time.Second)

	_, ok, _ := b.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = b.Get(ctx, "b")
	assert.True(t, ok)

	keys, err := b.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}

func TestRedisBackend_BreakerOpens(t *testing.T) {
	ctx := context.Background()
	mr, b := newRedis(t)
	mr.Close()

	for i := 0; i < 5; i++ {
		_, _, err := b.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrBackendUnavailable)
	}
	assert.False(t, b.Available())
}

func TestLiteralPrefix(t *testing.T) {
	assert.Equal(t, "page:", literalPrefix("page:*"))
	assert.Equal(t, "content:a:", literalPrefix("content:a:{x,y}"))
	assert.Equal(t, "exact", literalPrefix("exact"))
}
