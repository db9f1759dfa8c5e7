package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DB_HOST", "REDIS_ADDR", "MINIO_ENDPOINT", "AUTH_JWT_SECRET", "SYNC_SIDE_JOBS", "SYNC_CONFLICT_WINDOW_MS",
		"CACHE_DEFAULT_TTL_SEC", "JOBS_MAX_WORKERS", "VERSION_RETENTION_DAYS"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Empty(t, cfg.Database.Host, "no host selects the in-memory store")
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.MinIO.Enabled())
	assert.Equal(t, 5*time.Second, cfg.Sync.ConflictWindow())
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL())
	assert.Equal(t, 4, cfg.Jobs.MaxWorkers)
	assert.Equal(t, []string{"cache-warm"}, cfg.Sync.SideJobs)
	assert.Zero(t, cfg.Sync.VersionRetentionDay)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("MINIO_BUCKET", "snapshots")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("SYNC_CONFLICT_WINDOW_MS", "2500")
	t.Setenv("SYNC_SIDE_JOBS", "snapshot-archive,cache-warm")
	t.Setenv("VERSION_RETENTION_DAYS", "90")

	cfg := Load()

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 2500*time.Millisecond, cfg.Sync.ConflictWindow())
	assert.Equal(t, []string{"snapshot-archive", "cache-warm"}, cfg.Sync.SideJobs)
	assert.Equal(t, 90, cfg.Sync.VersionRetentionDay)
}

func TestLocation(t *testing.T) {
	cfg := &AppConfig{Log: LogConfig{Timezone: "Asia/Jakarta"}}
	assert.Equal(t, "Asia/Jakarta", cfg.Location().String())

	cfg.Log.Timezone = "Not/AZone"
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestEnvHelpers(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		t.Setenv("CMS_TEST_STR", "value")
		assert.Equal(t, "value", getEnv("CMS_TEST_STR", "fallback"))
		assert.Equal(t, "fallback", getEnv("CMS_TEST_UNSET", "fallback"))
	})

	t.Run("bool", func(t *testing.T) {
		tests := map[string]bool{"true": true, "1": true, "false": false, "garbage": true, "": true}
		for raw, want := range tests {
			t.Setenv("CMS_TEST_BOOL", raw)
			assert.Equal(t, want, getEnvBool("CMS_TEST_BOOL", true), "raw=%q", raw)
		}
	})

	t.Run("int", func(t *testing.T) {
		t.Setenv("CMS_TEST_INT", "123")
		assert.Equal(t, 123, getEnvInt("CMS_TEST_INT", 0))
		t.Setenv("CMS_TEST_INT", "12x")
		assert.Equal(t, 10, getEnvInt("CMS_TEST_INT", 10))
	})

	t.Run("list", func(t *testing.T) {
		t.Setenv("CMS_TEST_LIST", "snapshot-archive, cache-warm ,,")
		assert.Equal(t, []string{"snapshot-archive", "cache-warm"}, getEnvList("CMS_TEST_LIST", nil))

		t.Setenv("CMS_TEST_LIST", "-")
		assert.Empty(t, getEnvList("CMS_TEST_LIST", []string{"x"}))

		t.Setenv("CMS_TEST_LIST", "")
		assert.Equal(t, []string{"x"}, getEnvList("CMS_TEST_LIST", []string{"x"}))
	})
}
