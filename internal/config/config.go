package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
// An empty Host selects the in-memory store (useful for local development only).
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
// Object storage backs the snapshot-archive job; it is optional.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether an object storage endpoint was configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// RedisConfig holds settings for the shared cache tier.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	DialTimeoutMs  int
	OpTimeoutMs    int
	BreakerTimeout int // seconds the breaker stays open before probing again
}

// Enabled reports whether a shared cache tier was configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// CacheConfig controls the local tier and default entry lifetime.
type CacheConfig struct {
	LocalSize     int
	DefaultTTLSec int
}

// DefaultTTL returns the default entry lifetime.
func (c CacheConfig) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSec) * time.Second
}

// JobsConfig controls the background job processor.
type JobsConfig struct {
	MaxWorkers         int
	QueueSize          int
	DefaultTimeoutSec  int
	DefaultMaxAttempts int
	RetryDelayMs       int
	RetentionSec       int
	CleanupIntervalSec int
	PurgeIntervalSec   int
}

// SyncConfig controls the sync coordinator.
type SyncConfig struct {
	ConflictWindowMs    int
	PendingRetentionSec int
	SchemaDir           string
	VersionRetentionDay int
	SideJobs            []string
}

// ConflictWindow returns the window in which a different author's commit conflicts.
func (c SyncConfig) ConflictWindow() time.Duration {
	return time.Duration(c.ConflictWindowMs) * time.Millisecond
}

// AuthConfig holds settings for connection authentication.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level    string
	Timezone string
}

// WebSocketConfig holds realtime transport settings.
type WebSocketConfig struct {
	SendBuffer      int
	PingIntervalSec int
	RatePerSec      int
	Burst           int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost   string
	Port      string
	Database  DatabaseConfig
	MinIO     MinIOConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Jobs      JobsConfig
	Sync      SyncConfig
	Auth      AuthConfig
	Log       LogConfig
	WebSocket WebSocketConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", ""),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvInt("REDIS_DB", 0),
			DialTimeoutMs:  getEnvInt("REDIS_DIAL_TIMEOUT_MS", 2000),
			OpTimeoutMs:    getEnvInt("REDIS_OP_TIMEOUT_MS", 250),
			BreakerTimeout: getEnvInt("REDIS_BREAKER_TIMEOUT_SEC", 30),
		},
		Cache: CacheConfig{
			LocalSize:     getEnvInt("CACHE_LOCAL_SIZE", 10000),
			DefaultTTLSec: getEnvInt("CACHE_DEFAULT_TTL_SEC", 300),
		},
		Jobs: JobsConfig{
			MaxWorkers:         getEnvInt("JOBS_MAX_WORKERS", 4),
			QueueSize:          getEnvInt("JOBS_QUEUE_SIZE", 1000),
			DefaultTimeoutSec:  getEnvInt("JOBS_DEFAULT_TIMEOUT_SEC", 30),
			DefaultMaxAttempts: getEnvInt("JOBS_MAX_ATTEMPTS", 3),
			RetryDelayMs:       getEnvInt("JOBS_RETRY_DELAY_MS", 1000),
			RetentionSec:       getEnvInt("JOBS_RETENTION_SEC", 3600),
			CleanupIntervalSec: getEnvInt("JOBS_CLEANUP_INTERVAL_SEC", 300),
			PurgeIntervalSec:   getEnvInt("JOBS_PURGE_INTERVAL_SEC", 86400),
		},
		Sync: SyncConfig{
			ConflictWindowMs:    getEnvInt("SYNC_CONFLICT_WINDOW_MS", 5000),
			PendingRetentionSec: getEnvInt("SYNC_PENDING_RETENTION_SEC", 60),
			SchemaDir:           getEnv("SYNC_SCHEMA_DIR", ""),
			VersionRetentionDay: getEnvInt("VERSION_RETENTION_DAYS", 0),
			SideJobs:            getEnvList("SYNC_SIDE_JOBS", []string{"cache-warm"}),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			JWTIssuer: getEnv("AUTH_JWT_ISSUER", ""),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Timezone: getEnv("APP_TIMEZONE", "UTC"),
		},
		WebSocket: WebSocketConfig{
			SendBuffer:      getEnvInt("WS_SEND_BUFFER", 64),
			PingIntervalSec: getEnvInt("WS_PING_INTERVAL_SEC", 30),
			RatePerSec:      getEnvInt("WS_RATE_PER_SEC", 20),
			Burst:           getEnvInt("WS_BURST", 40),
		},
	}
}

// Location resolves the configured time zone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Log.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvList splits a comma separated value; "-" yields an empty list.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "-" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
