package main

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"cmssync/docs"
	"cmssync/internal/auth"
	"cmssync/internal/cache"
	"cmssync/internal/config"
	"cmssync/internal/database"
	handlers "cmssync/internal/http/handler"
	"cmssync/internal/http/middleware"
	"cmssync/internal/http/ws"
	"cmssync/internal/jobs"
	"cmssync/internal/logging"
	"cmssync/internal/metrics"
	"cmssync/internal/otel"
	"cmssync/internal/presence"
	"cmssync/internal/service"
	"cmssync/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server (default)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logging.Component(logger, "otel"))
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	stores, err := database.OpenStores(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	cacheMgr, closeCache, err := newCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	validator := service.NewSchemaValidator()
	n, err := validator.LoadSchemaDir(cfg.Sync.SchemaDir)
	if err != nil {
		return err
	}
	logger.Info("schemas_loaded", "count", n, "dir", cfg.Sync.SchemaDir)

	var objStore storage.Storage
	if cfg.MinIO.Enabled() {
		if objStore, err = storage.NewMinIO(ctx, cfg.MinIO); err != nil {
			return err
		}
	}

	var verifier *auth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer)
	} else {
		logger.Warn("auth_disabled", "detail", "AUTH_JWT_SECRET is empty, the "+middleware.AuthorIDHeader+" header is trusted")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var (
		syncSvc service.SyncService
		m       *metrics.Metrics
	)
	hub := presence.NewHub(0, logger)
	processor := jobs.New(jobs.Config{
		MaxWorkers:         cfg.Jobs.MaxWorkers,
		QueueSize:          cfg.Jobs.QueueSize,
		DefaultTimeout:     time.Duration(cfg.Jobs.DefaultTimeoutSec) * time.Second,
		DefaultMaxAttempts: cfg.Jobs.DefaultMaxAttempts,
		RetryDelay:         time.Duration(cfg.Jobs.RetryDelayMs) * time.Millisecond,
		Retention:          time.Duration(cfg.Jobs.RetentionSec) * time.Second,
		CleanupInterval:    time.Duration(cfg.Jobs.CleanupIntervalSec) * time.Second,
	}, jobs.Hooks{
		OnFailed: func(j jobs.Job) { m.JobFailed(j) },
	}, logger)

	m, err = metrics.New(reg, metrics.Sources{
		Cache:    cacheMgr.Stats,
		Jobs:     processor.GetStats,
		Presence: hub.Snapshot,
		Sync:     func() service.SyncStats { return syncSvc.Stats() },
	})
	if err != nil {
		return err
	}

	versions := service.NewVersionService(stores.Contents, stores.Versions)
	retention := time.Duration(cfg.Sync.VersionRetentionDay) * 24 * time.Hour
	locks := service.NewDocumentLocks()
	side := service.NewSideWork(service.SideWorkDeps{
		Contents:  stores.Contents,
		Versions:  versions,
		Store:     objStore,
		Cache:     cacheMgr,
		CacheTTL:  cfg.Cache.DefaultTTL(),
		Retention: retention,
		Locks:     locks,
		Logger:    logger,
	})
	side.Register(processor)

	syncSvc = service.NewSyncService(service.SyncDeps{
		Contents:    stores.Contents,
		Versions:    stores.Versions,
		Validator:   validator,
		Cache:       cacheMgr,
		Broadcaster: hub,
		Jobs:        processor,
		Recorder:    m,
		Locks:       locks,
		Logger:      logger,
	}, service.SyncOptions{
		ConflictWindow:   cfg.Sync.ConflictWindow(),
		PendingRetention: time.Duration(cfg.Sync.PendingRetentionSec) * time.Second,
		CacheTTL:         cfg.Cache.DefaultTTL(),
		SideJobs:         enabledSideJobs(cfg.Sync.SideJobs, side.SideJobs(), logger),
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); hub.Run(ctx) }()
	go func() { defer wg.Done(); processor.Run(ctx) }()
	if retention > 0 && cfg.Jobs.PurgeIntervalSec > 0 {
		processor.Every(ctx, time.Duration(cfg.Jobs.PurgeIntervalSec)*time.Second,
			service.JobVersionPurge, nil, jobs.Options{Priority: jobs.PriorityLow})
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		DisableStartupMessage: true,
	})

	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	prom, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return err
	}
	app.Use(prom.Handler())

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:       stores.DB,
		Sync:     syncSvc,
		Versions: versions,
		Jobs:     processor,
		Cache:    cacheMgr,
		Presence: hub,
		Storage:  objStore,
		Verifier: verifier,
		Gatherer: reg,
	})

	ws.New(hub, syncSvc, verifier, ws.Config{
		SendBuffer:   cfg.WebSocket.SendBuffer,
		PingInterval: time.Duration(cfg.WebSocket.PingIntervalSec) * time.Second,
		RatePerSec:   float64(cfg.WebSocket.RatePerSec),
		Burst:        cfg.WebSocket.Burst,
	}, logger).Register(app, "/ws")

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}
		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}
		return swagger.HandlerDefault(c)
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("server_started", "addr", ":"+cfg.Port, "cache", cacheMgr.Stats().Mode)
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case <-ctx.Done():
	case err = <-listenErr:
	}

	logger.Info("server_stopping")
	if serr := app.ShutdownWithTimeout(shutdownTimeout); serr != nil {
		logger.Error("server_shutdown_failed", "err", serr)
	}
	stop()
	wg.Wait()
	return err
}

// newCache builds the tiered cache when Redis is configured, otherwise a
// local-only one.
func newCache(ctx context.Context, cfg *config.AppConfig, logger *log.Logger) (*cache.Manager, func(), error) {
	local, err := cache.NewLocalBackend(cfg.Cache.LocalSize)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Redis.Enabled() {
		return cache.NewLocalOnly(local, cfg.Cache.DefaultTTL(), logger), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: time.Duration(cfg.Redis.DialTimeoutMs) * time.Millisecond,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		// Start degraded; the breaker keeps probing.
		logger.Warn("redis_unreachable", "addr", cfg.Redis.Addr, "err", err)
	}
	shared := cache.NewRedisBackend(client, cache.RedisOptions{
		OpTimeout:      time.Duration(cfg.Redis.OpTimeoutMs) * time.Millisecond,
		BreakerTimeout: time.Duration(cfg.Redis.BreakerTimeout) * time.Second,
	}, logger)
	return cache.NewTiered(local, shared, cfg.Cache.DefaultTTL(), logger), func() { _ = client.Close() }, nil
}

// enabledSideJobs keeps the configured job types that have a registered handler.
func enabledSideJobs(wanted, available []string, logger *log.Logger) []string {
	var out []string
	for _, j := range wanted {
		if slices.Contains(available, j) {
			out = append(out, j)
			continue
		}
		logger.Warn("side_job_unavailable", "job_type", j)
	}
	return out
}
