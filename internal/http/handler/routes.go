package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cmssync/internal/auth"
	"cmssync/internal/http/middleware"
	"cmssync/internal/service"
	"cmssync/internal/storage"
)

// Deps are the collaborators the routes need. DB, Storage, Cache, Presence
// and Gatherer are optional; their routes degrade or are not registered.
type Deps struct {
	DB       *sql.DB
	Sync     service.SyncService
	Versions service.VersionService
	Jobs     JobTracker
	Cache    CacheStats
	Presence PresenceStats
	Storage  storage.Storage
	Verifier *auth.Verifier
	Gatherer prometheus.Gatherer
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")

	content := api.Group("/content/:contentType/:contentId")
	content.Get("", GetContent(d.Sync))
	content.Get("/versions", ListVersions(d.Versions))
	content.Get("/versions/:number", GetVersion(d.Versions))
	content.Get("/compare", CompareVersions(d.Versions))
	if d.Storage != nil {
		content.Get("/versions/:number/archive", ArchiveURL(d.Versions, d.Storage))
	}

	// Writes need an author.
	authn := middleware.Authenticate(d.Verifier)
	content.Post("", authn, CreateContent(d.Sync))
	content.Patch("", authn, UpdateContent(d.Sync))
	content.Delete("", authn, DeleteContent(d.Sync))
	content.Post("/optimistic", authn, OptimisticUpdate(d.Sync))
	content.Post("/rollback", authn, RollbackUpdate(d.Sync))
	content.Post("/versions/:number/restore", authn, RestoreVersion(d.Sync))

	api.Get("/updates/:id", GetPendingUpdate(d.Sync))

	if d.Jobs != nil {
		api.Get("/jobs/stats", JobStats(d.Jobs))
		api.Get("/jobs/:id", GetJob(d.Jobs))
		api.Delete("/jobs/:id", authn, CancelJob(d.Jobs))
	}

	api.Get("/stats/sync", SyncStats(d.Cache, d.Sync))
	if d.Presence != nil {
		api.Get("/stats/presence", PresenceSnapshot(d.Presence))
	}
}
