package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"

	"cmssync/internal/cache"
	"cmssync/internal/jobs"
	"cmssync/internal/presence"
	"cmssync/internal/service"
)

// JobTracker is the introspection side of the job processor.
type JobTracker interface {
	GetJobStatus(id string) (jobs.Job, error)
	CancelJob(id string) error
	GetStats() jobs.Stats
}

// CacheStats reports cache counters.
type CacheStats interface {
	Stats() cache.Stats
}

// PresenceStats reports hub state.
type PresenceStats interface {
	Snapshot(ctx context.Context) (presence.Snapshot, error)
}

// HealthCheck pings the database. Without one (in-memory mode) it always succeeds.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
			}
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// GetJob godoc
// @Summary  Job status
// @Tags     jobs
// @Produce  json
// @Param    id path string true "Job id"
// @Success  200 {object} jobs.Job
// @Router   /api/jobs/{id} [get]
func GetJob(t JobTracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		j, err := t.GetJobStatus(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(j)
	}
}

// CancelJob godoc
// @Summary  Cancel a queued, waiting or running job
// @Tags     jobs
// @Param    id path string true "Job id"
// @Success  204
// @Router   /api/jobs/{id} [delete]
func CancelJob(t JobTracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := t.CancelJob(c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func JobStats(t JobTracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(t.GetStats())
	}
}

// SyncStats combines cache and optimistic update counters.
func SyncStats(cs CacheStats, svc service.SyncService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out := fiber.Map{"updates": svc.Stats()}
		if cs != nil {
			out["cache"] = cs.Stats()
		}
		return c.JSON(out)
	}
}

func PresenceSnapshot(p PresenceStats) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := p.Snapshot(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "presence hub unavailable")
		}
		return c.JSON(snap)
	}
}
