package handler

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"cmssync/internal/http/middleware"
	"cmssync/internal/model"
	"cmssync/internal/service"
)

// CacheHeader reports whether a content read was served from cache.
const CacheHeader = "X-Cache"

func contentKey(c *fiber.Ctx) model.ContentKey {
	return model.ContentKey{ContentType: c.Params("contentType"), ContentID: c.Params("contentId")}
}

func actor(c *fiber.Ctx) service.Actor {
	return service.Actor{AuthorID: middleware.AuthorID(c)}
}

// decodeObject reads the request body as a JSON object.
func decodeObject(c *fiber.Ctx) (map[string]any, bool) {
	var body map[string]any
	if err := json.Unmarshal(c.Body(), &body); err != nil || body == nil {
		return nil, false
	}
	return body, true
}

func versionParam(c *fiber.Ctx, name string) (int, bool) {
	n, err := strconv.Atoi(c.Params(name))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// GetContent godoc
// @Summary  Read a document through the cache
// @Tags     content
// @Produce  json
// @Param    contentType path string true "Content type"
// @Param    contentId   path string true "Content id"
// @Success  200 {object} model.ContentDocument
// @Header   200 {string} X-Cache "HIT or MISS"
// @Router   /api/content/{contentType}/{contentId} [get]
func GetContent(svc service.SyncService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.GetContent(c.UserContext(), contentKey(c))
		if err != nil {
			return respondError(c, err)
		}
		c.Set(CacheHeader, res.CacheStatus)
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(res.Document)
	}
}

// CreateContent godoc
// @Summary  Create a document and its first version
// @Tags     content
// @Accept   json
// @Produce  json
// @Param    contentType path string true "Content type"
// @Param    contentId   path string true "Content id"
// @Success  201 {object} service.SyncResult
// @Router   /api/content/{contentType}/{contentId} [post]
func CreateContent(svc service.SyncService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload, ok := decodeObject(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "body must be a JSON object")
		}
		res, err := svc.SyncCreate(c.UserContext(), contentKey(c), payload, actor(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// UpdateContent applies a JSON merge patch.
// @Summary  Merge-patch a document
// @Tags     content
// @Accept   json
// @Produce  json
// @Param    contentType path string true "Content type"
// @Param    contentId   path string true "Content id"
// @Success  200 {object} service.SyncResult
// @Failure  422 {object} errorPayload
// @Router   /api/content/{contentType}/{contentId} [patch]
func UpdateContent(svc service.SyncService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		patch, ok := decodeObject(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "body must be a JSON object")
		}
		res, err := svc.SyncUpdate(c.UserContext(), contentKey(c), patch, actor(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	}
}

// DeleteContent godoc
// @Summary  Soft-delete a document
// @Tags     content
// @Param    contentType path string true "Content type"
// @Param    contentId   path string true "Content id"
// @Success  200 {object} model.Version
// @Router   /api/content/{contentType}/{contentId} [delete]
func DeleteContent(svc service.SyncService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v, err := svc.SyncDelete(c.UserContext(), contentKey(c), actor(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(v)
	}
}

type optimisticRequest struct {
	UpdateID string         `json:"updateId"`
	Changes  []model.Change `json:"changes"`
}

// OptimisticUpdate godoc
// @Summary  Submit an optimistic update
// @Tags     content
// @Accept   json
// @Produce  json
// @Param    contentType path string true "Content type"
// @Param    contentId   path string true "Content id"
// @Success  200 {object} service.OptimisticResult
// @Failure  409 {object} errorPayload
// @Router   /api/content/{contentType}/{contentId}/optimistic [post]
func OptimisticUpdate(svc service.SyncService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req optimisticRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil || len(req.Changes) == 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "changes are required")
		}
		res, err := svc.HandleOptimisticUpdate(c.UserContext(), contentKey(c), req.Changes, actor(c), req.UpdateID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	}
}

type rollbackRequest struct {
	UpdateID string `json:"updateId"`
	Reason   string `json:"reason"`
}

// RollbackUpdate godoc
// @Summary  Withdraw a pending optimistic update
// @Tags     content
// @Accept   json
// @Produce  json
// @Param    contentType path string true "Content type"
// @Param    contentId   path string true "Content id"
// @Success  200 {object} model.PendingUpdate
// @Router   /api/content/{contentType}/{contentId}/rollback [post]
func RollbackUpdate(svc service.SyncService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req rollbackRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil || req.UpdateID == "" {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "updateId is required")
		}
		p, err := svc.RollbackUpdate(c.UserContext(), contentKey(c), req.UpdateID, req.Reason, actor(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	}
}

// RestoreVersion godoc
// @Summary  Restore a document to an earlier version
// @Tags     versions
// @Produce  json
// @Param    contentType path string true "Content type"
// @Param    contentId   path string true "Content id"
// @Param    number      path int    true "Version number"
// @Success  200 {object} service.SyncResult
// @Router   /api/content/{contentType}/{contentId}/versions/{number}/restore [post]
func RestoreVersion(svc service.SyncService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, ok := versionParam(c, "number")
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_VERSION", "invalid version number")
		}
		res, err := svc.RestoreToVersion(c.UserContext(), contentKey(c), n, actor(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	}
}

// GetPendingUpdate godoc
// @Summary  Inspect an optimistic update
// @Tags     content
// @Produce  json
// @Param    id path string true "Update id"
// @Success  200 {object} model.PendingUpdate
// @Router   /api/updates/{id} [get]
func GetPendingUpdate(svc service.SyncService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := svc.GetPendingUpdate(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	}
}
