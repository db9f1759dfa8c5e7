package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"cmssync/internal/service"
	"cmssync/internal/storage"
)

const archiveURLExpiry = 15 * time.Minute

// ListVersions godoc
// @Summary  Version history, newest first
// @Tags     versions
// @Produce  json
// @Param    contentType    path  string true  "Content type"
// @Param    contentId      path  string true  "Content id"
// @Param    page           query int    false "Page, from 1"
// @Param    pageSize       query int    false "Page size, at most 100"
// @Param    includePayload query bool   false "Include payloads"
// @Success  200 {object} service.VersionHistory
// @Router   /api/content/{contentType}/{contentId}/versions [get]
func ListVersions(vs service.VersionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := c.QueryInt("page", 1)
		size := c.QueryInt("pageSize", 20)
		if page <= 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "invalid page")
		}
		if size <= 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE_SIZE", "invalid pageSize")
		}
		res, err := vs.GetHistory(c.UserContext(), contentKey(c), service.HistoryQuery{
			Page:           page,
			PageSize:       size,
			IncludePayload: c.QueryBool("includePayload", false),
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	}
}

// GetVersion godoc
// @Summary  One version with its payload
// @Tags     versions
// @Produce  json
// @Param    contentType path string true "Content type"
// @Param    contentId   path string true "Content id"
// @Param    number      path int    true "Version number"
// @Success  200 {object} model.Version
// @Router   /api/content/{contentType}/{contentId}/versions/{number} [get]
func GetVersion(vs service.VersionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, ok := versionParam(c, "number")
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_VERSION", "invalid version number")
		}
		v, err := vs.GetVersion(c.UserContext(), contentKey(c), n)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(v)
	}
}

// CompareVersions godoc
// @Summary  Diff two versions
// @Tags     versions
// @Produce  json
// @Param    contentType path  string true "Content type"
// @Param    contentId   path  string true "Content id"
// @Param    a           query int    true "From version"
// @Param    b           query int    true "To version"
// @Success  200 {object} model.VersionComparison
// @Router   /api/content/{contentType}/{contentId}/compare [get]
func CompareVersions(vs service.VersionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, b := c.QueryInt("a"), c.QueryInt("b")
		if a <= 0 || b <= 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_VERSION", "query parameters a and b are required")
		}
		cmp, err := vs.CompareVersions(c.UserContext(), contentKey(c), a, b)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(cmp)
	}
}

// ArchiveURL returns a presigned download link for an archived snapshot.
// @Summary  Presigned link to an archived version
// @Tags     versions
// @Produce  json
// @Param    contentType path string true "Content type"
// @Param    contentId   path string true "Content id"
// @Param    number      path int    true "Version number"
// @Success  200 {object} map[string]string
// @Router   /api/content/{contentType}/{contentId}/versions/{number}/archive [get]
func ArchiveURL(vs service.VersionService, store storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n, ok := versionParam(c, "number")
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_VERSION", "invalid version number")
		}
		key := contentKey(c)
		if _, err := vs.GetVersion(c.UserContext(), key, n); err != nil {
			return respondError(c, err)
		}
		url, err := store.PresignGet(c.UserContext(), storage.SnapshotKey(key.ContentType, key.ContentID, n), archiveURLExpiry)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"url": url, "expiresIn": int(archiveURLExpiry.Seconds())})
	}
}
