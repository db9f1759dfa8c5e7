package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"cmssync/internal/http/middleware"
	"cmssync/internal/jobs"
	"cmssync/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_VERSION", "NOT_FOUND", "CONFLICT")
// - message: human-readable safe message
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return writeErrorDetails(c, status, code, message, nil)
}

func writeErrorDetails(c *fiber.Ctx, status int, code, message string, details any) error {
	return c.Status(status).JSON(errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// conflictDetails is what a client needs to reload after losing a race.
type conflictDetails struct {
	VersionNumber int    `json:"versionNumber"`
	AuthorID      string `json:"authorId"`
	CommittedAt   string `json:"committedAt"`
}

// respondError maps service and job errors onto the error envelope.
// Anything unrecognized is reported as an internal error.
func respondError(c *fiber.Ctx, err error) error {
	var (
		conflict   *service.ConflictError
		validation *service.ValidationError
	)
	switch {
	case errors.As(err, &conflict):
		return writeErrorDetails(c, fiber.StatusConflict, "CONFLICT",
			"document was changed by another author", conflictDetails{
				VersionNumber: conflict.VersionNumber,
				AuthorID:      conflict.AuthorID,
				CommittedAt:   conflict.CreatedAt.Format(time.RFC3339),
			})
	case errors.As(err, &validation):
		return writeErrorDetails(c, fiber.StatusUnprocessableEntity, "VALIDATION_FAILED",
			"payload failed validation", validation.Problems)
	case errors.Is(err, service.ErrValidationFailed):
		return writeError(c, fiber.StatusUnprocessableEntity, "VALIDATION_FAILED", "payload failed validation")
	case errors.Is(err, service.ErrIDRequired):
		return writeError(c, fiber.StatusBadRequest, "INVALID_KEY", "content type and id are required")
	case errors.Is(err, service.ErrAuthorRequired):
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "author is required")
	case errors.Is(err, service.ErrAlreadyExists):
		return writeError(c, fiber.StatusConflict, "ALREADY_EXISTS", "content already exists")
	case errors.Is(err, service.ErrDuplicateUpdate):
		return writeError(c, fiber.StatusConflict, "DUPLICATE_UPDATE", "update id already submitted")
	case errors.Is(err, service.ErrUpdateNotFound):
		return writeError(c, fiber.StatusNotFound, "UPDATE_NOT_FOUND", "pending update not found")
	case errors.Is(err, service.ErrNotFound), errors.Is(err, jobs.ErrJobNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, jobs.ErrJobFinished):
		return writeError(c, fiber.StatusConflict, "JOB_FINISHED", "job already finished")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "authentication required")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusUpgradeRequired:
			return writeError(c, status, "UPGRADE_REQUIRED", "websocket upgrade required")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
