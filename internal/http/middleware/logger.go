package middleware

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"

	"cmssync/internal/logging"
)

// Logger logs one structured line per request with:
// - request_id (taken from context locals set by RequestID middleware)
// - author_id when the request was authenticated
// - method, path and status
// - latency in milliseconds
//
// 5xx responses are logged at error level and 4xx at warn.
func Logger(l *log.Logger) fiber.Handler {
	l = logging.Component(l, "http")

	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		rid, _ := c.Locals(RequestIDLocalKey).(string)
		author, _ := c.Locals(AuthorIDLocalKey).(string)
		kv := []any{
			"request_id", rid,
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", float64(time.Since(start).Microseconds()) / 1000,
		}
		if author != "" {
			kv = append(kv, "author_id", author)
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			l.Error("http_request", kv...)
		case status >= fiber.StatusBadRequest:
			l.Warn("http_request", kv...)
		default:
			l.Info("http_request", kv...)
		}
		return err
	}
}
