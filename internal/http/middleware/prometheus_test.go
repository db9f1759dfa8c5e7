package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contentRoute = "/api/content/:contentType/:contentId"

func newMeteredApp(t *testing.T) (*fiber.App, *PrometheusMiddleware, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMiddleware(reg)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(m.Handler())
	app.Get(contentRoute, func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Patch(contentRoute, func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "invalid payload")
	})
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/metrics", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app, m, reg
}

func send(t *testing.T, app *fiber.App, method, target string) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	require.NoError(t, err)
	return resp.StatusCode
}

func TestPrometheusMiddleware_LabelsByRoutePattern(t *testing.T) {
	app, m, _ := newMeteredApp(t)

	assert.Equal(t, fiber.StatusOK, send(t, app, http.MethodGet, "/api/content/PageContent/123"))
	assert.Equal(t, fiber.StatusOK, send(t, app, http.MethodGet, "/api/content/PageContent/456"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestCount.WithLabelValues(http.MethodGet, contentRoute, "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))
}

func TestPrometheusMiddleware_ErrorStatus(t *testing.T) {
	app, m, _ := newMeteredApp(t)

	assert.Equal(t, fiber.StatusUnprocessableEntity, send(t, app, http.MethodPatch, "/api/content/PageContent/123"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestCount.WithLabelValues(http.MethodPatch, contentRoute, "422")))

	assert.Equal(t, fiber.StatusNotFound, send(t, app, http.MethodGet, "/api/nothing/here"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestCount.WithLabelValues(http.MethodGet, "unmatched", "404")))
}

func TestPrometheusMiddleware_SkipsProbes(t *testing.T) {
	app, _, reg := newMeteredApp(t)

	send(t, app, http.MethodGet, "/metrics")
	send(t, app, http.MethodGet, "/health")

	n, err := testutil.GatherAndCount(reg, "cmssync_http_requests_total")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPrometheusMiddleware_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusMiddleware(reg)
	require.NoError(t, err)

	_, err = NewPrometheusMiddleware(reg)
	assert.Error(t, err)
}
