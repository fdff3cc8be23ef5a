package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/ping/:id", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusConflict, "boom") })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/ping/:id", "200"))
	resp, err := app.Test(httptest.NewRequest("GET", "/ping/7", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/ping/:id", "200")))

	_, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/boom", "409")))
}

func TestRecordReconcileSetsDriftGauge(t *testing.T) {
	RecordReconcile(3, true, 10*time.Millisecond)
	assert.Equal(t, float64(3), testutil.ToFloat64(journalDrift))

	RecordReconcile(0, false, time.Millisecond)
	assert.Equal(t, float64(3), testutil.ToFloat64(journalDrift), "failed runs keep the last known value")
}

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(operations.WithLabelValues("transfer", "ok"))
	RecordOperation("transfer", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(operations.WithLabelValues("transfer", "ok")))
}
