package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLoggerRecordsRouteTemplate(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := NewMetrics(prometheus.NewRegistry())

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/api/orders/:id", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/api/orders/42", nil)
	req.Header.Set(requestIDHeader, "req-1")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got := resp.Header.Get(requestIDHeader); got != "req-1" {
		t.Fatalf("request id not echoed, got %q", got)
	}

	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("GET", "/api/orders/:id", "204")); got != 1 {
		t.Fatalf("expected one request on the route template, got %v", got)
	}
	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/api/orders/42" || fields["request_id"] != "req-1" {
		t.Fatalf("unexpected log fields %v", fields)
	}
}

func TestRequestLoggerGeneratesRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), nil))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestRecordErrorCounts(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.RecordError("/api/orders", "POST", "VALIDATION_FAILED")
	metrics.RecordError("/api/orders", "POST", "VALIDATION_FAILED")
	if got := testutil.ToFloat64(metrics.errors.WithLabelValues("POST", "/api/orders", "VALIDATION_FAILED")); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
}
