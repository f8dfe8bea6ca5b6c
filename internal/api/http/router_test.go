package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-realtime/internal/api/http/handlers"
	"github.com/spec-kit/storefront-realtime/internal/auth"
	"github.com/spec-kit/storefront-realtime/internal/domain"
	"github.com/spec-kit/storefront-realtime/internal/observability"
	"github.com/spec-kit/storefront-realtime/internal/service"
)

type fakeUsers map[string]*domain.User

func (f fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	if user, ok := f[id]; ok {
		return user, nil
	}
	return nil, pgx.ErrNoRows
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

var (
	customer = &domain.User{ID: "cust-1", Name: "Cara", IsActive: true}
	staff    = &domain.User{ID: "staff-1", Name: "Sam", IsStaff: true, IsActive: true}
)

func newTestApp(t *testing.T, deps map[string]handlers.Pinger) (*fiber.App, *auth.TokenManager) {
	t.Helper()
	return newServiceApp(t, deps, nil, nil)
}

// newServiceApp wires real order and contact services; chat and auth
// handlers stay unbacked.
func newServiceApp(t *testing.T, deps map[string]handlers.Pinger, orders *service.OrderService, contacts *service.ContactService) (*fiber.App, *auth.TokenManager) {
	t.Helper()
	logger := zap.NewNop()
	tokens := auth.NewTokenManager("test-secret", 5)
	middleware := auth.NewAuthMiddleware(tokens, fakeUsers{customer.ID: customer, staff.ID: staff})

	app := fiber.New()
	RegisterMiddlewares(app, logger, observability.NewMetrics(prometheus.NewRegistry()), time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("storefront-realtime", "test", deps),
		Auth:           handlers.NewAuthHandler(nil),
		Orders:         handlers.NewOrdersHandler(orders),
		Contacts:       handlers.NewContactsHandler(contacts),
		Chat:           handlers.NewChatHandler(nil),
		WS:             handlers.NewWSHandler(context.Background(), nil, 0, logger),
		AuthMiddleware: middleware,
	})
	return app, tokens
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, errorBody) {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	var body errorBody
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

func bearer(t *testing.T, tokens *auth.TokenManager, user *domain.User) string {
	t.Helper()
	token, _, err := tokens.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return "Bearer " + token
}

func TestHealthLive(t *testing.T) {
	app, _ := newTestApp(t, nil)
	status, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	app, _ := newTestApp(t, map[string]handlers.Pinger{
		"postgres": pinger{},
		"redis":    pinger{err: errors.New("connection refused")},
	})
	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", status)
	}
	if body.Error.Code != "DEPENDENCY_UNAVAILABLE" {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
	if body.Error.Details["postgres"] != "ok" || body.Error.Details["redis"] != "connection refused" {
		t.Fatalf("unexpected details %v", body.Error.Details)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app, _ := newTestApp(t, nil)
	status, body := do(t, app, httptest.NewRequest(http.MethodPost, "/api/orders", nil))
	if status != http.StatusUnauthorized || body.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("expected 401 UNAUTHORIZED, got %d %+v", status, body)
	}
}

func TestAdminRoutesRejectCustomers(t *testing.T) {
	app, tokens := newTestApp(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders/stats", nil)
	req.Header.Set("Authorization", bearer(t, tokens, customer))
	status, body := do(t, app, req)
	if status != http.StatusForbidden || body.Error.Code != "FORBIDDEN" {
		t.Fatalf("expected 403 FORBIDDEN, got %d %+v", status, body)
	}
}

func TestSocketRoutesRequireUpgrade(t *testing.T) {
	app, _ := newTestApp(t, nil)
	for _, path := range []string{"/ws/admin/orders/", "/ws/admin/contacts/", "/ws/admin/inbox/", "/ws/chat/conv-1/"} {
		status, _ := do(t, app, httptest.NewRequest(http.MethodGet, path, nil))
		if status != http.StatusUpgradeRequired {
			t.Errorf("%s: expected 426, got %d", path, status)
		}
	}
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	app, _ := newTestApp(t, nil)
	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if status != http.StatusNotFound || body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected 404 NOT_FOUND, got %d %+v", status, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := newTestApp(t, nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
