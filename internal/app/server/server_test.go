package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payengine/internal/auth"
	"payengine/internal/platform/config"
	"payengine/internal/platform/metrics"
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:          "test-secret",
		MaxBodyBytes:       1 << 20,
		RateLimitPerMinute: 100,
		CORSAllowedOrigins: []string{"https://payroll.example.com"},
	}
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	token, err := auth.GenerateToken("test-secret", auth.Claims{UserID: "u1", Role: role}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return "Bearer " + token
}

func TestHealthAndReadiness(t *testing.T) {
	ready := errors.New("db down")
	router := NewRouter(testConfig(), Deps{Ready: func(context.Context) error { return ready }})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected readyz 503, got %d", rec.Code)
	}

	ready = nil
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected readyz 200, got %d", rec.Code)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	router := NewRouter(testConfig(), Deps{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/paychecks/chk-1", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestMetricsEndpointRequiresAdmin(t *testing.T) {
	router := NewRouter(testConfig(), Deps{Metrics: metrics.New()})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", bearer(t, auth.RoleViewer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", bearer(t, auth.RoleAdmin))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := NewRouter(testConfig(), Deps{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/paychecks/compute", nil)
	req.Header.Set("Origin", "https://payroll.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://payroll.example.com" {
		t.Fatalf("expected allowed origin, got %q", got)
	}
}
