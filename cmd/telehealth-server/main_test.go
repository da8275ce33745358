package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/medilink/telehealth/internal/config"
	"github.com/medilink/telehealth/internal/platform/cache"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:            "test",
		StoreDriver:    config.DriverMongo,
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
		CacheTTL:       time.Minute,
		CORSOrigins:    []string{"*"},
		BodyLimit:      "1M",
		RequestTimeout: 5 * time.Second,
	}
}

func newTestApplication() *application {
	return newApplication(testConfig(), zerolog.Nop(), repositories{}, cache.NewMemory())
}

func TestApplication_PublicEndpoints(t *testing.T) {
	app := newTestApplication()

	tests := []struct {
		method string
		target string
		body   string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/api/health", "", http.StatusOK},
		{http.MethodPost, "/api/auth/login", "{not json", http.StatusBadRequest},
		{http.MethodGet, "/health/db", "", http.StatusNotFound},
		{http.MethodGet, "/api/doctors/available?specialization=%3Cscript%3E", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			app.echo.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestApplication_ProtectedEndpointsRequireToken(t *testing.T) {
	app := newTestApplication()

	for _, target := range []string{"/api/consultations", "/api/prescriptions", "/api/auth/me", "/ws"} {
		t.Run(target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			app.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestApplication_SecurityHeaders(t *testing.T) {
	app := newTestApplication()
	rec := httptest.NewRecorder()
	app.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("expected nosniff header, got %q", rec.Header().Get("X-Content-Type-Options"))
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestApplication_Routes(t *testing.T) {
	app := newTestApplication()

	want := map[string]bool{
		"POST /api/auth/register":               false,
		"POST /api/auth/login":                  false,
		"GET /api/doctors/available":            false,
		"POST /api/consultations":               false,
		"PUT /api/consultations/:id/status":     false,
		"POST /api/chat":                        false,
		"GET /api/chat/:consultationId":         false,
		"POST /api/prescriptions":               false,
		"PUT /api/prescriptions/:id/deactivate": false,
		"GET /ws":                               false,
		"GET /health":                           false,
	}
	for _, r := range app.echo.Routes() {
		if _, ok := want[r.Method+" "+r.Path]; ok {
			want[r.Method+" "+r.Path] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}
