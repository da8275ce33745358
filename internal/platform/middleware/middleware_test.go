package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medilink/telehealth/internal/platform/apperr"
	"github.com/medilink/telehealth/internal/platform/auth"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generates when missing", "", false},
		{"keeps caller id", "booking-flow-42", true},
		{"replaces oversized id", strings.Repeat("a", 200), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/consultations", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var seen string
			err := RequestID()(func(c echo.Context) error {
				seen, _ = c.Get("request_id").(string)
				return nil
			})(c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got := rec.Header().Get(RequestIDHeader)
			if got != seen {
				t.Errorf("context id %q differs from header %q", seen, got)
			}
			if tt.keep && got != tt.incoming {
				t.Errorf("expected %q, got %q", tt.incoming, got)
			}
			if !tt.keep && len(got) != 36 {
				t.Errorf("expected a generated uuid, got %q", got)
			}
		})
	}
}

func TestLogger_IncludesIdentityAndRoute(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/consultations/c-9", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/consultations/:id")
	c.Set("request_id", "req-123")

	handler := func(c echo.Context) error {
		c.SetRequest(c.Request().WithContext(auth.WithIdentity(c.Request().Context(), "acct-1", auth.RolePatient)))
		return apperr.NotFound("consultation not found")
	}
	_ = Logger(zerolog.New(&buf))(handler)(c)

	out := buf.String()
	for _, want := range []string{
		`"request_id":"req-123"`,
		`"user_id":"acct-1"`,
		`"role":"patient"`,
		`"route":"/api/consultations/:id"`,
		`"status":404`,
		`"level":"warn"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log line to contain %s, got %s", want, out)
		}
	}
	if strings.Contains(out, "c-9") {
		t.Errorf("expected record id to stay out of the log, got %s", out)
	}
}

func TestLogger_LevelByOutcome(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		handler echo.HandlerFunc
		level   string
	}{
		{"success", "/api/chat", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, `"level":"info"`},
		{"internal error", "/api/chat", func(c echo.Context) error {
			return echo.NewHTTPError(http.StatusInternalServerError, "boom")
		}, `"level":"error"`},
		{"health probe", "/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, `"level":"debug"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			e := echo.New()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, tt.path, nil), httptest.NewRecorder())
			c.SetPath(tt.path)

			_ = Logger(zerolog.New(&buf))(tt.handler)(c)
			if !strings.Contains(buf.String(), tt.level) {
				t.Errorf("expected %s, got %s", tt.level, buf.String())
			}
		})
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/prescriptions", nil), rec)
	c.SetPath("/api/prescriptions")

	_ = Recovery(zerolog.New(&buf))(func(c echo.Context) error {
		panic("nil medication list")
	})(c)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	out := buf.String()
	for _, want := range []string{"panic recovered", "nil medication list", `"route":"/api/prescriptions"`, `"stack"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to contain %s, got %s", want, out)
		}
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ok", nil), rec)

	err := Recovery(zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
