package prescription

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medilink/telehealth/internal/platform/apperr"
	"github.com/medilink/telehealth/internal/platform/auth"
)

func newRequest(method, target, body, id, role string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req.WithContext(auth.WithIdentity(req.Context(), id, role))
}

func TestHandler_Create(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	body := `{
		"patient_id": "patient-1",
		"consultation_id": "consult-1",
		"diagnosis": "Migraine",
		"medications": [{"name":"Sumatriptan","dosage":"50mg","frequency":"as needed","duration":"10 days","quantity":6}]
	}`
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, "/api/prescriptions", body, doctorID, auth.RoleDoctor), rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var p Prescription
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.DoctorID != doctorID || !p.IsActive || len(p.Medications) != 1 {
		t.Errorf("unexpected prescription: %+v", p)
	}
}

func TestHandler_List_DispatchesOnRole(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	if _, err := svc.Create(context.Background(), validInput()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		name  string
		id    string
		role  string
		query string
		total int
	}{
		{"patient", patientID, auth.RolePatient, "", 1},
		{"patient inactive only", patientID, auth.RolePatient, "?is_active=false", 0},
		{"other patient", otherPatientID, auth.RolePatient, "", 0},
		{"doctor", doctorID, auth.RoleDoctor, "", 1},
		{"doctor filtered by patient", doctorID, auth.RoleDoctor, "?patient_id=patient-2", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(newRequest(http.MethodGet, "/api/prescriptions"+tt.query, "", tt.id, tt.role), rec)
			if err := h.List(c); err != nil {
				t.Fatalf("list: %v", err)
			}
			var resp struct {
				Total int `json:"total"`
			}
			json.Unmarshal(rec.Body.Bytes(), &resp)
			if resp.Total != tt.total {
				t.Errorf("expected total %d, got %d", tt.total, resp.Total)
			}
		})
	}
}

func TestHandler_List_Rejects(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	c := e.NewContext(newRequest(http.MethodGet, "/api/prescriptions", "", "admin-1", auth.RoleAdmin), httptest.NewRecorder())
	if err := h.List(c); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for admin, got %v", err)
	}

	c = e.NewContext(newRequest(http.MethodGet, "/api/prescriptions?is_active=maybe", "", patientID, auth.RolePatient), httptest.NewRecorder())
	if err := h.List(c); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_GetUpdateDeactivate(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	p, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	c := e.NewContext(newRequest(http.MethodGet, "/", "", otherPatientID, auth.RolePatient), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(p.ID)
	if err := h.Get(c); apperr.HTTPStatus(err) != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}

	rec := httptest.NewRecorder()
	c = e.NewContext(newRequest(http.MethodPut, "/", `{"notes":"review in a week"}`, doctorID, auth.RoleDoctor), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID)
	if err := h.Update(c); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"notes":"review in a week"`) {
		t.Errorf("expected notes in response, got %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(newRequest(http.MethodPut, "/", "", doctorID, auth.RoleDoctor), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID)
	if err := h.Deactivate(c); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"is_active":false`) {
		t.Errorf("expected inactive prescription, got %s", rec.Body.String())
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	svc, _, _ := newTestService()
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api"))

	want := map[string]bool{
		"POST /api/prescriptions":               false,
		"GET /api/prescriptions":                false,
		"GET /api/prescriptions/:id":            false,
		"PUT /api/prescriptions/:id":            false,
		"PUT /api/prescriptions/:id/deactivate": false,
	}
	for _, r := range e.Routes() {
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
