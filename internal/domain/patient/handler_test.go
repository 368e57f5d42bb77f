package patient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/reportlink/internal/platform/auth"
	"github.com/ehr/reportlink/internal/platform/reporting"
	"github.com/ehr/reportlink/pkg/pagination"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	t.Helper()
	svc, _ := newTestService(t)
	seedPatients(t, svc)
	return NewHandler(svc), echo.New()
}

func doctorRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req.WithContext(auth.WithSession(req.Context(), drSmith))
}

func TestHandler_CreatePatient(t *testing.T) {
	h, e := newTestHandler(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(doctorRequest(http.MethodPost, "/patients", `{"mrn":"MRN2222222","name":"New Patient","dob":"07/04/1976"}`), rec)
	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var p Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.AssignedDoctor != "drsmith" || p.PatientID == "" {
		t.Errorf("unexpected patient: %+v", p)
	}

	c = e.NewContext(doctorRequest(http.MethodPost, "/patients", `{"mrn":"MRN2222222","name":"Again","dob":"07/04/1976"}`), httptest.NewRecorder())
	err := h.CreatePatient(c)
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate MRN, got %v", err)
	}

	c = e.NewContext(doctorRequest(http.MethodPost, "/patients", `{"mrn":"123","name":"X","dob":"07/04/1976"}`), httptest.NewRecorder())
	err = h.CreatePatient(c)
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad MRN, got %v", err)
	}
}

func TestHandler_ListPatientsPaginates(t *testing.T) {
	h, e := newTestHandler(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(doctorRequest(http.MethodGet, "/patients?limit=1", ""), rec)
	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var page pagination.Response[Summary]
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 2 || len(page.Data) != 1 || page.NextOffset == nil {
		t.Errorf("unexpected page: %s", rec.Body.String())
	}
	if page.Data[0].MRN != "MRN1234567" {
		t.Errorf("expected repository order, got %q first", page.Data[0].MRN)
	}
}

func TestHandler_SearchAndGet(t *testing.T) {
	h, e := newTestHandler(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(doctorRequest(http.MethodGet, "/patients/search?q=mary", ""), rec)
	if err := h.SearchPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "MRN7654321") {
		t.Errorf("expected Mary Johnson, got %s", rec.Body.String())
	}

	c = e.NewContext(doctorRequest(http.MethodGet, "/patients/search", ""), httptest.NewRecorder())
	err := h.SearchPatients(c)
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty query, got %v", err)
	}

	c = e.NewContext(doctorRequest(http.MethodGet, "/patients/missing", ""), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("missing")
	err = h.GetPatient(c)
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ExportTransmissions(t *testing.T) {
	h, e := newTestHandler(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(doctorRequest(http.MethodGet, "/transmissions/export", ""), rec)
	if err := h.ExportTransmissions(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != reporting.ContentTypeXLSX {
		t.Errorf("expected xlsx content type, got %q", ct)
	}
	if !strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), ".xlsx") {
		t.Errorf("expected attachment filename, got %q", rec.Header().Get(echo.HeaderContentDisposition))
	}
}

func TestHandler_Forbidden(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/transmissions", nil)
	req = req.WithContext(auth.WithSession(req.Context(), nurse))
	err := h.ListTransmissions(e.NewContext(req, httptest.NewRecorder()))
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}
