package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// serve runs h wrapped in mw against req and returns the recorder, the
// handler error and the echo context used.
func serve(mw echo.MiddlewareFunc, req *http.Request, h echo.HandlerFunc) (*httptest.ResponseRecorder, echo.Context, error) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	return rec, c, mw(h)(c)
}

var errBoom = errors.New("boom")

func ok(c echo.Context) error { return c.NoContent(http.StatusOK) }

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON log line, got %q", buf.String())
	}
	return line
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"missing", "", false},
		{"kept", "lab-feed-42", true},
		{"oversized", strings.Repeat("x", 200), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec, c, err := serve(RequestID(), req, ok)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := rec.Header().Get(RequestIDHeader)
			if tt.keep && got != tt.incoming {
				t.Errorf("expected %q to be kept, got %q", tt.incoming, got)
			}
			if !tt.keep && len(got) != 36 {
				t.Errorf("expected a generated uuid, got %q", got)
			}
			if c.Get("request_id") != got {
				t.Errorf("context id %v does not match header %q", c.Get("request_id"), got)
			}
		})
	}
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name    string
		handler echo.HandlerFunc
		level   string
		status  float64
	}{
		{"success", ok, "info", 200},
		{"client error", func(echo.Context) error { return echo.NewHTTPError(http.StatusForbidden, "nope") }, "warn", 403},
		{"plain error", func(echo.Context) error { return errBoom }, "error", 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			req := httptest.NewRequest(http.MethodGet, "/patients?q=MRN1234567", nil)
			serve(Logger(zerolog.New(&buf)), req, func(c echo.Context) error {
				c.Set("request_id", "rid-1")
				c.Set("username", "drsmith")
				return tt.handler(c)
			})

			line := decodeLine(t, &buf)
			if line["level"] != tt.level || line["status"] != tt.status {
				t.Errorf("expected %s with status %.0f, got %v", tt.level, tt.status, line)
			}
			if line["path"] != "/patients" || line["user"] != "drsmith" {
				t.Errorf("expected path and user, got %v", line)
			}
			if strings.Contains(buf.String(), "MRN1234567") {
				t.Error("query string must not be logged")
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	req := httptest.NewRequest(http.MethodPost, "/reports", nil)
	_, _, err := serve(Recovery(zerolog.New(&buf)), req, func(echo.Context) error {
		panic("parser exploded")
	})

	httpErr, isHTTP := err.(*echo.HTTPError)
	if !isHTTP || httpErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected a 500 HTTPError, got %v", err)
	}
	line := decodeLine(t, &buf)
	if line["panic"] != "parser exploded" || line["method"] != "POST" {
		t.Errorf("unexpected log line %v", line)
	}

	buf.Reset()
	if _, _, err := serve(Recovery(zerolog.New(&buf)), httptest.NewRequest(http.MethodGet, "/", nil), ok); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no log output, got %q", buf.String())
	}
}
