package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewEcho_Routes(t *testing.T) {
	setupEnv(t)
	a, err := newApp(context.Background())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.close()
	e := newEcho(a)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"patients without session", http.MethodGet, "/api/v1/patients", "", http.StatusUnauthorized},
		{"bad login", http.MethodPost, "/api/v1/auth/login", `{"username":"admin","password":"wrong-password"}`, http.StatusUnauthorized},
		{"match without session", http.MethodPost, "/api/v1/match", `{}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("expected a request id header")
			}
		})
	}
}
