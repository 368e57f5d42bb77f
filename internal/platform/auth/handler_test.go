package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newTestHandler(t *testing.T) (*Handler, *TokenIssuer) {
	t.Helper()
	s := newTestStore(t)
	if _, err := s.EnsureAdmin(context.Background(), "admin", "admin-password"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	issuer := NewTokenIssuer(testSigningKey, time.Hour)
	return NewHandler(s, issuer), issuer
}

func postJSON(e *echo.Echo, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_Login(t *testing.T) {
	h, issuer := newTestHandler(t)
	e := echo.New()

	c, rec := postJSON(e, `{"username":"admin","password":"admin-password"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Role != RoleAdmin {
		t.Errorf("expected admin role, got %s", resp.Role)
	}
	sess, err := issuer.Verify(resp.Token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if sess.Username != "admin" {
		t.Errorf("expected admin, got %q", sess.Username)
	}

	c, _ = postJSON(e, `{"username":"admin","password":"nope"}`)
	expectStatus(t, h.Login(c), http.StatusUnauthorized)
}

func TestHandler_CreateUser(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	c, rec := postJSON(e, `{"username":"drwho","password":"tardis123","role":"doctor"}`)
	c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), adminSession)))
	if err := h.CreateUser(c); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	c, _ = postJSON(e, `{"username":"drwho","password":"tardis123","role":"doctor"}`)
	c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), adminSession)))
	expectStatus(t, h.CreateUser(c), http.StatusConflict)

	c, _ = postJSON(e, `{"username":"someone","password":"password1","role":"janitor"}`)
	c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), adminSession)))
	expectStatus(t, h.CreateUser(c), http.StatusBadRequest)

	nurse := Session{Username: "nina", Role: RoleNurse}
	c, _ = postJSON(e, `{"username":"someone","password":"password1","role":"nurse"}`)
	c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), nurse)))
	expectStatus(t, h.CreateUser(c), http.StatusForbidden)
}

func TestHandler_Me(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	expectStatus(t, h.Me(c), http.StatusUnauthorized)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithSession(req.Context(), Session{Username: "drwho", Role: RoleDoctor}))
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	if err := h.Me(c); err != nil {
		t.Fatalf("me: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"role":"doctor"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_Logout(t *testing.T) {
	h, issuer := newTestHandler(t)
	e := echo.New()

	tok, err := issuer.Issue(Session{Username: "drwho", Role: RoleDoctor})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	sess, err := issuer.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	if err := h.Logout(e.NewContext(req, rec)); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if _, err := issuer.Verify(tok); err == nil {
		t.Error("expected the token to be rejected after logout")
	}
}
