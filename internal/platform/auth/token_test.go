package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(testSigningKey, 8*time.Hour)
	at := time.Now().Truncate(time.Second)
	tok, err := issuer.Issue(Session{Username: "nina", Role: RoleNurse, LoggedInAt: at})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	sess, err := issuer.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sess.Username != "nina" || sess.Role != RoleNurse {
		t.Errorf("unexpected session %+v", sess)
	}
	if !sess.LoggedInAt.Equal(at) {
		t.Errorf("expected login time %v, got %v", at, sess.LoggedInAt)
	}
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := NewTokenIssuer(testSigningKey, time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := issuer.Issue(Session{Username: "nina", Role: RoleNurse})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	issuer.now = time.Now
	if _, err := issuer.Verify(tok); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated for expired token, got %v", err)
	}
}

func TestTokenIssuer_OldLoginStillValid(t *testing.T) {
	issuer := NewTokenIssuer(testSigningKey, time.Hour)
	at := time.Date(2024, 1, 16, 9, 30, 0, 0, time.UTC)
	tok, err := issuer.Issue(Session{Username: "nina", Role: RoleNurse, LoggedInAt: at})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	sess, err := issuer.Verify(tok)
	if err != nil {
		t.Fatalf("expected a token for an old login to verify, got %v", err)
	}
	if !sess.LoggedInAt.Equal(at) {
		t.Errorf("expected login time %v, got %v", at, sess.LoggedInAt)
	}
	if sess.ExpiresAt.Before(time.Now()) {
		t.Errorf("expected expiry after now, got %v", sess.ExpiresAt)
	}
}

func TestTokenIssuer_RejectsUnknownRole(t *testing.T) {
	tok := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   "eve",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: Role("superuser"),
	}, testSigningKey)
	if _, err := NewTokenIssuer(testSigningKey, time.Hour).Verify(tok); err == nil {
		t.Error("expected unknown role to be rejected")
	}
}

func TestTokenIssuer_RequiresSession(t *testing.T) {
	if _, err := NewTokenIssuer(testSigningKey, time.Hour).Issue(Session{}); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}
