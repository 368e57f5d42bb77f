package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "reportlink"

// Claims carry the session inside an HS256 token. The subject is the
// username; LoginAt keeps the original login time across reissues.
type Claims struct {
	jwt.RegisteredClaims
	Role    Role             `json:"role"`
	LoginAt *jwt.NumericDate `json:"login_at,omitempty"`
}

// TokenIssuer signs and verifies session tokens. Tokens revoked through
// Revoke stop verifying for the rest of the process lifetime.
type TokenIssuer struct {
	key     []byte
	ttl     time.Duration
	now     func() time.Time
	revoked *Revocations
}

func NewTokenIssuer(key []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{key: key, ttl: ttl, now: time.Now, revoked: NewRevocations()}
}

// Issue returns a signed token for the session, valid for the issuer's TTL
// from now. The session's login time is carried separately.
func (t *TokenIssuer) Issue(s Session) (string, error) {
	if !s.Authenticated() {
		return "", ErrUnauthenticated
	}
	issued := t.now()
	loginAt := s.LoggedInAt
	if loginAt.IsZero() {
		loginAt = issued
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   s.Username,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(t.ttl)),
		},
		Role:    s.Role,
		LoginAt: jwt.NewNumericDate(loginAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and rebuilds the session it carries.
func (t *TokenIssuer) Verify(tokenStr string) (Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return Session{}, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}
	role, err := ParseRole(string(claims.Role))
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.ID != "" && t.revoked.IsRevoked(claims.ID) {
		return Session{}, fmt.Errorf("%w: token revoked", ErrUnauthenticated)
	}
	s := Session{Username: claims.Subject, Role: role, TokenID: claims.ID}
	switch {
	case claims.LoginAt != nil:
		s.LoggedInAt = claims.LoginAt.Time
	case claims.IssuedAt != nil:
		s.LoggedInAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Revoke invalidates the token the session was verified from.
func (t *TokenIssuer) Revoke(s Session) {
	expires := s.ExpiresAt
	if expires.IsZero() {
		expires = t.now().Add(t.ttl)
	}
	t.revoked.Revoke(s.TokenID, expires)
}
