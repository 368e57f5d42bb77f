package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnauthenticated = errors.New("auth: user not authenticated")
	ErrForbidden       = errors.New("auth: permission denied")
)

// Session is the authenticated caller. It is passed explicitly to every
// operation that needs to know who is acting.
type Session struct {
	Username   string
	Role       Role
	LoggedInAt time.Time

	// Set when the session was rebuilt from a token.
	TokenID   string
	ExpiresAt time.Time
}

// Authenticated reports whether the session belongs to a known user.
func (s Session) Authenticated() bool {
	return s.Username != "" && s.Role != ""
}

// Require returns ErrUnauthenticated for an empty session and ErrForbidden
// when the role lacks the capability.
func (s Session) Require(can Capability, what string) error {
	if !s.Authenticated() {
		return ErrUnauthenticated
	}
	if !can(s.Role) {
		return fmt.Errorf("%w: only %s", ErrForbidden, what)
	}
	return nil
}

// SystemSession is the identity used by unattended interfaces such as the
// MLLP listener. It may upload reports and nothing else.
func SystemSession(name string) Session {
	return Session{Username: name, Role: RoleNurse}
}

type sessionKey struct{}

// WithSession stores the session on the context for HTTP handlers.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by WithSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
