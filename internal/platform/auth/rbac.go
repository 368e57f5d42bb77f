package auth

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Role is the tagged kind of a user. Behaviour differences between roles
// are permission checks only, expressed as the predicates below.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDoctor Role = "doctor"
	RoleNurse  Role = "nurse"
)

// ParseRole accepts the lower-case role names stored in users.json.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleDoctor, RoleNurse:
		return r, nil
	}
	return "", fmt.Errorf("auth: unknown role %q", s)
}

func (r Role) String() string { return string(r) }

func (r Role) CanCreateUsers() bool    { return r == RoleAdmin }
func (r Role) CanCreatePatients() bool { return r == RoleDoctor }
func (r Role) CanSearchPatients() bool { return r == RoleDoctor }
func (r Role) CanViewDashboard() bool  { return r == RoleDoctor }
func (r Role) CanUploadReports() bool  { return r == RoleDoctor || r == RoleNurse }

// Capability is one of the Role predicates, e.g. Role.CanUploadReports.
type Capability func(Role) bool

// RequireCapability returns middleware that rejects requests whose session
// lacks the capability. what names the action in the error message.
func RequireCapability(can Capability, what string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, ok := SessionFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			if !can(sess.Role) {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("role %s may not %s", sess.Role, what))
			}
			return next(c)
		}
	}
}
