package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// SessionMiddleware verifies the bearer token and stores the resulting
// Session on the request context.
func SessionMiddleware(issuer *TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			sess, err := issuer.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set("username", sess.Username)
			c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), sess)))
			return next(c)
		}
	}
}

// SessionFromEcho returns the request's session, or the zero Session.
func SessionFromEcho(c echo.Context) Session {
	s, _ := SessionFromContext(c.Request().Context())
	return s
}
