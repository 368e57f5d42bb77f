package db

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is anything whose reachability can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Check names one dependency reported by the health endpoint.
type Check struct {
	Name   string
	Pinger Pinger
}

// ComponentStatus is the health of one dependency.
type ComponentStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// RunChecks pings every dependency with a shared timeout.
func RunChecks(ctx context.Context, checks []Check) ([]ComponentStatus, bool) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	healthy := true
	out := make([]ComponentStatus, 0, len(checks))
	for _, c := range checks {
		st := ComponentStatus{Name: c.Name, Healthy: true}
		if err := c.Pinger.Ping(ctx); err != nil {
			st.Healthy = false
			st.Error = err.Error()
			healthy = false
		}
		out = append(out, st)
	}
	return out, healthy
}

// HealthHandler returns a handler for the health check endpoint. It answers
// 503 when any dependency is unreachable.
func HealthHandler(checks ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		components, healthy := RunChecks(c.Request().Context(), checks)
		if !healthy {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status":     "unhealthy",
				"components": components,
			})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":     "healthy",
			"components": components,
		})
	}
}
