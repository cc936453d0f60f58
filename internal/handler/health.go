package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Check probes one dependency, e.g. the database or Redis.
type Check func(ctx context.Context) error

// Health reports liveness plus the state of each registered dependency.
// It answers 200 when every check passes and 503 otherwise, so load
// balancers can take an instance out of rotation.
func Health(checks map[string]Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "up"
		}
		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		return c.JSON(status, echo.Map{"status": state, "dependencies": deps})
	}
}
