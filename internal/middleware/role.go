package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/title-reviews/internal/model"
)

// RequireRole rejects callers whose role is not in roles: 401 for
// anonymous callers, 403 otherwise.  Superusers pass every gate.  It runs
// after Authenticate and only short-circuits obviously unauthorized
// requests; the service still applies the full access policy.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			a := ActorFrom(c)
			if !a.IsAuthenticated() {
				return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "authentication credentials were not provided"})
			}
			if !a.Superuser && !allowed[a.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"detail": "forbidden"})
			}
			return next(c)
		}
	}
}

// RequireAuthenticated admits any authenticated caller.
func RequireAuthenticated() echo.MiddlewareFunc {
	return RequireRole(model.RoleUser, model.RoleModerator, model.RoleAdmin)
}
