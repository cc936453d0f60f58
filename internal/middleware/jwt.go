package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/title-reviews/internal/policy"
)

// Authenticator resolves a raw bearer token to an actor.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (policy.Actor, error)
}

// Authenticate resolves the caller before any handler runs.  Requests
// without a bearer token proceed as anonymous; the access policy decides
// later whether anonymous callers may do what they ask.  A bearer token
// that does not verify is rejected with 401 rather than downgraded.
func Authenticate(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return next(c)
			}
			scheme, raw, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "malformed authorization header"})
			}
			a, err := auth.Authenticate(c.Request().Context(), strings.TrimSpace(raw))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "invalid or expired token"})
			}
			c.Set(actorKey, a)
			return next(c)
		}
	}
}
