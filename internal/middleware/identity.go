package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/title-reviews/internal/policy"
)

// actorKey is the echo context key holding the resolved policy.Actor.
const actorKey = "actor"

// ActorFrom returns the actor resolved by the Authenticate middleware, or
// an anonymous actor when none was resolved.
func ActorFrom(c echo.Context) policy.Actor {
	if a, ok := c.Get(actorKey).(policy.Actor); ok {
		return a
	}
	return policy.Anonymous()
}

// userID identifies the caller in rate limit keys.  It returns "anon" for
// anonymous callers.
func userID(c echo.Context) string {
	a := ActorFrom(c)
	if !a.IsAuthenticated() {
		return "anon"
	}
	return strconv.FormatUint(a.UserID, 10)
}
