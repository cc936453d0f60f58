// Package handler exposes the HTTP API.  Handlers decode and validate the
// request, resolve the actor set by the authentication middleware and call
// into the service layer; every error is rendered by ErrorHandler.
package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/title-reviews/internal/apperr"
	"github.com/iliyamo/title-reviews/internal/service"
)

// requestTimeout bounds the store work done for a single request.
const requestTimeout = 5 * time.Second

// API bundles the dependencies shared by all handlers.
type API struct {
	Svc *service.Service
}

func NewAPI(svc *service.Service) *API { return &API{Svc: svc} }

func reqContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// bind decodes the body into req and validates it.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return bindErr(err)
	}
	return c.Validate(req)
}

// idParam parses a numeric path parameter.  Anything that is not a
// positive integer cannot name an existing row, so it is NotFound.
func idParam(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.NotFound("not found")
	}
	return id, nil
}
