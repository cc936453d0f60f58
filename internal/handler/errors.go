package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/title-reviews/internal/apperr"
)

// statusOf maps a domain error kind to its HTTP status.
func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindPermissionDenied:
		return http.StatusForbidden
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders every error returned by a handler as JSON.
// Validation errors carry a field -> message map; internal errors are
// logged and hidden from the client.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := render(err)
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"error", err,
			)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.WarnContext(c.Request().Context(), "write error response", "error", err)
		}
	}
}

func render(err error) (int, echo.Map) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		status := statusOf(ae.Kind)
		switch {
		case ae.Kind == apperr.KindInternal:
			return status, echo.Map{"detail": "internal server error"}
		case len(ae.Fields) > 0:
			out := echo.Map{}
			for f, msg := range ae.Fields {
				out[f] = []string{msg}
			}
			return status, out
		}
		return status, echo.Map{"detail": ae.Message}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return he.Code, echo.Map{"detail": msg}
	}
	return http.StatusInternalServerError, echo.Map{"detail": "internal server error"}
}

// bindErr reports a body that could not be decoded.
func bindErr(err error) error {
	e := apperr.Validation("body", "malformed request body")
	e.Err = err
	return e
}
