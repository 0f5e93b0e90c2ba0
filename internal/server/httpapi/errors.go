package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophsubmit/internal/logging"
	"github.com/dmitrijs2005/gophsubmit/internal/server/auth"
	"github.com/dmitrijs2005/gophsubmit/internal/server/models"
	"github.com/dmitrijs2005/gophsubmit/internal/server/services"
	"github.com/labstack/echo/v4"
)

var (
	errFileNotFound       = echo.NewHTTPError(http.StatusNotFound, "file not found")
	errSubmissionNotFound = echo.NewHTTPError(http.StatusNotFound, "submission not found")
	errMissingToken       = echo.NewHTTPError(http.StatusUnauthorized, "missing upload token")
)

// statusOf maps a service error to a status code. Unknown errors are 500.
func statusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrSizeMismatch):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// newHTTPErrorHandler renders every handler error as {"error": message}.
// Internal errors are logged and hidden from the client.
func newHTTPErrorHandler(logger logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var code int
		var message string

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(code)
			}
		} else {
			code = statusOf(err)
			message = err.Error()
		}

		if code == http.StatusInternalServerError {
			logger.Error(c.Request().Context(), "request failed", "path", c.Request().URL.Path, "error", err)
			message = http.StatusText(code)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, echo.Map{"error": message})
		}
		if err != nil {
			logger.Error(c.Request().Context(), "error response failed", "error", err)
		}
	}
}
