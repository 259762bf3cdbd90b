package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/quardintel/product-catalog/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}, plus
//     "details" for access-control rejections.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg, Details: errorDetails(err)})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Known domain errors → deterministic HTTP codes. Wrapped errors carry
	// detail worth returning (which field, how much stock).
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, "product not found"
	case errors.Is(err, domain.ErrCategoryNotFound):
		return http.StatusBadRequest, "category not found"
	case errors.Is(err, domain.ErrInvalidSale),
		errors.Is(err, domain.ErrInvalidProduct):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, domain.ErrEmailTaken):
		return http.StatusBadRequest, capitalize(err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusBadRequest, "invalid username or password"
	case errors.Is(err, domain.ErrProductNameTaken),
		errors.Is(err, domain.ErrCategoryTaken):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict, "product was modified concurrently, retry the request"
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, domain.ErrTokenInvalid):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}

// errorDetails returns the user-facing hint for access-control errors.
func errorDetails(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return "Please log in to access this resource."
	case errors.Is(err, domain.ErrForbidden):
		return "You do not have permission to access this resource."
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
