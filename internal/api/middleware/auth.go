package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/quardintel/product-catalog/internal/core/domain"
	"github.com/quardintel/product-catalog/internal/core/ports"
	"github.com/quardintel/product-catalog/internal/metrics"
)

// PublicPaths are never inspected by Authenticate. Entries ending in "*"
// match by prefix.
var PublicPaths = []string{
	"/auth/login",
	"/auth/register",
	"/health",
	"/health/ready",
	"/swagger/*",
	"/metrics",
}

// PathSkipper returns a skipper matching the request path against paths.
func PathSkipper(paths ...string) echomiddleware.Skipper {
	return func(c echo.Context) bool {
		p := c.Request().URL.Path
		for _, allowed := range paths {
			if prefix, ok := strings.CutSuffix(allowed, "*"); ok {
				if strings.HasPrefix(p, prefix) {
					return true
				}
				continue
			}
			if p == allowed {
				return true
			}
		}
		return false
	}
}

// Authenticate resolves a bearer token to a Principal attached to the request
// context. A request without a token, or whose subject no longer exists,
// continues unauthenticated and is left to RequireRoles. Expired and invalid
// tokens end the request with 401.
func Authenticate(tokens ports.TokenValidator, users ports.IdentityStore, log zerolog.Logger, skipper echomiddleware.Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = PathSkipper(PublicPaths...)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}

			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return next(c)
			}

			subject, err := tokens.Validate(raw)
			switch {
			case errors.Is(err, domain.ErrTokenExpired):
				metrics.AuthFailuresTotal.WithLabelValues("token_expired").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "token expired").SetInternal(err)
			case err != nil:
				metrics.AuthFailuresTotal.WithLabelValues("token_invalid").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token").SetInternal(err)
			}

			req := c.Request()
			user, err := users.FindByUsername(req.Context(), subject)
			if err != nil {
				if !errors.Is(err, domain.ErrUserNotFound) {
					log.Error().Err(err).Str("username", subject).Msg("principal lookup failed")
				}
				metrics.AuthFailuresTotal.WithLabelValues("unknown_subject").Inc()
				return next(c)
			}

			principal := domain.Principal{Username: user.Username, Role: user.Role}
			c.SetRequest(req.WithContext(domain.ContextWithPrincipal(req.Context(), principal)))
			return next(c)
		}
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Any other scheme counts as no token.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
