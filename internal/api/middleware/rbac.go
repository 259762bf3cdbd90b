package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/quardintel/product-catalog/internal/core/domain"
	"github.com/quardintel/product-catalog/internal/metrics"
)

// RequireRoles enforces role-based access control on a route. Membership is
// exact: no role implies another. Rejections are returned as
// domain.ErrUnauthenticated or domain.ErrForbidden and rendered by the
// central error handler.
func RequireRoles(roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := domain.PrincipalFromContext(c.Request().Context())
			if !ok {
				metrics.AuthFailuresTotal.WithLabelValues("unauthenticated").Inc()
				return domain.ErrUnauthenticated
			}
			if !principal.HasAnyRole(roles...) {
				metrics.AuthFailuresTotal.WithLabelValues("forbidden").Inc()
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
