package domain

import (
	"context"
	"errors"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access forbidden")
	ErrTokenInvalid    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
)

// Principal is the identity resolved for a single in-flight request. It lives
// only in that request's context and is never shared or persisted.
type Principal struct {
	Username string
	Role     Role
}

// HasAnyRole reports whether the principal's role is one of roles. Roles are
// not hierarchical: ADMIN does not imply USER.
func (p Principal) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

type principalContextKey struct{}

// ContextWithPrincipal returns a copy of ctx carrying p.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal attached by the authentication
// middleware, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
