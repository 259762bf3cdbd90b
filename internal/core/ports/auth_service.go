package ports

import (
	"context"

	"github.com/quardintel/product-catalog/internal/core/domain"
)

// RegisterResult is returned after a successful registration.
type RegisterResult struct {
	Message string
	User    *domain.User
}

// LoginResult carries the issued token and the authenticated user.
type LoginResult struct {
	Token string
	User  *domain.User
}

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*RegisterResult, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
}

// TokenIssuer signs time-bounded tokens for a subject.
type TokenIssuer interface {
	Issue(subject string, role domain.Role) (string, error)
}

// TokenValidator resolves a token back to its subject. It fails with
// domain.ErrTokenExpired for a correctly signed but expired token and
// domain.ErrTokenInvalid for anything else.
type TokenValidator interface {
	Validate(token string) (string, error)
}
