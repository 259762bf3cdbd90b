package ports

import (
	"context"

	"github.com/quardintel/product-catalog/internal/core/domain"
)

// IdentityStore persists user accounts.
type IdentityStore interface {
	// Create inserts a new user and returns it with its assigned ID.
	// Fails with domain.ErrUsernameTaken or domain.ErrEmailTaken on duplicates.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

// PasswordHasher is a one-way hash with verification.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}
