package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quardintel/product-catalog/internal/core/domain"
	"github.com/quardintel/product-catalog/internal/core/ports"
)

// AuthService implements registration and login.
type AuthService struct {
	users  ports.IdentityStore
	hasher ports.PasswordHasher
	tokens ports.TokenIssuer
	logger zerolog.Logger
}

func NewAuthService(users ports.IdentityStore, hasher ports.PasswordHasher, tokens ports.TokenIssuer, logger zerolog.Logger) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens, logger: logger}
}

// Register creates an account. The role is derived from the email domain.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*ports.RegisterResult, error) {
	if err := s.ensureAvailable(ctx, username, email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := domain.RoleForEmail(email)
	created, err := s.users.Create(ctx, &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("username", created.Username).Str("role", string(created.Role)).Msg("user registered")

	return &ports.RegisterResult{
		Message: "User registered successfully with role: " + string(created.Role),
		User:    created,
	}, nil
}

// ensureAvailable checks username first, then email. The store enforces the
// same constraints, so a concurrent registration still fails cleanly.
func (s *AuthService) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return domain.ErrUsernameTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}
	return nil
}

// Login verifies credentials and issues a token. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		s.logger.Debug().Str("username", username).Msg("password mismatch")
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &ports.LoginResult{Token: token, User: user}, nil
}
