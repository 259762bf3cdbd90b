package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/quardintel/product-catalog/internal/core/domain"
)

const (
	defaultTokenTTL = time.Hour
	signingKeySize  = 64
)

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 tokens. The signing key lives only
// in memory: every token issued by this process becomes unverifiable once the
// process restarts.
type TokenService struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenService generates a fresh random signing key.
func NewTokenService(ttl time.Duration) (*TokenService, error) {
	key := make([]byte, signingKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return newTokenService(key, ttl), nil
}

func newTokenService(key []byte, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenService{key: key, ttl: ttl, now: time.Now}
}

// Issue signs a token for subject valid for the configured TTL.
func (s *TokenService) Issue(subject string, role domain.Role) (string, error) {
	now := s.now()
	claims := tokenClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Validate verifies the signature and then the expiry of token and returns its
// subject.
func (s *TokenService) Validate(token string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	var claims tokenClaims
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", domain.ErrTokenInvalid
	}
	return claims.Subject, nil
}
