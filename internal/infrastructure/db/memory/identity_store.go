// Package memory provides in-process implementations of the persistence
// ports. They back STORE_DRIVER=memory and the test suites.
package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/quardintel/product-catalog/internal/core/domain"
)

// IdentityStore keeps users in a map keyed by username.
type IdentityStore struct {
	mu     sync.RWMutex
	users  map[string]*domain.User
	nextID int64
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func (s *IdentityStore) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return nil, domain.ErrUsernameTaken
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return nil, domain.ErrEmailTaken
		}
	}

	s.nextID++
	stored := cloneUser(user)
	stored.ID = strconv.FormatInt(s.nextID, 10)
	s.users[stored.Username] = stored
	return cloneUser(stored), nil
}

func (s *IdentityStore) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *IdentityStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// Delete removes a user. It exists for tests that exercise tokens outliving
// their account.
func (s *IdentityStore) Delete(_ context.Context, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, username)
}
