package domain

import (
	"errors"
	"strings"
	"time"
)

// Role is a coarse permission label attached to a user.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// AdminEmailDomain is the only role-assignment policy the catalog has: accounts
// registered with an address under this domain become administrators, every
// other account is a regular user.
const AdminEmailDomain = "@quardintel.com"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrEmailTaken         = errors.New("email is already in use")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// RoleForEmail returns the role a new account registered with email receives.
func RoleForEmail(email string) Role {
	if strings.HasSuffix(strings.ToLower(strings.TrimSpace(email)), AdminEmailDomain) {
		return RoleAdmin
	}
	return RoleUser
}

// User models an authenticated actor in the system.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
