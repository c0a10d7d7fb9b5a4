package core

import (
	"context"
	"time"
)

// User is a person who can sign in. PasswordHash never leaves the core package
// in a response: it is excluded from JSON.
type User struct {
	ID           int        `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type CreateUserInput struct {
	Username string
	Password string
	FullName string
	// Role defaults to staff when empty.
	Role Role
}

const MinPasswordLength = 6

// MaxPasswordLength is bcrypt's input limit in bytes.
const MaxPasswordLength = 72

func checkPasswordLength(label, password string) error {
	if len(password) < MinPasswordLength {
		return Validationf("%s must be at least %d characters long", label, MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return Validationf("%s must be at most %d bytes long", label, MaxPasswordLength)
	}
	return nil
}

// UserService provides authentication and user administration.
type UserService interface {
	// Authenticate checks credentials for an active user and stamps the login time.
	Authenticate(ctx context.Context, username, password string) (*User, error)

	// GetByID returns a user by primary key.
	GetByID(ctx context.Context, userID int) (*User, error)

	CreateUser(ctx context.Context, in CreateUserInput) (*User, error)

	ChangePassword(ctx context.Context, userID int, current, next string) error
}
