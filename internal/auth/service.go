// internal/auth/service.go
package auth

import (
	"context"
)

// Service defines the interface for the authentication service.
type Service interface {
	Register(ctx context.Context, email, password string, staff bool) (*User, error)
	Login(ctx context.Context, email, password string) (string, error)
}

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	UserByEmail(ctx context.Context, email string) (*User, error)
}
