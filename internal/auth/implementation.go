// internal/auth/implementation.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// service implements the Service interface.
type service struct {
	users       UserStore
	tokens      *TokenIssuer
	rateLimiter *rate.Limiter
}

// NewService creates a new auth service. perMinute bounds login attempts
// across the whole process.
func NewService(users UserStore, tokens *TokenIssuer, perMinute int) Service {
	if perMinute <= 0 {
		perMinute = 5
	}
	return &service{
		users:       users,
		tokens:      tokens,
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

// Register stores a new user with a hashed password.
func (s *service) Register(ctx context.Context, email, password string, staff bool) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required")
	}

	hash, salt, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Email:        email,
		PasswordHash: hash,
		Salt:         salt,
		IsStaff:      staff,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and returns a signed access token.
func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	if !s.rateLimiter.Allow() {
		return "", ErrRateLimited
	}

	user, err := s.users.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("authentication failed: %w", err)
	}

	ok, err := VerifyPassword(password, user.Salt, user.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		return "", ErrInvalidCredentials
	}

	return s.tokens.Issue(user)
}
