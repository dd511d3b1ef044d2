// internal/auth/domain.go
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
)

// User is an account allowed to borrow books. Staff users can see and
// filter every user's borrowings.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Salt         string    `json:"-" db:"salt"`
	IsStaff      bool      `json:"is_staff" db:"is_staff"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Requester is the identity on whose behalf an operation runs.
type Requester struct {
	UserID  int64
	IsStaff bool
}

type requesterKey struct{}

// WithRequester stores r in ctx. Only the HTTP layer uses this; services take
// the requester as an explicit argument.
func WithRequester(ctx context.Context, r Requester) context.Context {
	return context.WithValue(ctx, requesterKey{}, r)
}

// RequesterFrom returns the authenticated requester, if any.
func RequesterFrom(ctx context.Context) (Requester, bool) {
	r, ok := ctx.Value(requesterKey{}).(Requester)
	return r, ok
}
