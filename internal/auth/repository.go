// internal/auth/repository.go
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"lending/internal/store"
)

// Repository stores users in Postgres.
type Repository struct {
	db sqlx.ExtContext
}

func NewRepository(db sqlx.ExtContext) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (email, password_hash, salt, is_staff)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query, user.Email, user.PasswordHash, user.Salt, user.IsStaff).
		Scan(&user.ID, &user.CreatedAt)
	if store.IsViolation(err, store.CodeUniqueViolation, "") {
		return fmt.Errorf("%w: %s", ErrEmailTaken, user.Email)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, salt, is_staff, created_at
		FROM users
		WHERE email = $1
	`
	user := &User{}
	if err := sqlx.GetContext(ctx, r.db, user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}
