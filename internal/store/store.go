// internal/store/store.go
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// SQLSTATE codes the repositories care about.
const (
	CodeCheckViolation      = "23514"
	CodeForeignKeyViolation = "23503"
	CodeUniqueViolation     = "23505"
)

//go:embed schema.sql
var schema string

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Open connects to Postgres through either lib/pq ("postgres") or the pgx
// stdlib driver ("pgx") and verifies the connection.
func Open(ctx context.Context, driver, dsn string, opts Options) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Violation describes a constraint error raised by Postgres.
type Violation struct {
	Code       string
	Constraint string
}

// AsViolation extracts SQLSTATE and constraint name from either driver's
// error type.
func AsViolation(err error) (Violation, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return Violation{Code: string(pqErr.Code), Constraint: pqErr.Constraint}, true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return Violation{Code: pgErr.Code, Constraint: pgErr.ConstraintName}, true
	}

	return Violation{}, false
}

// IsViolation reports whether err is a constraint error with the given code.
// An empty constraint matches any constraint.
func IsViolation(err error, code, constraint string) bool {
	v, ok := AsViolation(err)
	if !ok || v.Code != code {
		return false
	}
	return constraint == "" || v.Constraint == constraint
}
