package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestAsViolationUnderstandsBothDrivers(t *testing.T) {
	pqErr := fmt.Errorf("insert: %w", &pq.Error{Code: CodeCheckViolation, Constraint: "borrow_date_lte_return_date"})
	v, ok := AsViolation(pqErr)
	assert.True(t, ok)
	assert.Equal(t, Violation{Code: CodeCheckViolation, Constraint: "borrow_date_lte_return_date"}, v)

	pgErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: CodeForeignKeyViolation, ConstraintName: "borrowings_book_id_fkey"})
	v, ok = AsViolation(pgErr)
	assert.True(t, ok)
	assert.Equal(t, CodeForeignKeyViolation, v.Code)

	_, ok = AsViolation(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsViolation(t *testing.T) {
	err := &pq.Error{Code: CodeCheckViolation, Constraint: "books_inventory_non_negative"}

	assert.True(t, IsViolation(err, CodeCheckViolation, ""))
	assert.True(t, IsViolation(err, CodeCheckViolation, "books_inventory_non_negative"))
	assert.False(t, IsViolation(err, CodeCheckViolation, "borrow_date_lte_return_date"))
	assert.False(t, IsViolation(err, CodeUniqueViolation, ""))
}
