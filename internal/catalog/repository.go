// internal/catalog/repository.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const bookColumns = `id, title, author, cover, inventory, daily_fee`

// Repository persists books in Postgres. It runs against either the pool or
// an open transaction, so the inventory operations join whatever transaction
// the caller started.
type Repository struct {
	db sqlx.ExtContext
}

// NewRepository binds a repository to a *sqlx.DB or *sqlx.Tx.
func NewRepository(db sqlx.ExtContext) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, book *Book) error {
	query := `
		INSERT INTO books (title, author, cover, inventory, daily_fee)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRowxContext(ctx, query, book.Title, book.Author, book.Cover, book.Inventory, book.DailyFee).Scan(&book.ID)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Book, error) {
	return r.get(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
}

// GetForUpdate reads the book and locks its row until the surrounding
// transaction ends.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (*Book, error) {
	return r.get(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repository) get(ctx context.Context, query string, id int64) (*Book, error) {
	book := &Book{}
	if err := sqlx.GetContext(ctx, r.db, book, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrBookNotFound, id)
		}
		return nil, fmt.Errorf("get book %d: %w", id, err)
	}
	return book, nil
}

func (r *Repository) List(ctx context.Context) ([]*Book, error) {
	var books []*Book
	if err := sqlx.SelectContext(ctx, r.db, &books, `SELECT `+bookColumns+` FROM books ORDER BY title, id`); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// DecrementInventory takes one copy off the shelf. The caller has already
// validated stock; the guard here only stops the counter from going negative.
func (r *Repository) DecrementInventory(ctx context.Context, book *Book) error {
	query := `
		UPDATE books
		SET inventory = inventory - 1
		WHERE id = $1 AND inventory > 0
		RETURNING inventory
	`
	err := r.db.QueryRowxContext(ctx, query, book.ID).Scan(&book.Inventory)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrOutOfStock, book.Title)
	}
	if err != nil {
		return fmt.Errorf("decrement inventory of book %d: %w", book.ID, err)
	}
	return nil
}

// IncrementInventory puts one copy back on the shelf.
func (r *Repository) IncrementInventory(ctx context.Context, book *Book) error {
	query := `
		UPDATE books
		SET inventory = inventory + 1
		WHERE id = $1
		RETURNING inventory
	`
	err := r.db.QueryRowxContext(ctx, query, book.ID).Scan(&book.Inventory)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrBookNotFound, book.ID)
	}
	if err != nil {
		return fmt.Errorf("increment inventory of book %d: %w", book.ID, err)
	}
	return nil
}
