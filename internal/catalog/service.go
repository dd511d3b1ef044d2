// internal/catalog/service.go
package catalog

import (
	"context"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, input NewBook) (*Book, error)
	GetBook(ctx context.Context, id int64) (*Book, error)
	ListBooks(ctx context.Context) ([]*Book, error)
}

// Store is the persistence the catalog service needs outside of a
// borrowing transaction.
type Store interface {
	Create(ctx context.Context, book *Book) error
	Get(ctx context.Context, id int64) (*Book, error)
	List(ctx context.Context) ([]*Book, error)
}

// NewBook is the validated input for AddBook.
type NewBook struct {
	Title     string `json:"title" validate:"required,max=255"`
	Author    string `json:"author" validate:"required,max=255"`
	Cover     Cover  `json:"cover" validate:"required,oneof=hard soft"`
	Inventory int    `json:"inventory" validate:"gte=0"`
	DailyFee  Money  `json:"daily_fee" validate:"gte=0"`
}
