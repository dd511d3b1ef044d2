// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// service implements the Service interface.
type service struct {
	store  Store
	tracer trace.Tracer
}

// NewService creates a new catalog service instance.
func NewService(store Store) Service {
	return &service{
		store:  store,
		tracer: otel.Tracer("lending/catalog"),
	}
}

// AddBook stores a new book. Input is validated by the caller.
func (s *service) AddBook(ctx context.Context, input NewBook) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.add_book")
	defer span.End()

	if !input.Cover.Valid() || input.Inventory < 0 || input.DailyFee < 0 {
		return nil, fmt.Errorf("invalid book %q", input.Title)
	}

	book := &Book{
		Title:     input.Title,
		Author:    input.Author,
		Cover:     input.Cover,
		Inventory: input.Inventory,
		DailyFee:  input.DailyFee,
	}
	if err := s.store.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	span.SetAttributes(attribute.Int64("book.id", book.ID))
	return book, nil
}

// GetBook retrieves a book by its ID.
func (s *service) GetBook(ctx context.Context, id int64) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.get_book",
		trace.WithAttributes(attribute.Int64("book.id", id)),
	)
	defer span.End()

	return s.store.Get(ctx, id)
}

// ListBooks returns all books ordered by title.
func (s *service) ListBooks(ctx context.Context) ([]*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.list_books")
	defer span.End()

	return s.store.List(ctx)
}
