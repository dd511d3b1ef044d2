// internal/borrowing/validation.go
package borrowing

import (
	"errors"
	"fmt"

	"lending/internal/catalog"
)

// Kind classifies a rejected write.
type Kind string

const (
	KindOutOfStock       Kind = "out_of_stock"
	KindInvalidDateRange Kind = "invalid_date_range"
	KindInvalidBook      Kind = "invalid_book"
)

// ValidationError rejects a write because of its input. Field names the
// offending request field.
type ValidationError struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsKind reports whether err is a ValidationError of kind k.
func IsKind(err error, k Kind) bool {
	var verr *ValidationError
	return errors.As(err, &verr) && verr.Kind == k
}

// ValidateStock rejects books without copies on the shelf.
func ValidateStock(book *catalog.Book) error {
	if book.Inventory <= 0 {
		return outOfStock(book)
	}
	return nil
}

func outOfStock(book *catalog.Book) error {
	return &ValidationError{
		Kind:    KindOutOfStock,
		Field:   "book_inventory",
		Message: fmt.Sprintf("%s is currently out of stock", book.Title),
	}
}

func invalidBook(id int64) error {
	return &ValidationError{
		Kind:    KindInvalidBook,
		Field:   "book",
		Message: fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id),
	}
}

// ValidateDates enforces borrow_date <= expected_return_date and, once the
// borrowing is returned, borrow_date <= actual_return_date. An unset actual
// return date satisfies the second comparison, as the database constraint
// does with NULL.
func ValidateDates(b *Borrowing) error {
	if b.BorrowDate.After(b.ExpectedReturnDate) {
		return &ValidationError{
			Kind:    KindInvalidDateRange,
			Field:   "expected_return_date",
			Message: "Expected return date cannot be earlier than the borrow date.",
		}
	}
	if b.ActualReturnDate != nil && b.BorrowDate.After(*b.ActualReturnDate) {
		return &ValidationError{
			Kind:    KindInvalidDateRange,
			Field:   "actual_return_date",
			Message: "Actual return date cannot be earlier than the borrow date.",
		}
	}
	return nil
}

// dateConstraintViolated is what a check violation on the date constraint
// becomes when a write slips past ValidateDates.
func dateConstraintViolated() error {
	return &ValidationError{
		Kind:    KindInvalidDateRange,
		Field:   "non_field_errors",
		Message: "Constraint \"borrow_date_lte_return_date\" is violated.",
	}
}
