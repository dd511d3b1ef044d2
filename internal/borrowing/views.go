// internal/borrowing/views.go
package borrowing

import (
	"time"

	"lending/internal/catalog"
)

// civilDate marshals a date as "YYYY-MM-DD".
type civilDate time.Time

func (d civilDate) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(d).Format(DateLayout) + `"`), nil
}

// Summary is the list representation of a borrowing.
type Summary struct {
	ID                 int64     `json:"id"`
	BookTitle          string    `json:"book_title"`
	ExpectedReturnDate civilDate `json:"expected_return_date"`
	User               int64     `json:"user"`
	IsActive           bool      `json:"is_active"`
}

// Detail is the full representation, embedding the book.
type Detail struct {
	ID                 int64         `json:"id"`
	BorrowDate         civilDate     `json:"borrow_date"`
	ExpectedReturnDate civilDate     `json:"expected_return_date"`
	ActualReturnDate   *civilDate    `json:"actual_return_date"`
	Book               *catalog.Book `json:"book"`
	User               int64         `json:"user"`
	IsActive           bool          `json:"is_active"`
}

func NewSummary(b *Borrowing) Summary {
	s := Summary{
		ID:                 b.ID,
		ExpectedReturnDate: civilDate(b.ExpectedReturnDate),
		User:               b.UserID,
		IsActive:           b.IsActive(),
	}
	if b.Book != nil {
		s.BookTitle = b.Book.Title
	}
	return s
}

func NewDetail(b *Borrowing) Detail {
	d := Detail{
		ID:                 b.ID,
		BorrowDate:         civilDate(b.BorrowDate),
		ExpectedReturnDate: civilDate(b.ExpectedReturnDate),
		Book:               b.Book,
		User:               b.UserID,
		IsActive:           b.IsActive(),
	}
	if b.ActualReturnDate != nil {
		actual := civilDate(*b.ActualReturnDate)
		d.ActualReturnDate = &actual
	}
	return d
}
