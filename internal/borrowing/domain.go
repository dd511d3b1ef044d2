// internal/borrowing/domain.go
package borrowing

import (
	"errors"
	"time"

	"lending/internal/catalog"
)

var (
	// ErrNotFound covers both missing borrowings and borrowings outside the
	// requester's visibility; callers cannot tell the two apart.
	ErrNotFound        = errors.New("borrowing not found")
	ErrAlreadyReturned = errors.New("borrowing has already been returned")
)

// DateLayout is the wire and display format of every borrowing date.
const DateLayout = "2006-01-02"

// State of a borrowing. RETURNED is terminal.
type State string

const (
	StateActive   State = "ACTIVE"
	StateReturned State = "RETURNED"
)

// Borrowing links a user to one copy of a book. Dates are civil dates held
// as UTC midnight.
type Borrowing struct {
	ID                 int64
	BorrowDate         time.Time
	ExpectedReturnDate time.Time
	ActualReturnDate   *time.Time
	BookID             int64
	UserID             int64

	// Book is filled by reads that join the catalog.
	Book *catalog.Book
}

func (b *Borrowing) IsActive() bool {
	return b.ActualReturnDate == nil
}

func (b *Borrowing) State() State {
	if b.IsActive() {
		return StateActive
	}
	return StateReturned
}

// Filter selects ledger rows. Zero value matches everything.
type Filter struct {
	ID         *int64
	UserID     *int64
	ActiveOnly bool
}

// ListFilter is what a requester asks for. UserID is honored for staff only.
type ListFilter struct {
	IsActive bool
	UserID   *int64
}

// CreateInput is the requester-supplied part of a new borrowing.
type CreateInput struct {
	BookID             int64
	ExpectedReturnDate time.Time
}

// Date truncates t to its calendar day, expressed as UTC midnight.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate reads a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Clock yields the current civil date.
type Clock interface {
	Today() time.Time
}

// SystemClock reads the wall clock in Location (UTC when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Today() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return Date(time.Now().In(loc))
}

// FixedClock always returns the same day.
type FixedClock time.Time

func (c FixedClock) Today() time.Time {
	return Date(time.Time(c))
}
