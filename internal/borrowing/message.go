package borrowing

import (
	"fmt"
	"strings"
)

// CreatedMessage renders the plain-text notice sent when a borrowing is
// created. b.Book must be set.
func CreatedMessage(b *Borrowing) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "New borrowing #%d\n", b.ID)
	if b.Book != nil {
		fmt.Fprintf(&sb, "Book: %s (%s)\n", b.Book.Title, b.Book.Author)
		fmt.Fprintf(&sb, "Daily fee: %s\n", b.Book.DailyFee)
	}
	fmt.Fprintf(&sb, "Borrowed on: %s\n", b.BorrowDate.Format(DateLayout))
	fmt.Fprintf(&sb, "Expected return: %s", b.ExpectedReturnDate.Format(DateLayout))
	return sb.String()
}
