// internal/borrowing/service.go
package borrowing

import (
	"context"
	"iter"

	"lending/internal/auth"
	"lending/internal/catalog"
)

// Service defines the borrowing lifecycle and the requester-scoped queries.
type Service interface {
	Create(ctx context.Context, requester auth.Requester, input CreateInput) (*Borrowing, error)
	Return(ctx context.Context, requester auth.Requester, id int64) (*Borrowing, error)
	List(ctx context.Context, requester auth.Requester, filter ListFilter) iter.Seq2[*Borrowing, error]
	Get(ctx context.Context, requester auth.Requester, id int64) (*Borrowing, error)
}

// Inventory is the catalog seen from inside a transaction.
type Inventory interface {
	GetForUpdate(ctx context.Context, id int64) (*catalog.Book, error)
	DecrementInventory(ctx context.Context, book *catalog.Book) error
	IncrementInventory(ctx context.Context, book *catalog.Book) error
}

// Ledger is the write side of the borrowing table.
type Ledger interface {
	Insert(ctx context.Context, b *Borrowing) error
	GetForUpdate(ctx context.Context, id int64) (*Borrowing, error)
	MarkReturned(ctx context.Context, b *Borrowing) error
}

// Tx scopes repositories to one transaction.
type Tx interface {
	Books() Inventory
	Borrowings() Ledger
}

// Transactor runs fn in a transaction that is committed when fn returns nil
// and rolled back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Reader finds borrowings. The sequence is lazy and can be ranged over more
// than once; every range runs the query again.
type Reader interface {
	Find(ctx context.Context, filter Filter) iter.Seq2[*Borrowing, error]
}

// BookFinder reads books outside of a transaction.
type BookFinder interface {
	Get(ctx context.Context, id int64) (*catalog.Book, error)
}

// Notifier accepts a message about a new borrowing. It must not block.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string) {}
