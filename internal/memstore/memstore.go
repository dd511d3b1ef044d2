// Package memstore keeps books, borrowings and users in memory. It mirrors
// the constraints of the Postgres schema and runs one transaction at a time,
// rolling back to a snapshot when the unit of work fails.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"lending/internal/auth"
	"lending/internal/borrowing"
	"lending/internal/catalog"
)

type state struct {
	books      map[int64]catalog.Book
	borrowings map[int64]borrowing.Borrowing
	users      map[int64]auth.User

	nextBook      int64
	nextBorrowing int64
	nextUser      int64
}

func (s *state) clone() *state {
	c := *s
	c.books = maps.Clone(s.books)
	c.borrowings = maps.Clone(s.borrowings)
	c.users = maps.Clone(s.users)
	return &c
}

// Store is safe for concurrent use.
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: &state{
		books:      map[int64]catalog.Book{},
		borrowings: map[int64]borrowing.Borrowing{},
		users:      map[int64]auth.User{},
	}}
}

// Catalog returns the book store used outside of transactions.
func (s *Store) Catalog() *Catalog { return &Catalog{s: s} }

// Borrowings returns the borrowing reader.
func (s *Store) Borrowings() *Borrowings { return &Borrowings{s: s} }

// Users returns the user store.
func (s *Store) Users() *Users { return &Users{s: s} }

// WithinTx holds the store lock for the whole of fn. If fn fails every
// change it made is discarded.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx borrowing.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.st.clone()
	if err := fn(ctx, memTx{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// Catalog implements catalog.Store.
type Catalog struct {
	s *Store
}

func (c *Catalog) Create(_ context.Context, book *catalog.Book) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if err := checkBook(book); err != nil {
		return err
	}
	c.s.st.nextBook++
	book.ID = c.s.st.nextBook
	c.s.st.books[book.ID] = *book
	return nil
}

func (c *Catalog) Get(_ context.Context, id int64) (*catalog.Book, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return getBook(c.s.st, id)
}

func (c *Catalog) List(context.Context) ([]*catalog.Book, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	books := make([]*catalog.Book, 0, len(c.s.st.books))
	for _, b := range c.s.st.books {
		books = append(books, &b)
	}
	slices.SortFunc(books, func(a, b *catalog.Book) int {
		return cmp.Or(strings.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})
	return books, nil
}

func getBook(st *state, id int64) (*catalog.Book, error) {
	b, ok := st.books[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", catalog.ErrBookNotFound, id)
	}
	return &b, nil
}

func checkBook(book *catalog.Book) error {
	if !book.Cover.Valid() {
		return fmt.Errorf("book %q: invalid cover %q", book.Title, book.Cover)
	}
	if book.Inventory < 0 || book.DailyFee < 0 {
		return fmt.Errorf("book %q: negative inventory or fee", book.Title)
	}
	return nil
}

// Borrowings implements borrowing.Reader.
type Borrowings struct {
	s *Store
}

// Find copies the matching rows under the lock and yields them after
// releasing it, so the consumer may call back into the store.
func (r *Borrowings) Find(ctx context.Context, filter borrowing.Filter) iter.Seq2[*borrowing.Borrowing, error] {
	return func(yield func(*borrowing.Borrowing, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}

		r.s.mu.Lock()
		var found []*borrowing.Borrowing
		for _, b := range r.s.st.borrowings {
			if !matches(b, filter) {
				continue
			}
			if book, ok := r.s.st.books[b.BookID]; ok {
				b.Book = &book
			}
			found = append(found, &b)
		}
		r.s.mu.Unlock()

		slices.SortFunc(found, func(a, b *borrowing.Borrowing) int {
			return cmp.Or(b.BorrowDate.Compare(a.BorrowDate), cmp.Compare(b.ID, a.ID))
		})

		for _, b := range found {
			if !yield(b, nil) {
				return
			}
		}
	}
}

func matches(b borrowing.Borrowing, f borrowing.Filter) bool {
	if f.ID != nil && b.ID != *f.ID {
		return false
	}
	if f.UserID != nil && b.UserID != *f.UserID {
		return false
	}
	if f.ActiveOnly && !b.IsActive() {
		return false
	}
	return true
}

// Users implements auth.UserStore.
type Users struct {
	s *Store
}

func (u *Users) CreateUser(_ context.Context, user *auth.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	for _, existing := range u.s.st.users {
		if existing.Email == user.Email {
			return fmt.Errorf("%w: %s", auth.ErrEmailTaken, user.Email)
		}
	}
	u.s.st.nextUser++
	user.ID = u.s.st.nextUser
	user.CreatedAt = time.Now().UTC()
	u.s.st.users[user.ID] = *user
	return nil
}

func (u *Users) UserByEmail(_ context.Context, email string) (*auth.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	for _, user := range u.s.st.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

// memTx operates on state already guarded by Store.mu.
type memTx struct {
	st *state
}

func (t memTx) Books() borrowing.Inventory  { return txBooks(t) }
func (t memTx) Borrowings() borrowing.Ledger { return txLedger(t) }

type txBooks struct {
	st *state
}

func (b txBooks) GetForUpdate(_ context.Context, id int64) (*catalog.Book, error) {
	return getBook(b.st, id)
}

func (b txBooks) DecrementInventory(_ context.Context, book *catalog.Book) error {
	stored, ok := b.st.books[book.ID]
	if !ok {
		return fmt.Errorf("%w: %d", catalog.ErrBookNotFound, book.ID)
	}
	if stored.Inventory <= 0 {
		return fmt.Errorf("%w: %s", catalog.ErrOutOfStock, stored.Title)
	}
	stored.Inventory--
	b.st.books[book.ID] = stored
	book.Inventory = stored.Inventory
	return nil
}

func (b txBooks) IncrementInventory(_ context.Context, book *catalog.Book) error {
	stored, ok := b.st.books[book.ID]
	if !ok {
		return fmt.Errorf("%w: %d", catalog.ErrBookNotFound, book.ID)
	}
	stored.Inventory++
	b.st.books[book.ID] = stored
	book.Inventory = stored.Inventory
	return nil
}

type txLedger struct {
	st *state
}

func (l txLedger) Insert(_ context.Context, b *borrowing.Borrowing) error {
	if err := borrowing.ValidateDates(b); err != nil {
		return err
	}
	if _, ok := l.st.books[b.BookID]; !ok {
		return fmt.Errorf("%w: %d", catalog.ErrBookNotFound, b.BookID)
	}
	if _, ok := l.st.users[b.UserID]; !ok {
		return fmt.Errorf("user %d does not exist", b.UserID)
	}

	l.st.nextBorrowing++
	b.ID = l.st.nextBorrowing
	row := *b
	row.Book = nil
	l.st.borrowings[b.ID] = row
	return nil
}

func (l txLedger) GetForUpdate(_ context.Context, id int64) (*borrowing.Borrowing, error) {
	b, ok := l.st.borrowings[id]
	if !ok {
		return nil, borrowing.ErrNotFound
	}
	return &b, nil
}

func (l txLedger) MarkReturned(_ context.Context, b *borrowing.Borrowing) error {
	if b.ActualReturnDate == nil {
		return fmt.Errorf("mark borrowing %d returned: no return date", b.ID)
	}
	if err := borrowing.ValidateDates(b); err != nil {
		return err
	}

	stored, ok := l.st.borrowings[b.ID]
	if !ok {
		return borrowing.ErrNotFound
	}
	if !stored.IsActive() {
		return borrowing.ErrAlreadyReturned
	}
	actual := *b.ActualReturnDate
	stored.ActualReturnDate = &actual
	l.st.borrowings[b.ID] = stored
	return nil
}
