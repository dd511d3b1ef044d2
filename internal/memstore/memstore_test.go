package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending/internal/auth"
	"lending/internal/borrowing"
	"lending/internal/catalog"
)

func seed(t *testing.T) (*Store, *catalog.Book, *auth.User) {
	t.Helper()
	s := New()
	book := &catalog.Book{Title: "Seed", Author: "A", Cover: catalog.CoverHard, Inventory: 1}
	require.NoError(t, s.Catalog().Create(context.Background(), book))
	user := &auth.User{Email: "u@example.com"}
	require.NoError(t, s.Users().CreateUser(context.Background(), user))
	return s, book, user
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s, book, user := seed(t)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	boom := errors.New("boom")
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx borrowing.Tx) error {
		b := &borrowing.Borrowing{BorrowDate: day, ExpectedReturnDate: day, BookID: book.ID, UserID: user.ID}
		require.NoError(t, tx.Borrowings().Insert(ctx, b))
		require.NoError(t, tx.Books().DecrementInventory(ctx, book))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Catalog().Get(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Inventory)

	for range s.Borrowings().Find(context.Background(), borrowing.Filter{}) {
		t.Fatal("rolled back borrowing is visible")
	}
}

func TestDecrementStopsAtZero(t *testing.T) {
	s, book, _ := seed(t)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx borrowing.Tx) error {
		require.NoError(t, tx.Books().DecrementInventory(ctx, book))
		return tx.Books().DecrementInventory(ctx, book)
	})
	assert.ErrorIs(t, err, catalog.ErrOutOfStock)
}

func TestInsertEnforcesConstraints(t *testing.T) {
	s, book, user := seed(t)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx borrowing.Tx) error {
		return tx.Borrowings().Insert(ctx, &borrowing.Borrowing{
			BorrowDate: day, ExpectedReturnDate: day.AddDate(0, 0, -1), BookID: book.ID, UserID: user.ID,
		})
	})
	assert.True(t, borrowing.IsKind(err, borrowing.KindInvalidDateRange))

	err = s.WithinTx(context.Background(), func(ctx context.Context, tx borrowing.Tx) error {
		return tx.Borrowings().Insert(ctx, &borrowing.Borrowing{
			BorrowDate: day, ExpectedReturnDate: day, BookID: 99, UserID: user.ID,
		})
	})
	assert.ErrorIs(t, err, catalog.ErrBookNotFound)
}

func TestMarkReturnedOnlyOnce(t *testing.T) {
	s, book, user := seed(t)
	day := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	b := &borrowing.Borrowing{BorrowDate: day, ExpectedReturnDate: day, BookID: book.ID, UserID: user.ID}
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx borrowing.Tx) error {
		return tx.Borrowings().Insert(ctx, b)
	}))

	b.ActualReturnDate = &day
	markReturned := func() error {
		return s.WithinTx(context.Background(), func(ctx context.Context, tx borrowing.Tx) error {
			return tx.Borrowings().MarkReturned(ctx, b)
		})
	}
	require.NoError(t, markReturned())
	assert.ErrorIs(t, markReturned(), borrowing.ErrAlreadyReturned)
}

func TestUsersAreUniqueByEmail(t *testing.T) {
	s, _, _ := seed(t)

	err := s.Users().CreateUser(context.Background(), &auth.User{Email: "u@example.com"})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)

	_, err = s.Users().UserByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestListOrdersByTitle(t *testing.T) {
	s := New()
	for _, title := range []string{"c", "a", "b"} {
		require.NoError(t, s.Catalog().Create(context.Background(), &catalog.Book{Title: title, Cover: catalog.CoverSoft}))
	}

	books, err := s.Catalog().List(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{books[0].Title, books[1].Title, books[2].Title})
}
