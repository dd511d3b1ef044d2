// internal/borrowing/ledger.go
package borrowing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"

	"lending/internal/catalog"
	"lending/internal/store"
)

const (
	dialectPostgres = "postgres"
	constraintDates = "borrow_date_lte_return_date"
)

// PostgresLedger stores borrowings in Postgres. Like catalog.Repository it
// runs on a *sqlx.DB or inside a *sqlx.Tx.
type PostgresLedger struct {
	db sqlx.ExtContext
}

func NewPostgresLedger(db sqlx.ExtContext) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// ledgerRow is one borrowing joined with its book.
type ledgerRow struct {
	ID                 int64        `db:"id"`
	BorrowDate         time.Time    `db:"borrow_date"`
	ExpectedReturnDate time.Time    `db:"expected_return_date"`
	ActualReturnDate   sql.NullTime `db:"actual_return_date"`
	BookID             int64        `db:"book_id"`
	UserID             int64        `db:"user_id"`

	BookTitle     sql.NullString `db:"book_title"`
	BookAuthor    sql.NullString `db:"book_author"`
	BookCover     sql.NullString `db:"book_cover"`
	BookInventory sql.NullInt64  `db:"book_inventory"`
	BookDailyFee  catalog.Money  `db:"book_daily_fee"`
}

func (r ledgerRow) borrowing() *Borrowing {
	b := &Borrowing{
		ID:                 r.ID,
		BorrowDate:         Date(r.BorrowDate),
		ExpectedReturnDate: Date(r.ExpectedReturnDate),
		BookID:             r.BookID,
		UserID:             r.UserID,
	}
	if r.ActualReturnDate.Valid {
		actual := Date(r.ActualReturnDate.Time)
		b.ActualReturnDate = &actual
	}
	if r.BookTitle.Valid {
		b.Book = &catalog.Book{
			ID:        r.BookID,
			Title:     r.BookTitle.String,
			Author:    r.BookAuthor.String,
			Cover:     catalog.Cover(r.BookCover.String),
			Inventory: int(r.BookInventory.Int64),
			DailyFee:  r.BookDailyFee,
		}
	}
	return b
}

func (l *PostgresLedger) selectQuery(filter Filter) *goqu.SelectDataset {
	q := goqu.Dialect(dialectPostgres).
		From(goqu.T("borrowings").As("br")).
		Join(goqu.T("books").As("bk"), goqu.On(goqu.I("bk.id").Eq(goqu.I("br.book_id")))).
		Select(
			goqu.I("br.id"),
			goqu.I("br.borrow_date"),
			goqu.I("br.expected_return_date"),
			goqu.I("br.actual_return_date"),
			goqu.I("br.book_id"),
			goqu.I("br.user_id"),
			goqu.I("bk.title").As("book_title"),
			goqu.I("bk.author").As("book_author"),
			goqu.I("bk.cover").As("book_cover"),
			goqu.I("bk.inventory").As("book_inventory"),
			goqu.I("bk.daily_fee").As("book_daily_fee"),
		).
		Order(goqu.I("br.borrow_date").Desc(), goqu.I("br.id").Desc()).
		Prepared(true)

	if filter.ID != nil {
		q = q.Where(goqu.I("br.id").Eq(*filter.ID))
	}
	if filter.UserID != nil {
		q = q.Where(goqu.I("br.user_id").Eq(*filter.UserID))
	}
	if filter.ActiveOnly {
		q = q.Where(goqu.I("br.actual_return_date").IsNull())
	}
	return q
}

// Find streams matching borrowings newest first. The query runs when the
// sequence is ranged over, once per range.
func (l *PostgresLedger) Find(ctx context.Context, filter Filter) iter.Seq2[*Borrowing, error] {
	return func(yield func(*Borrowing, error) bool) {
		query, args, err := l.selectQuery(filter).ToSQL()
		if err != nil {
			yield(nil, fmt.Errorf("build borrowing query: %w", err))
			return
		}

		rows, err := l.db.QueryxContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("query borrowings: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var row ledgerRow
			if err := rows.StructScan(&row); err != nil {
				yield(nil, fmt.Errorf("scan borrowing: %w", err))
				return
			}
			if !yield(row.borrowing(), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate borrowings: %w", err))
		}
	}
}

// Insert stores b and sets its ID.
func (l *PostgresLedger) Insert(ctx context.Context, b *Borrowing) error {
	if err := ValidateDates(b); err != nil {
		return err
	}

	query := `
		INSERT INTO borrowings (borrow_date, expected_return_date, actual_return_date, book_id, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := l.db.QueryRowxContext(ctx, query,
		b.BorrowDate, b.ExpectedReturnDate, nullDate(b.ActualReturnDate), b.BookID, b.UserID,
	).Scan(&b.ID)
	if err != nil {
		return l.translate(err, b)
	}
	return nil
}

// GetForUpdate reads a borrowing without its book and locks the row.
func (l *PostgresLedger) GetForUpdate(ctx context.Context, id int64) (*Borrowing, error) {
	query := `
		SELECT id, borrow_date, expected_return_date, actual_return_date, book_id, user_id
		FROM borrowings
		WHERE id = $1
		FOR UPDATE
	`
	var row ledgerRow
	if err := sqlx.GetContext(ctx, l.db, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get borrowing %d: %w", id, err)
	}
	return row.borrowing(), nil
}

// MarkReturned persists b.ActualReturnDate. Only an active row is updated;
// a row that is already returned yields ErrAlreadyReturned.
func (l *PostgresLedger) MarkReturned(ctx context.Context, b *Borrowing) error {
	if b.ActualReturnDate == nil {
		return fmt.Errorf("mark borrowing %d returned: no return date", b.ID)
	}
	if err := ValidateDates(b); err != nil {
		return err
	}

	query := `
		UPDATE borrowings
		SET actual_return_date = $2
		WHERE id = $1 AND actual_return_date IS NULL
	`
	res, err := l.db.ExecContext(ctx, query, b.ID, *b.ActualReturnDate)
	if err != nil {
		return l.translate(err, b)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrAlreadyReturned
	}
	return nil
}

func (l *PostgresLedger) translate(err error, b *Borrowing) error {
	switch {
	case store.IsViolation(err, store.CodeCheckViolation, constraintDates):
		return dateConstraintViolated()
	case store.IsViolation(err, store.CodeForeignKeyViolation, "borrowings_book_id_fkey"):
		return invalidBook(b.BookID)
	default:
		return fmt.Errorf("write borrowing: %w", err)
	}
}

func nullDate(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
