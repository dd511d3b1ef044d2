// internal/borrowing/transactor.go
package borrowing

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lending/internal/catalog"
	"lending/internal/telemetry"
)

// PostgresTransactor runs units of work in READ COMMITTED transactions.
// Writers serialize on the rows they lock with SELECT ... FOR UPDATE: the
// book for creates, the borrowing and then the book for returns.
type PostgresTransactor struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

func NewPostgresTransactor(db *sqlx.DB) *PostgresTransactor {
	return &PostgresTransactor{
		db:     db,
		tracer: otel.Tracer("lending/store"),
	}
}

func (t *PostgresTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	ctx, span := t.tracer.Start(ctx, "store.transaction",
		trace.WithAttributes(attribute.String("db.isolation", "read_committed")),
	)
	defer span.End()

	tx, err := t.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		telemetry.Fail(span, err)
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, pgTx{tx: tx}); err != nil {
		span.SetAttributes(attribute.Bool("tx.rolled_back", true))
		return err
	}

	if err := tx.Commit(); err != nil {
		telemetry.Fail(span, err)
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx *sqlx.Tx
}

func (p pgTx) Books() Inventory {
	return catalog.NewRepository(p.tx)
}

func (p pgTx) Borrowings() Ledger {
	return NewPostgresLedger(p.tx)
}
