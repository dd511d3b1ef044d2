// internal/borrowing/implementation.go
package borrowing

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"lending/internal/auth"
	"lending/internal/catalog"
	"lending/internal/telemetry"
)

// service implements the Service interface.
type service struct {
	tx       Transactor
	reader   Reader
	books    BookFinder
	clock    Clock
	notifier Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
	meters   metric.MeterProvider

	created  metric.Int64Counter
	returned metric.Int64Counter
	rejected metric.Int64Counter
}

// Option configures the service.
type Option func(*service)

func WithClock(c Clock) Option {
	return func(s *service) { s.clock = c }
}

func WithNotifier(n Notifier) Option {
	return func(s *service) { s.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *service) { s.logger = l }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *service) { s.meters = mp }
}

// NewService creates the borrowing service.
func NewService(tx Transactor, reader Reader, books BookFinder, opts ...Option) Service {
	s := &service{
		tx:       tx,
		reader:   reader,
		books:    books,
		clock:    SystemClock{},
		notifier: noopNotifier{},
		logger:   slog.Default(),
		tracer:   otel.Tracer("lending/borrowing"),
		meters:   otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := s.meters.Meter("lending/borrowing")
	s.created = counter(meter, "borrowings.created", "Borrowings created")
	s.returned = counter(meter, "borrowings.returned", "Borrowings returned")
	s.rejected = counter(meter, "borrowings.rejected", "Borrowing writes rejected, by reason")

	return s
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

// Create lends one copy of a book to the requester.
//
// The stock check runs once before the transaction and again on the locked
// book row, so concurrent creates for the last copy serialize on that row and
// exactly one of them wins.
func (s *service) Create(ctx context.Context, requester auth.Requester, input CreateInput) (*Borrowing, error) {
	ctx, span := s.tracer.Start(ctx, "borrowing.create",
		trace.WithAttributes(
			attribute.Int64("book.id", input.BookID),
			attribute.Int64("user.id", requester.UserID),
		),
	)
	defer span.End()

	book, err := s.books.Get(ctx, input.BookID)
	if err != nil {
		return nil, s.fail(ctx, span, bookLookupError(err, input.BookID))
	}

	b := &Borrowing{
		BorrowDate:         s.clock.Today(),
		ExpectedReturnDate: Date(input.ExpectedReturnDate),
		BookID:             book.ID,
		UserID:             requester.UserID,
	}
	if err := ValidateDates(b); err != nil {
		return nil, s.fail(ctx, span, err)
	}
	if err := ValidateStock(book); err != nil {
		return nil, s.fail(ctx, span, err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := tx.Books().GetForUpdate(ctx, book.ID)
		if err != nil {
			return bookLookupError(err, book.ID)
		}
		if err := ValidateStock(locked); err != nil {
			return err
		}
		if err := tx.Borrowings().Insert(ctx, b); err != nil {
			return err
		}
		if err := tx.Books().DecrementInventory(ctx, locked); err != nil {
			if errors.Is(err, catalog.ErrOutOfStock) {
				return outOfStock(locked)
			}
			return err
		}
		b.Book = locked
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	span.SetAttributes(attribute.Int64("borrowing.id", b.ID))
	s.created.Add(ctx, 1)
	s.logger.InfoContext(ctx, "borrowing created",
		"borrowing_id", b.ID,
		"book_id", b.BookID,
		"user_id", b.UserID,
		"inventory", b.Book.Inventory,
	)

	s.notifier.Notify(context.WithoutCancel(ctx), CreatedMessage(b))

	return b, nil
}

// Return records today as the actual return date and puts the copy back.
func (s *service) Return(ctx context.Context, requester auth.Requester, id int64) (*Borrowing, error) {
	ctx, span := s.tracer.Start(ctx, "borrowing.return",
		trace.WithAttributes(
			attribute.Int64("borrowing.id", id),
			attribute.Int64("user.id", requester.UserID),
		),
	)
	defer span.End()

	var returned *Borrowing
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.Borrowings().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !visible(requester, b) {
			return ErrNotFound
		}
		if !b.IsActive() {
			return ErrAlreadyReturned
		}

		today := s.clock.Today()
		b.ActualReturnDate = &today
		if err := ValidateDates(b); err != nil {
			return err
		}
		if err := tx.Borrowings().MarkReturned(ctx, b); err != nil {
			return err
		}

		book, err := tx.Books().GetForUpdate(ctx, b.BookID)
		if err != nil {
			return fmt.Errorf("lock book %d: %w", b.BookID, err)
		}
		if err := tx.Books().IncrementInventory(ctx, book); err != nil {
			return err
		}
		b.Book = book
		returned = b
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	s.returned.Add(ctx, 1)
	s.logger.InfoContext(ctx, "borrowing returned",
		"borrowing_id", returned.ID,
		"book_id", returned.BookID,
		"user_id", returned.UserID,
		"inventory", returned.Book.Inventory,
	)

	return returned, nil
}

// List streams the borrowings the requester may see, newest first.
func (s *service) List(ctx context.Context, requester auth.Requester, filter ListFilter) iter.Seq2[*Borrowing, error] {
	return s.reader.Find(ctx, scope(requester, filter))
}

// Get returns one borrowing if the requester may see it.
func (s *service) Get(ctx context.Context, requester auth.Requester, id int64) (*Borrowing, error) {
	ctx, span := s.tracer.Start(ctx, "borrowing.get",
		trace.WithAttributes(attribute.Int64("borrowing.id", id)),
	)
	defer span.End()

	filter := scope(requester, ListFilter{})
	filter.ID = &id

	for b, err := range s.reader.Find(ctx, filter) {
		if err != nil {
			telemetry.Fail(span, err)
			return nil, err
		}
		return b, nil
	}
	return nil, ErrNotFound
}

// scope turns a requester's filter into a ledger filter. Non-staff
// requesters only ever see their own borrowings, whatever UserID they sent.
func scope(requester auth.Requester, f ListFilter) Filter {
	filter := Filter{ActiveOnly: f.IsActive}

	switch {
	case !requester.IsStaff:
		uid := requester.UserID
		filter.UserID = &uid
	case f.UserID != nil:
		uid := *f.UserID
		filter.UserID = &uid
	}

	return filter
}

func visible(requester auth.Requester, b *Borrowing) bool {
	return requester.IsStaff || b.UserID == requester.UserID
}

func bookLookupError(err error, id int64) error {
	if errors.Is(err, catalog.ErrBookNotFound) {
		return invalidBook(id)
	}
	return err
}

func (s *service) fail(ctx context.Context, span trace.Span, err error) error {
	telemetry.Fail(span, err)

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(verr.Kind))))
	case errors.Is(err, ErrAlreadyReturned):
		s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "already_returned")))
	case errors.Is(err, ErrNotFound):
		s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "not_found")))
	default:
		s.logger.ErrorContext(ctx, "borrowing operation failed", "error", err)
	}

	return err
}
