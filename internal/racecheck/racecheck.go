// Package racecheck fires concurrent borrowings at a single book and checks
// that the inventory comes out consistent.
package racecheck

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"lending/internal/auth"
	"lending/internal/borrowing"
	"lending/internal/catalog"
)

// Experiment describes one run.
type Experiment struct {
	Name       string
	Hypothesis string
	Copies     int
	Attempts   int
}

// Default is N=100 attempts against K=10 copies.
func Default() Experiment {
	return Experiment{
		Name:       "concurrent-borrowing-race",
		Hypothesis: "Concurrent borrowings of one book never lend more copies than the inventory holds",
		Copies:     10,
		Attempts:   100,
	}
}

// Assertion is one checked outcome.
type Assertion struct {
	Message string `json:"message"`
	Passed  bool   `json:"passed"`
}

// Result captures what happened.
type Result struct {
	Experiment     string        `json:"experiment"`
	Hypothesis     string        `json:"hypothesis"`
	StartTime      time.Time     `json:"start_time"`
	Duration       time.Duration `json:"duration"`
	BookID         int64         `json:"book_id"`
	Copies         int           `json:"copies"`
	Attempts       int           `json:"attempts"`
	Succeeded      int           `json:"succeeded"`
	OutOfStock     int           `json:"out_of_stock"`
	Errors         []string      `json:"errors,omitempty"`
	FinalInventory int           `json:"final_inventory"`
	Assertions     []Assertion   `json:"assertions"`
	HypothesisHeld bool          `json:"hypothesis_held"`
}

// Target is what the experiment runs against.
type Target struct {
	Books      catalog.Store
	Users      auth.UserStore
	Borrowings borrowing.Service
}

// Run creates a fresh book and borrower, then fires exp.Attempts creates at
// once.
func Run(ctx context.Context, t Target, exp Experiment) (*Result, error) {
	ctx, span := otel.Tracer("lending/racecheck").Start(ctx, "racecheck.run")
	defer span.End()

	if exp.Copies < 0 || exp.Attempts <= exp.Copies {
		return nil, fmt.Errorf("attempts (%d) must exceed copies (%d)", exp.Attempts, exp.Copies)
	}

	book := &catalog.Book{
		Title:     "Race " + uuid.NewString()[:8],
		Author:    "racecheck",
		Cover:     catalog.CoverSoft,
		Inventory: exp.Copies,
		DailyFee:  100,
	}
	if err := t.Books.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	user := &auth.User{
		Email:        "racecheck-" + uuid.NewString() + "@example.invalid",
		PasswordHash: "-",
		Salt:         "-",
	}
	if err := t.Users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	requester := auth.Requester{UserID: user.ID}

	res := &Result{
		Experiment: exp.Name,
		Hypothesis: exp.Hypothesis,
		StartTime:  time.Now(),
		BookID:     book.ID,
		Copies:     exp.Copies,
		Attempts:   exp.Attempts,
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	input := borrowing.CreateInput{
		BookID:             book.ID,
		ExpectedReturnDate: time.Now().AddDate(0, 0, 7),
	}
	for range exp.Attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := t.Borrowings.Create(ctx, requester, input)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Succeeded++
			case borrowing.IsKind(err, borrowing.KindOutOfStock):
				res.OutOfStock++
			default:
				res.Errors = append(res.Errors, err.Error())
			}
		}()
	}
	close(start)
	wg.Wait()
	res.Duration = time.Since(res.StartTime)

	final, err := t.Books.Get(ctx, book.ID)
	if err != nil {
		return nil, fmt.Errorf("reload book: %w", err)
	}
	res.FinalInventory = final.Inventory

	res.Assertions = []Assertion{
		{
			Message: fmt.Sprintf("exactly %d borrowings succeed", exp.Copies),
			Passed:  res.Succeeded == exp.Copies,
		},
		{
			Message: fmt.Sprintf("exactly %d borrowings are rejected as out of stock", exp.Attempts-exp.Copies),
			Passed:  res.OutOfStock == exp.Attempts-exp.Copies,
		},
		{
			Message: "final inventory is 0",
			Passed:  res.FinalInventory == 0,
		},
	}
	res.HypothesisHeld = len(res.Errors) == 0
	for _, a := range res.Assertions {
		res.HypothesisHeld = res.HypothesisHeld && a.Passed
	}

	span.SetAttributes(
		attribute.Int("racecheck.succeeded", res.Succeeded),
		attribute.Int("racecheck.out_of_stock", res.OutOfStock),
		attribute.Bool("racecheck.hypothesis_held", res.HypothesisHeld),
	)
	return res, nil
}
