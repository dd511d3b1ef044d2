package borrowing

import (
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending/internal/catalog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func TestSelectQueryAppliesFilter(t *testing.T) {
	uid := int64(7)
	query, args, err := (&PostgresLedger{}).selectQuery(Filter{UserID: &uid, ActiveOnly: true}).ToSQL()
	require.NoError(t, err)

	assert.Contains(t, query, `FROM "borrowings" AS "br"`)
	assert.Contains(t, query, `INNER JOIN "books" AS "bk"`)
	assert.Contains(t, query, `"br"."user_id" = $1`)
	assert.Contains(t, query, `"br"."actual_return_date" IS NULL`)
	assert.Contains(t, query, `ORDER BY "br"."borrow_date" DESC, "br"."id" DESC`)
	assert.Equal(t, []interface{}{int64(7)}, args)
}

func TestSelectQueryWithoutFilter(t *testing.T) {
	query, args, err := (&PostgresLedger{}).selectQuery(Filter{}).ToSQL()
	require.NoError(t, err)

	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)
}

func TestValidateDates(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	earlier := day.AddDate(0, 0, -1)

	assert.NoError(t, ValidateDates(&Borrowing{BorrowDate: day, ExpectedReturnDate: day}))

	err := ValidateDates(&Borrowing{BorrowDate: day, ExpectedReturnDate: earlier})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "expected_return_date", verr.Field)

	err = ValidateDates(&Borrowing{BorrowDate: day, ExpectedReturnDate: day, ActualReturnDate: &earlier})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "actual_return_date", verr.Field)
}

func TestValidateStock(t *testing.T) {
	assert.NoError(t, ValidateStock(&catalog.Book{Title: "A", Inventory: 1}))

	err := ValidateStock(&catalog.Book{Title: "A", Inventory: 0})
	assert.True(t, IsKind(err, KindOutOfStock))
	assert.EqualError(t, err, "A is currently out of stock")
}

func TestViews(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	b := &Borrowing{
		ID:                 3,
		BorrowDate:         day,
		ExpectedReturnDate: day.AddDate(0, 0, 2),
		BookID:             1,
		UserID:             9,
		Book:               &catalog.Book{ID: 1, Title: "T", Author: "A", Cover: catalog.CoverSoft, Inventory: 4, DailyFee: 125},
	}

	raw, err := json.Marshal(NewSummary(b))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"book_title":"T","expected_return_date":"2024-01-12","user":9,"is_active":true}`, string(raw))

	b.ActualReturnDate = &day
	raw, err = json.Marshal(NewDetail(b))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id":3,
		"borrow_date":"2024-01-10",
		"expected_return_date":"2024-01-12",
		"actual_return_date":"2024-01-10",
		"book":{"id":1,"title":"T","author":"A","cover":"soft","inventory":4,"daily_fee":"1.25"},
		"user":9,
		"is_active":false
	}`, string(raw))
}
