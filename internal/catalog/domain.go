// internal/catalog/domain.go
package catalog

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrBookNotFound = errors.New("book not found")
	ErrOutOfStock   = errors.New("book is out of stock")
	ErrInvalidMoney = errors.New("invalid money amount")
)

// Cover is the binding of a book.
type Cover string

const (
	CoverHard Cover = "hard"
	CoverSoft Cover = "soft"
)

// Valid reports whether c is one of the known covers.
func (c Cover) Valid() bool {
	return c == CoverHard || c == CoverSoft
}

// Book is a catalog entry. Inventory counts the copies currently on the shelf.
type Book struct {
	ID        int64  `json:"id" db:"id"`
	Title     string `json:"title" db:"title"`
	Author    string `json:"author" db:"author"`
	Cover     Cover  `json:"cover" db:"cover"`
	Inventory int    `json:"inventory" db:"inventory"`
	DailyFee  Money  `json:"daily_fee" db:"daily_fee"`
}

// Money is a non-negative amount in cents. It travels as a two-decimal
// string both on the wire and to the NUMERIC(10,2) column.
type Money int64

// ParseMoney reads amounts such as "12", "0.5" or "3.25".
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: %q has more than two decimal places", ErrInvalidMoney, s)
	}
	frac += strings.Repeat("0", 2-len(frac))
	if whole == "" {
		whole = "0"
	}
	if !digits(whole) || !digits(frac) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}

	return Money(units*100 + cents), nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (m Money) String() string {
	return fmt.Sprintf("%d.%02d", int64(m)/100, int64(m)%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

// UnmarshalJSON accepts both "0.50" and 0.5.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

func (m *Money) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	case int64:
		*m = Money(v * 100)
		return nil
	case float64:
		s = strconv.FormatFloat(v, 'f', 2, 64)
	default:
		return fmt.Errorf("cannot scan %T into Money", src)
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
