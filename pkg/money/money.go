// Package money provides ISO-4217 currency validation and currency-safe
// display amounts for the import pipeline. Arithmetic inside the pipeline
// stays on shopspring/decimal; Money is the boundary type for anything shown
// to the user or summed per currency.
package money

import (
	"errors"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	CHF = "CHF"
	CAD = "CAD"
	JPY = "JPY"
)

// NormalizeCurrency uppercases and trims a raw currency token.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCurrency reports whether code is a known ISO-4217 currency.
func ValidCurrency(code string) bool {
	return money.GetCurrency(NormalizeCurrency(code)) != nil
}

// Fraction returns the number of decimal places a currency carries, falling
// back to 2 for unknown codes.
func Fraction(code string) int {
	if c := money.GetCurrency(NormalizeCurrency(code)); c != nil {
		return c.Fraction
	}
	return 2
}

// Money is a monetary value in minor units with its currency. It wraps
// go-money so additions across mixed currencies fail loudly instead of
// silently summing apples and oranges.
type Money struct {
	m *money.Money
}

// New creates Money from minor units (cents) and a currency code.
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, NormalizeCurrency(currencyCode))}
}

// NewFromDecimal creates Money from a decimal amount, rounding to the
// currency's minor unit.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	cents := amount.Mul(decimal.New(1, int32(Fraction(currencyCode)))).Round(0).IntPart()
	return New(cents, currencyCode)
}

// Zero returns a zero Money value for the given currency.
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// Amount returns the amount in minor units.
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsZero returns true if the amount is zero.
func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// Add adds two Money values. Returns an error if currencies don't match.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}
	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// ToDecimal converts to decimal.Decimal for precise calculations.
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	d := decimal.NewFromInt(m.m.Amount())
	return d.Div(decimal.New(1, int32(m.m.Currency().Fraction)))
}

// Display returns a formatted string for display (e.g., "$1,234.56").
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "$0.00"
	}
	return m.m.Display()
}

// Totals accumulates per-currency sums, for the commit summary.
type Totals map[string]*Money

// Accumulate adds amount to the running total of its currency.
func (t Totals) Accumulate(amount decimal.Decimal, currencyCode string) error {
	code := NormalizeCurrency(currencyCode)
	if code == "" {
		return errors.New("missing currency")
	}
	entry := NewFromDecimal(amount, code)
	sum, err := t[code].Add(entry)
	if err != nil {
		return err
	}
	t[code] = sum
	return nil
}
