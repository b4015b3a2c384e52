package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCurrency(t *testing.T) {
	assert.Equal(t, "USD", NormalizeCurrency(" usd "))
	assert.Equal(t, "EUR", NormalizeCurrency("eur"))
	assert.Equal(t, "", NormalizeCurrency("  "))
}

func TestValidCurrency(t *testing.T) {
	assert.True(t, ValidCurrency("usd"))
	assert.True(t, ValidCurrency("JPY"))
	assert.False(t, ValidCurrency("XYZ"))
	assert.False(t, ValidCurrency(""))
}

func TestFraction(t *testing.T) {
	assert.Equal(t, 2, Fraction(USD))
	assert.Equal(t, 0, Fraction(JPY))
	assert.Equal(t, 2, Fraction("XYZ"))
}

func TestNewFromDecimal(t *testing.T) {
	m := NewFromDecimal(decimal.RequireFromString("1223.625"), USD)
	assert.Equal(t, int64(122363), m.Amount())
	assert.Equal(t, "USD", m.Currency())

	// Zero-fraction currencies round to whole units.
	y := NewFromDecimal(decimal.RequireFromString("1500.4"), JPY)
	assert.Equal(t, int64(1500), y.Amount())
}

func TestAdd(t *testing.T) {
	sum, err := New(100, USD).Add(New(250, USD))
	require.NoError(t, err)
	assert.Equal(t, int64(350), sum.Amount())

	_, err = New(100, USD).Add(New(100, EUR))
	assert.Error(t, err)
}

func TestAddNilIsIdentity(t *testing.T) {
	var nilMoney *Money
	sum, err := nilMoney.Add(New(100, USD))
	require.NoError(t, err)
	assert.Equal(t, int64(100), sum.Amount())
}

func TestToDecimal(t *testing.T) {
	m := New(122363, USD)
	assert.True(t, m.ToDecimal().Equal(decimal.RequireFromString("1223.63")))
	assert.True(t, Zero(USD).IsZero())
}

func TestTotals(t *testing.T) {
	totals := Totals{}
	require.NoError(t, totals.Accumulate(decimal.RequireFromString("1223.63"), "usd"))
	require.NoError(t, totals.Accumulate(decimal.RequireFromString("100.00"), "USD"))
	require.NoError(t, totals.Accumulate(decimal.RequireFromString("50"), "EUR"))

	assert.Equal(t, int64(132363), totals["USD"].Amount())
	assert.Equal(t, int64(5000), totals["EUR"].Amount())
	assert.Error(t, Totals{}.Accumulate(decimal.Zero, " "))
}
