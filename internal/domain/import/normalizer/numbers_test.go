package normalizer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		opts NumberOptions
		want string
	}{
		{"plain", "1234.56", NumberOptions{}, "1234.56"},
		{"dollar sign", "$1,223.63", NumberOptions{}, "1223.63"},
		{"euro sign", "€1.234,56", NumberOptions{}, "1234.56"},
		{"negative sign dropped", "-100.50", NumberOptions{}, "100.5"},
		{"plus sign dropped", "+100.50", NumberOptions{}, "100.5"},
		{"parentheses", "(100.50)", NumberOptions{}, "100.5"},
		{"thousands only", "1,234,567", NumberOptions{}, "1234567"},
		{"trailing decimal comma", "48,95", NumberOptions{}, "48.95"},
		{"space grouping", "1 234 567.89", NumberOptions{}, "1234567.89"},
		{"nbsp grouping", "1 234,56", NumberOptions{}, "1234.56"},
		{"explicit comma decimal", "1.234,56", NumberOptions{DecimalSeparator: ','}, "1234.56"},
		{"explicit dot decimal", "1,234.56", NumberOptions{DecimalSeparator: '.'}, "1234.56"},
		{"explicit comma grouping", "1,234,567", NumberOptions{ThousandsSeparator: ','}, "1234567"},
		{"explicit dot grouping with comma decimal", "1.234.567,89", NumberOptions{DecimalSeparator: ',', ThousandsSeparator: '.'}, "1234567.89"},
		{"explicit dot grouping leaves decimal comma", "1.234,5", NumberOptions{ThousandsSeparator: '.'}, "1234.5"},
		{"ungrouped comma is a decimal point", "1,234", NumberOptions{ThousandsSeparator: NoThousandsSeparator}, "1.234"},
		{"integer", "25", NumberOptions{}, "25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDecimal(tt.raw, tt.opts)
			require.True(t, ok)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s want %s", got, tt.want)
		})
	}
}

func TestParseDecimalUngroupedRejectsGrouping(t *testing.T) {
	// A token with both separators cannot come from ungrouped input.
	_, ok := ParseDecimal("1,234.56", NumberOptions{ThousandsSeparator: NoThousandsSeparator})
	assert.False(t, ok)
}

func TestParseDecimalNoValue(t *testing.T) {
	for _, raw := range []string{"", "  ", "-", "n/a", "NA", "NaN", "null", "nil", "abc", "12abc"} {
		t.Run(raw, func(t *testing.T) {
			_, ok := ParseDecimal(raw, NumberOptions{})
			assert.False(t, ok)
		})
	}
}

func TestIsEmptyToken(t *testing.T) {
	assert.True(t, IsEmptyToken(" N/A "))
	assert.True(t, IsEmptyToken("-"))
	assert.True(t, IsEmptyToken(""))
	assert.False(t, IsEmptyToken("0"))
	assert.False(t, IsEmptyToken("abc"))
}

func TestCanonicalNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10", "10"},
		{"10.0", "10"},
		{"10.00", "10"},
		{"48.945", "48.945"},
		{"1223.6250", "1223.625"},
		{"0.00", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalNumber(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "sold 25 shares", CleanDescription("  sold   25\tshares "))
	assert.Equal(t, "", CleanDescription("   "))
}

func BenchmarkParseDecimal(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ParseDecimal("$1,223.63", NumberOptions{})
	}
}
