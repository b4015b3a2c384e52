package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbeDialectEuropean(t *testing.T) {
	rows := [][]string{
		{"27/06/2024", "BUY", "1.234,56", "€48,95"},
		{"28/06/2024", "SELL", "2.500,00", "€12,30"},
	}

	d := ProbeDialect(rows, []int{2, 3}, 0)
	assert.Equal(t, ",", d.DecimalSeparator)
	assert.Equal(t, ".", d.ThousandsSeparator)
	assert.True(t, d.DayFirst)
	assert.Equal(t, "EUR", d.CurrencyHint)
	assert.Greater(t, d.Confidence, 0.5)
}

func TestProbeDialectUS(t *testing.T) {
	rows := [][]string{
		{"06/27/2024", "SELL", "$1,223.63", "$0.00"},
		{"06/28/2024", "BUY", "$4,155.00", "$1.50"},
	}

	d := ProbeDialect(rows, []int{2, 3}, 0)
	assert.Equal(t, ".", d.DecimalSeparator)
	assert.Equal(t, ",", d.ThousandsSeparator)
	assert.False(t, d.DayFirst)
	assert.Equal(t, "USD", d.CurrencyHint)
}

func TestProbeDialectAmbiguousDatesFollowSeparator(t *testing.T) {
	// Day components never exceed 12, so the amount convention decides.
	rows := [][]string{
		{"05/06/2024", "BUY", "1.234,56"},
	}

	d := ProbeDialect(rows, []int{2}, -1)
	assert.Equal(t, ",", d.DecimalSeparator)
	assert.True(t, d.DayFirst)
}

func TestProbeDialectNoSignals(t *testing.T) {
	d := ProbeDialect([][]string{{"BUY", "100"}}, []int{1}, -1)
	assert.Equal(t, ".", d.DecimalSeparator)
	assert.Equal(t, 0.5, d.Confidence)
	assert.Empty(t, d.CurrencyHint)
}
