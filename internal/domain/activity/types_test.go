package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	got, ok := ParseType(" sell ")
	require.True(t, ok)
	assert.Equal(t, Sell, got)

	got, ok = ParseType("transfer_in")
	require.True(t, ok)
	assert.Equal(t, TransferIn, got)

	_, ok = ParseType("JOURNAL")
	assert.False(t, ok)
}

func TestTypePredicates(t *testing.T) {
	assert.True(t, Buy.IsTrade())
	assert.True(t, Sell.IsTrade())
	assert.False(t, Dividend.IsTrade())

	assert.True(t, Deposit.IsCashFlow())
	assert.True(t, Interest.IsCashFlow())
	assert.False(t, Dividend.IsCashFlow())

	assert.True(t, Dividend.IsIncome())
	assert.True(t, Interest.IsIncome())

	assert.True(t, TransferIn.IsTransfer())
	assert.True(t, TransferOut.IsTransfer())
	assert.False(t, Deposit.IsTransfer())

	assert.True(t, Fee.UsesCashSymbol())
	assert.True(t, Tax.UsesCashSymbol())
	assert.True(t, Withdrawal.UsesCashSymbol())
	assert.False(t, Buy.UsesCashSymbol())
	assert.False(t, Dividend.UsesCashSymbol())
}

func TestValidSubtype(t *testing.T) {
	assert.True(t, ValidSubtype(Dividend, "REINVESTED"))
	assert.True(t, ValidSubtype(Dividend, " reinvested "))
	assert.False(t, ValidSubtype(Dividend, "SWEEP"))
	assert.False(t, ValidSubtype(Buy, "REINVESTED"))
	assert.True(t, ValidSubtype(Buy, "REINVESTMENT"))
}

func TestCashSymbol(t *testing.T) {
	assert.Equal(t, "$CASH-USD", CashSymbol(" usd "))
	assert.True(t, IsCashSymbol("$CASH-EUR"))
	assert.False(t, IsCashSymbol("AAPL"))
}

func TestValidSymbol(t *testing.T) {
	valid := []string{"AAPL", "BRK.B", "VOD-L", "ABC1", "$CASH-USD", "MC.PA", "RDS.A-B"}
	for _, sym := range valid {
		assert.True(t, ValidSymbol(sym), sym)
	}

	invalid := []string{"", "apple inc", "TOOLONGSYMBOL", "A.B.C.D", "$CASH-US", "$CASH-usd"}
	for _, sym := range invalid {
		assert.False(t, ValidSymbol(sym), sym)
	}
}

func TestFieldMessages(t *testing.T) {
	m := FieldMessages{}
	m.Add("date", "missing")
	m.Add("date", "missing")
	m.Merge(FieldMessages{"date": {"missing", "unparsed"}, "amount": {"zero"}})

	assert.Equal(t, []string{"missing", "missing", "unparsed"}, m["date"])
	assert.Equal(t, []string{"zero"}, m["amount"])
}

func TestFieldMessagesClone(t *testing.T) {
	m := FieldMessages{"date": {"missing"}}
	clone := m.Clone()
	clone.Add("date", "extra")

	assert.Len(t, m["date"], 1)
	assert.Len(t, clone["date"], 2)
	assert.Nil(t, FieldMessages(nil).Clone())
}

func TestDraftClone(t *testing.T) {
	d := Draft{
		RowIndex: 3,
		RawRow:   []string{"2024-03-15", "SELL"},
		Errors:   FieldMessages{"date": {"missing"}},
	}
	clone := d.Clone()
	clone.RawRow[0] = "changed"
	clone.Errors.Add("date", "extra")

	assert.Equal(t, "2024-03-15", d.RawRow[0])
	assert.Len(t, d.Errors["date"], 1)
}

func TestCommittable(t *testing.T) {
	assert.True(t, Draft{Status: StatusValid}.Committable())
	assert.True(t, Draft{Status: StatusWarning}.Committable())
	assert.False(t, Draft{Status: StatusError}.Committable())
	assert.False(t, Draft{Status: StatusDuplicate}.Committable())
	assert.False(t, Draft{Status: StatusSkipped}.Committable())
}
