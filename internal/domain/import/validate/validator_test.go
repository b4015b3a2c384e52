package validate

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/portfolio-importer/internal/domain/activity"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/mapping"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/sniffer"
)

var testAccount = uuid.MustParse("7f0c2d4e-9a31-4c5d-8f6b-1e2a3b4c5d6e")

func testTable(rows [][]string) *sniffer.RawTable {
	return &sniffer.RawTable{
		Headers:    []string{"Date", "Type", "Symbol", "Quantity", "Price", "Amount", "Fee", "Currency"},
		Normalized: []string{"date", "type", "symbol", "quantity", "price", "amount", "fee", "currency"},
		Rows:       rows,
		Delimiter:  ',',
	}
}

func testValidator(t *testing.T, rows [][]string) (*Validator, *sniffer.RawTable) {
	t.Helper()
	table := testTable(rows)
	resolver := mapping.NewResolver(mapping.NewImportMapping(testAccount), table, testAccount)
	return New(resolver, Options{DefaultCurrency: "USD"}), table
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestBuildDraftSell(t *testing.T) {
	v, table := testValidator(t, [][]string{
		{"2024-03-15", "SELL", "AAPL", "25", "48.945", "", "1.25", "USD"},
	})

	drafts := v.BuildDrafts(table)
	require.Len(t, drafts, 1)

	d := drafts[0]
	assert.Equal(t, activity.StatusValid, d.Status)
	assert.Equal(t, activity.Sell, d.Type)
	assert.Equal(t, "AAPL", d.Symbol)
	assert.Equal(t, "2024-03-15", d.Date.Format("2006-01-02"))
	assert.True(t, d.Amount.Equal(dec(t, "1223.625")), "amount = %s", d.Amount)
	assert.True(t, d.FeeAmount.Equal(dec(t, "1.25")))
	assert.Equal(t, testAccount, d.AccountID)
	assert.Empty(t, d.Errors)
}

func TestBuildDraftPerType(t *testing.T) {
	tests := []struct {
		name       string
		row        []string
		wantStatus activity.Status
		wantSymbol string
		wantAmount string
		wantFee    string
		errField   string
	}{
		{
			name:       "buy derives amount from quantity and price",
			row:        []string{"2024-01-02", "BUY", "MSFT", "10", "400", "999999", "", "USD"},
			wantStatus: activity.StatusValid,
			wantSymbol: "MSFT",
			wantAmount: "4000",
		},
		{
			name:       "buy without unit price errors",
			row:        []string{"2024-01-02", "BUY", "MSFT", "10", "", "4000", "", "USD"},
			wantStatus: activity.StatusError,
			errField:   "unitPrice",
		},
		{
			name:       "deposit books against cash symbol",
			row:        []string{"2024-01-02", "DEPOSIT", "", "", "", "500", "", "USD"},
			wantStatus: activity.StatusValid,
			wantSymbol: "$CASH-USD",
			wantAmount: "500",
		},
		{
			name:       "interest derives amount from quantity",
			row:        []string{"2024-01-02", "INTEREST", "", "12.5", "", "", "", "EUR"},
			wantStatus: activity.StatusValid,
			wantSymbol: "$CASH-EUR",
			wantAmount: "12.5",
		},
		{
			name:       "withdrawal with no value anywhere errors",
			row:        []string{"2024-01-02", "WITHDRAWAL", "", "", "", "", "", "USD"},
			wantStatus: activity.StatusError,
			errField:   "amount",
		},
		{
			name:       "fee cascades amount into fee",
			row:        []string{"2024-01-02", "FEE", "", "", "", "9.99", "", "USD"},
			wantStatus: activity.StatusValid,
			wantSymbol: "$CASH-USD",
			wantFee:    "9.99",
		},
		{
			name:       "fee with neither fee nor amount errors",
			row:        []string{"2024-01-02", "FEE", "", "", "", "", "", "USD"},
			wantStatus: activity.StatusError,
			errField:   "fee",
		},
		{
			name:       "tax without any value errors",
			row:        []string{"2024-01-02", "TAX", "", "", "", "", "", "USD"},
			wantStatus: activity.StatusError,
			errField:   "amount",
		},
		{
			name:       "split zeroes money fields",
			row:        []string{"2024-01-02", "SPLIT", "NVDA", "10", "", "123.45", "9.99", "USD"},
			wantStatus: activity.StatusValid,
			wantSymbol: "NVDA",
			wantAmount: "0",
			wantFee:    "0",
		},
		{
			name:       "dividend keeps the paying symbol",
			row:        []string{"2024-01-02", "DIVIDEND", "KO", "", "", "48.5", "", "USD"},
			wantStatus: activity.StatusValid,
			wantSymbol: "KO",
			wantAmount: "48.5",
		},
		{
			name:       "security transfer requires quantity",
			row:        []string{"2024-01-02", "TRANSFER_IN", "VTI", "", "", "", "", "USD"},
			wantStatus: activity.StatusError,
			errField:   "quantity",
		},
		{
			name:       "cash transfer falls back to cash symbol",
			row:        []string{"2024-01-02", "TRANSFER_OUT", "", "", "", "2500", "", "USD"},
			wantStatus: activity.StatusValid,
			wantSymbol: "$CASH-USD",
			wantAmount: "2500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, table := testValidator(t, [][]string{tt.row})
			d := v.BuildDrafts(table)[0]

			assert.Equal(t, tt.wantStatus, d.Status, "errors: %v", d.Errors)
			if tt.wantSymbol != "" {
				assert.Equal(t, tt.wantSymbol, d.Symbol)
			}
			if tt.wantAmount != "" {
				assert.True(t, d.Amount.Equal(dec(t, tt.wantAmount)), "amount = %s", d.Amount)
			}
			if tt.wantFee != "" {
				assert.True(t, d.FeeAmount.Equal(dec(t, tt.wantFee)), "fee = %s", d.FeeAmount)
			}
			if tt.errField != "" {
				assert.NotEmpty(t, d.Errors[tt.errField])
			}
		})
	}
}

func TestBuildDraftFieldErrors(t *testing.T) {
	t.Run("missing date and type", func(t *testing.T) {
		v, table := testValidator(t, [][]string{{"", "", "AAPL", "1", "10", "", "", "USD"}})
		d := v.BuildDrafts(table)[0]

		assert.Equal(t, activity.StatusError, d.Status)
		assert.NotEmpty(t, d.Errors["date"])
		assert.NotEmpty(t, d.Errors["activityType"])
	})

	t.Run("unmapped activity token", func(t *testing.T) {
		v, table := testValidator(t, [][]string{{"2024-01-02", "JOURNALED SHARES", "AAPL", "1", "10", "", "", "USD"}})
		d := v.BuildDrafts(table)[0]

		assert.Equal(t, activity.StatusError, d.Status)
		assert.NotEmpty(t, d.Errors["activityType"])
	})

	t.Run("unknown currency", func(t *testing.T) {
		v, table := testValidator(t, [][]string{{"2024-01-02", "DEPOSIT", "", "", "", "100", "", "XXX1"}})
		d := v.BuildDrafts(table)[0]

		assert.Equal(t, activity.StatusError, d.Status)
		assert.NotEmpty(t, d.Errors["currency"])
	})

	t.Run("default currency fills the blank", func(t *testing.T) {
		v, table := testValidator(t, [][]string{{"2024-01-02", "DEPOSIT", "", "", "", "100", "", ""}})
		d := v.BuildDrafts(table)[0]

		assert.Equal(t, activity.StatusValid, d.Status)
		assert.Equal(t, "USD", d.Currency)
		assert.Equal(t, "$CASH-USD", d.Symbol)
	})

	t.Run("garbage number is an error not a crash", func(t *testing.T) {
		v, table := testValidator(t, [][]string{{"2024-01-02", "BUY", "AAPL", "ten", "10", "", "", "USD"}})
		d := v.BuildDrafts(table)[0]

		assert.Equal(t, activity.StatusError, d.Status)
		assert.NotEmpty(t, d.Errors["quantity"])
	})

	t.Run("unresolved symbol on a trade", func(t *testing.T) {
		v, table := testValidator(t, [][]string{{"2024-01-02", "BUY", "Apple Inc. Common Stock", "1", "10", "", "", "USD"}})
		d := v.BuildDrafts(table)[0]

		assert.Equal(t, activity.StatusError, d.Status)
		assert.NotEmpty(t, d.Errors["symbol"])
	})
}

func TestBuildDraftSubtypes(t *testing.T) {
	t.Run("whitelisted subtype kept", func(t *testing.T) {
		v, table := testValidator(t, [][]string{{"2024-01-02", "DIVIDEND REINVESTED", "KO", "", "", "48.5", "", "USD"}})
		d := v.BuildDrafts(table)[0]

		assert.Equal(t, activity.Dividend, d.Type)
		assert.Equal(t, "REINVESTED", d.Subtype)
		assert.Equal(t, activity.StatusValid, d.Status)
	})

	t.Run("unknown subtype dropped with warning", func(t *testing.T) {
		v, table := testValidator(t, [][]string{{"2024-01-02", "DEPOSIT - SWEEP", "", "", "", "100", "", "USD"}})
		d := v.BuildDrafts(table)[0]

		assert.Equal(t, activity.Deposit, d.Type)
		assert.Empty(t, d.Subtype)
		assert.Equal(t, activity.StatusWarning, d.Status)
		assert.NotEmpty(t, d.Warnings["subtype"])
	})

	t.Run("dropped subtype warning survives revalidation", func(t *testing.T) {
		v, table := testValidator(t, [][]string{{"2024-01-02", "DIVIDEND BONUS", "KO", "", "", "48.5", "", "USD"}})
		d := v.BuildDrafts(table)[0]
		require.Equal(t, activity.StatusWarning, d.Status)

		Revalidate(&d)

		assert.Equal(t, activity.StatusWarning, d.Status)
		assert.NotEmpty(t, d.Warnings["subtype"])
	})

	t.Run("editing in a whitelisted subtype clears the warning", func(t *testing.T) {
		v, table := testValidator(t, [][]string{{"2024-01-02", "DIVIDEND BONUS", "KO", "", "", "48.5", "", "USD"}})
		d := v.BuildDrafts(table)[0]
		require.Equal(t, activity.StatusWarning, d.Status)

		d.Subtype = "REINVESTED"
		d.IsEdited = true
		Revalidate(&d)

		assert.Equal(t, activity.StatusValid, d.Status)
		assert.Equal(t, "REINVESTED", d.Subtype)
		assert.Empty(t, d.Warnings)
	})
}

func TestRevalidate(t *testing.T) {
	t.Run("fixing the error clears it", func(t *testing.T) {
		v, table := testValidator(t, [][]string{{"2024-01-02", "BUY", "MSFT", "10", "", "", "", "USD"}})
		d := v.BuildDrafts(table)[0]
		require.Equal(t, activity.StatusError, d.Status)

		d.UnitPrice = dec(t, "400")
		d.IsEdited = true
		Revalidate(&d)

		assert.Equal(t, activity.StatusValid, d.Status)
		assert.True(t, d.Amount.Equal(dec(t, "4000")))
		assert.Empty(t, d.Errors)
	})

	t.Run("editing quantity recomputes the trade amount", func(t *testing.T) {
		v, table := testValidator(t, [][]string{{"2024-01-02", "SELL", "AAPL", "25", "48.945", "", "", "USD"}})
		d := v.BuildDrafts(table)[0]

		d.Quantity = dec(t, "50")
		Revalidate(&d)

		assert.True(t, d.Amount.Equal(dec(t, "2447.25")), "amount = %s", d.Amount)
	})

	t.Run("skipped status is sticky", func(t *testing.T) {
		v, table := testValidator(t, [][]string{{"2024-01-02", "BUY", "MSFT", "10", "400", "", "", "USD"}})
		d := v.BuildDrafts(table)[0]

		d.Status = activity.StatusSkipped
		d.UnitPrice = decimal.Zero
		Revalidate(&d)

		assert.Equal(t, activity.StatusSkipped, d.Status)
	})

	t.Run("duplicate status is sticky", func(t *testing.T) {
		v, table := testValidator(t, [][]string{{"2024-01-02", "BUY", "MSFT", "10", "400", "", "", "USD"}})
		d := v.BuildDrafts(table)[0]

		d.Status = activity.StatusDuplicate
		d.DuplicateOfID = "existing-id"
		Revalidate(&d)

		assert.Equal(t, activity.StatusDuplicate, d.Status)
	})
}
