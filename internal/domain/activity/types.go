// Package activity defines the canonical activity taxonomy shared by every
// stage of the import pipeline. The type set is closed: the mapping resolver
// folds whatever vocabulary a broker uses into one of these types, and the
// validator applies per-type rules keyed on them.
package activity

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type is a canonical activity type.
type Type string

const (
	Buy         Type = "BUY"
	Sell        Type = "SELL"
	Dividend    Type = "DIVIDEND"
	Interest    Type = "INTEREST"
	Deposit     Type = "DEPOSIT"
	Withdrawal  Type = "WITHDRAWAL"
	Fee         Type = "FEE"
	Tax         Type = "TAX"
	TransferIn  Type = "TRANSFER_IN"
	TransferOut Type = "TRANSFER_OUT"
	Split       Type = "SPLIT"
)

// AllTypes lists every canonical type in declaration order.
var AllTypes = []Type{
	Buy, Sell, Dividend, Interest, Deposit, Withdrawal,
	Fee, Tax, TransferIn, TransferOut, Split,
}

// ParseType returns the canonical type for an exact uppercase token.
func ParseType(token string) (Type, bool) {
	t := Type(strings.ToUpper(strings.TrimSpace(token)))
	for _, known := range AllTypes {
		if t == known {
			return known, true
		}
	}
	return "", false
}

// IsTrade reports whether the type is a security trade.
func (t Type) IsTrade() bool {
	return t == Buy || t == Sell
}

// IsCashFlow reports whether the type moves cash with no security leg.
func (t Type) IsCashFlow() bool {
	return t == Deposit || t == Withdrawal || t == Interest
}

// IsIncome reports whether the type represents income attached to a holding.
func (t Type) IsIncome() bool {
	return t == Dividend || t == Interest
}

// IsTransfer reports whether the type is an in/out transfer.
func (t Type) IsTransfer() bool {
	return t == TransferIn || t == TransferOut
}

// UsesCashSymbol reports whether the type always books against the synthetic
// cash asset rather than a resolved ticker.
func (t Type) UsesCashSymbol() bool {
	return t.IsCashFlow() || t == Fee || t == Tax
}

// subtypes is the fixed whitelist of advisory subtypes per type. A subtype
// outside this set is dropped by the validator, never rejected.
var subtypes = map[Type][]string{
	Buy:         {"MARKET", "LIMIT", "REINVESTMENT"},
	Sell:        {"MARKET", "LIMIT", "COVER"},
	Dividend:    {"CASH", "REINVESTED", "QUALIFIED", "NON_QUALIFIED"},
	Interest:    {"CREDIT", "BOND", "MARGIN"},
	Deposit:     {"CONTRIBUTION", "ROLLOVER", "TRANSFER"},
	Withdrawal:  {"DISTRIBUTION", "RMD"},
	Fee:         {"MANAGEMENT", "COMMISSION", "ADR", "WIRE"},
	Tax:         {"WITHHOLDING", "NRA", "STAMP_DUTY"},
	TransferIn:  {"ACAT", "INTERNAL"},
	TransferOut: {"ACAT", "INTERNAL"},
	Split:       {"FORWARD", "REVERSE"},
}

// ValidSubtype reports whether sub belongs to the whitelist for t.
func ValidSubtype(t Type, sub string) bool {
	sub = strings.ToUpper(strings.TrimSpace(sub))
	for _, s := range subtypes[t] {
		if s == sub {
			return true
		}
	}
	return false
}

const cashSymbolPrefix = "$CASH-"

// CashSymbol returns the synthetic cash asset symbol for a currency,
// e.g. "$CASH-USD".
func CashSymbol(currency string) string {
	return cashSymbolPrefix + strings.ToUpper(strings.TrimSpace(currency))
}

// IsCashSymbol reports whether sym is a synthetic cash symbol.
func IsCashSymbol(sym string) bool {
	return strings.HasPrefix(sym, cashSymbolPrefix)
}

var (
	tickerRe = regexp.MustCompile(`^[A-Z0-9]{1,10}([.-][A-Z0-9]{1,10}){0,2}$`)
	cashRe   = regexp.MustCompile(`^\$CASH-[A-Z]{3}$`)
)

// ValidSymbol reports whether sym already satisfies the canonical ticker
// grammar (base of up to ten alphanumerics with at most two dot/dash
// qualifiers) or the synthetic cash form.
func ValidSymbol(sym string) bool {
	return tickerRe.MatchString(sym) || cashRe.MatchString(sym)
}

// Status is the review state of a draft row.
type Status string

const (
	StatusValid     Status = "valid"
	StatusWarning   Status = "warning"
	StatusError     Status = "error"
	StatusDuplicate Status = "duplicate"
	StatusSkipped   Status = "skipped"
)

// FieldMessages maps a field name to the messages attached to it. It is used
// for both errors and warnings so local and backend verdicts merge into one
// view.
type FieldMessages map[string][]string

// Add appends a message for a field.
func (m FieldMessages) Add(field, msg string) {
	m[field] = append(m[field], msg)
}

// Merge unions other into m, skipping exact duplicates per field.
func (m FieldMessages) Merge(other FieldMessages) {
	for field, msgs := range other {
		for _, msg := range msgs {
			if !m.contains(field, msg) {
				m[field] = append(m[field], msg)
			}
		}
	}
}

func (m FieldMessages) contains(field, msg string) bool {
	for _, existing := range m[field] {
		if existing == msg {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Reducer transitions never share message slices
// between states.
func (m FieldMessages) Clone() FieldMessages {
	if m == nil {
		return nil
	}
	out := make(FieldMessages, len(m))
	for field, msgs := range m {
		out[field] = append([]string(nil), msgs...)
	}
	return out
}

// Draft is one prospective activity produced from a raw table row. RowIndex
// and RawRow identify the source row and never change; everything else is
// re-derived by validation or edited during review.
type Draft struct {
	RowIndex int      `json:"row_index"`
	RawRow   []string `json:"raw_row"`

	Date      time.Time       `json:"date"`
	Type      Type            `json:"activity_type"`
	Subtype   string          `json:"subtype,omitempty"`
	Symbol    string          `json:"symbol,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    decimal.Decimal `json:"amount"`
	FeeAmount decimal.Decimal `json:"fee"`
	Currency  string          `json:"currency"`
	FxRate    decimal.Decimal `json:"fx_rate"`
	AccountID uuid.UUID       `json:"account_id"`
	Comment   string          `json:"comment,omitempty"`

	IsEdited bool   `json:"is_edited"`
	Status   Status `json:"status"`

	Errors   FieldMessages `json:"errors,omitempty"`
	Warnings FieldMessages `json:"warnings,omitempty"`

	// Subtype token rejected by the whitelist. Kept on the draft so every
	// revalidation re-raises the warning instead of silently upgrading the
	// row to valid.
	DroppedSubtype string `json:"dropped_subtype,omitempty"`

	// Set by the duplicate checker.
	DuplicateOfID string `json:"duplicate_of_id,omitempty"`

	// Set by backend cross-validation.
	SymbolName  string `json:"symbol_name,omitempty"`
	ExchangeMic string `json:"exchange_mic,omitempty"`
}

// ImportResult is the summary the ledger returns after a commit.
type ImportResult struct {
	Fetched  int `json:"fetched"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
	Removed  int `json:"removed"`
}

// Clone returns a deep copy of the draft.
func (d Draft) Clone() Draft {
	out := d
	out.RawRow = append([]string(nil), d.RawRow...)
	out.Errors = d.Errors.Clone()
	out.Warnings = d.Warnings.Clone()
	return out
}

// HasDate reports whether the draft carries a parsed activity date.
func (d Draft) HasDate() bool { return !d.Date.IsZero() }

// Committable reports whether the draft belongs in the default commit set.
func (d Draft) Committable() bool {
	return d.Status == StatusValid || d.Status == StatusWarning
}
