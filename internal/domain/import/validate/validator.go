// Package validate turns raw table rows into draft activities and applies the
// per-type business rules. Validation runs twice in a row's life: once when
// drafts are built from raw cells, and again whenever the review step edits a
// draft's typed fields.
package validate

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/portfolio-importer/internal/domain/activity"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/mapping"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/normalizer"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/sniffer"
	"github.com/FACorreiaa/portfolio-importer/pkg/money"
)

// Options carry the parse settings the validator needs beyond the mapping
// itself. DefaultCurrency fills rows with no currency cell.
type Options struct {
	Date            normalizer.DateOptions
	Number          normalizer.NumberOptions
	DefaultCurrency string
}

// Validator builds and validates drafts for one concrete table under one
// resolver. It holds no mutable state and is safe for concurrent use.
type Validator struct {
	resolver *mapping.Resolver
	opts     Options
}

// New binds a validator to a resolver and parse options.
func New(resolver *mapping.Resolver, opts Options) *Validator {
	opts.DefaultCurrency = money.NormalizeCurrency(opts.DefaultCurrency)
	return &Validator{resolver: resolver, opts: opts}
}

// BuildDrafts converts every data row of the table into a validated draft,
// in row order.
func (v *Validator) BuildDrafts(table *sniffer.RawTable) []activity.Draft {
	drafts := make([]activity.Draft, 0, len(table.Rows))
	for i, row := range table.Rows {
		drafts = append(drafts, v.BuildDraft(i, row))
	}
	return drafts
}

// BuildDraft parses one raw row into a draft and validates it. A row never
// fails outright: every problem lands in the draft's error or warning map and
// the row keeps flowing through the pipeline.
func (v *Validator) BuildDraft(rowIndex int, row []string) activity.Draft {
	d := activity.Draft{
		RowIndex: rowIndex,
		RawRow:   append([]string(nil), row...),
		Errors:   make(activity.FieldMessages),
		Warnings: make(activity.FieldMessages),
	}

	if raw := v.resolver.Value(rowIndex, mapping.FieldDate); raw == "" {
		d.Errors.Add("date", "date is required")
	} else if t, ok := normalizer.ParseDate(raw, v.opts.Date); ok {
		d.Date = normalizer.DateOnly(t)
	} else {
		d.Errors.Add("date", "unrecognized date "+strconv.Quote(raw))
	}

	rawType := v.resolver.Value(rowIndex, mapping.FieldType)
	if rawType == "" {
		d.Errors.Add("activityType", "activity type is required")
	} else if t, sub, ok := v.resolver.ResolveTypeDetail(rawType); ok {
		d.Type = t
		d.Subtype = sub
	} else {
		d.Errors.Add("activityType", "unmapped activity type "+strconv.Quote(rawType))
	}

	cur := money.NormalizeCurrency(v.resolver.Value(rowIndex, mapping.FieldCurrency))
	if cur == "" {
		cur = v.opts.DefaultCurrency
	}
	switch {
	case cur == "":
		d.Errors.Add("currency", "currency is required")
	case !money.ValidCurrency(cur):
		d.Errors.Add("currency", "unknown currency "+strconv.Quote(cur))
	default:
		d.Currency = cur
	}

	d.AccountID = v.resolver.ResolveAccount(v.resolver.Value(rowIndex, mapping.FieldAccount))

	d.Quantity = v.number(rowIndex, mapping.FieldQuantity, "quantity", d.Errors)
	d.UnitPrice = v.number(rowIndex, mapping.FieldUnitPrice, "unitPrice", d.Errors)
	d.Amount = v.number(rowIndex, mapping.FieldAmount, "amount", d.Errors)
	d.FeeAmount = v.number(rowIndex, mapping.FieldFee, "fee", d.Errors)
	d.FxRate = v.number(rowIndex, mapping.FieldFxRate, "fxRate", d.Errors)

	if rawSym := v.resolver.Value(rowIndex, mapping.FieldSymbol); rawSym != "" {
		if sym, ok := v.resolver.ResolveSymbol(rawSym); ok {
			d.Symbol = sym
		} else if d.Type != "" && !d.Type.UsesCashSymbol() {
			d.Errors.Add("symbol", "unresolved symbol "+strconv.Quote(rawSym))
		}
	}

	d.Comment = normalizer.CleanDescription(v.resolver.Value(rowIndex, mapping.FieldComment))

	finishValidation(&d)
	return d
}

func (v *Validator) number(rowIndex int, field mapping.Field, name string, errs activity.FieldMessages) decimal.Decimal {
	raw := v.resolver.Value(rowIndex, field)
	if normalizer.IsEmptyToken(raw) {
		return decimal.Zero
	}
	dec, ok := normalizer.ParseDecimal(raw, v.opts.Number)
	if !ok {
		errs.Add(name, "invalid number "+strconv.Quote(raw))
		return decimal.Zero
	}
	return dec
}

// Revalidate re-runs validation on an edited draft, treating its typed fields
// as the source of truth. Raw cells are not re-parsed; the review step edits
// typed values, not CSV text. Skipped and duplicate statuses are sticky and
// survive revalidation untouched.
func Revalidate(d *activity.Draft) {
	if d.Status == activity.StatusSkipped || d.Status == activity.StatusDuplicate {
		return
	}

	d.Errors = make(activity.FieldMessages)
	d.Warnings = make(activity.FieldMessages)

	if !d.HasDate() {
		d.Errors.Add("date", "date is required")
	}
	if d.Type == "" {
		d.Errors.Add("activityType", "activity type is required")
	} else if _, ok := activity.ParseType(string(d.Type)); !ok {
		d.Errors.Add("activityType", "unknown activity type "+strconv.Quote(string(d.Type)))
	}

	d.Currency = money.NormalizeCurrency(d.Currency)
	switch {
	case d.Currency == "":
		d.Errors.Add("currency", "currency is required")
	case !money.ValidCurrency(d.Currency):
		d.Errors.Add("currency", "unknown currency "+strconv.Quote(d.Currency))
	}

	finishValidation(d)
}

// finishValidation applies everything downstream of field parsing: the
// per-type amount and fee derivation, the business rules, the subtype
// whitelist, and the final status.
func finishValidation(d *activity.Draft) {
	if d.AccountID == uuid.Nil {
		d.Errors.Add("account", "no account selected")
	}

	if d.Type != "" {
		applyTypeRules(d)
	}

	switch {
	case d.Subtype != "" && d.Type != "" && !activity.ValidSubtype(d.Type, d.Subtype):
		d.DroppedSubtype = d.Subtype
		d.Subtype = ""
	case d.Subtype != "":
		// An accepted subtype supersedes a previously rejected token.
		d.DroppedSubtype = ""
	}
	if d.DroppedSubtype != "" {
		d.Warnings.Add("subtype", "unknown subtype "+strconv.Quote(d.DroppedSubtype)+" dropped")
	}

	switch {
	case len(d.Errors) > 0:
		d.Status = activity.StatusError
	case len(d.Warnings) > 0:
		d.Status = activity.StatusWarning
	default:
		d.Status = activity.StatusValid
	}
}

// applyTypeRules derives amount and fee per activity type and enforces the
// type's business rules. Quantity, unit price and amount arrive as absolute
// magnitudes; direction is carried entirely by the type.
func applyTypeRules(d *activity.Draft) {
	switch {
	case d.Type.IsTrade():
		if d.Quantity.IsPositive() && d.UnitPrice.IsPositive() {
			d.Amount = d.Quantity.Mul(d.UnitPrice)
		}
		if !d.UnitPrice.IsPositive() {
			d.Errors.Add("unitPrice", "unit price must be greater than zero")
		}

	case d.Type == activity.Split:
		// A split carries a ratio in quantity; money fields are meaningless.
		d.Amount = decimal.Zero
		d.FeeAmount = decimal.Zero

	case d.Type == activity.Fee:
		d.Symbol = cashSymbol(d)
		if !d.FeeAmount.IsPositive() && d.Amount.IsPositive() {
			d.FeeAmount = d.Amount
		}
		if !d.FeeAmount.IsPositive() {
			d.Errors.Add("fee", "fee or amount must be greater than zero")
		}

	case d.Type == activity.Dividend:
		if d.Symbol == "" {
			d.Symbol = cashSymbol(d)
		}
		d.Amount = deriveCashAmount(d)
		requireNonZero(d)

	case d.Type.IsTransfer():
		if d.Symbol == "" || activity.IsCashSymbol(d.Symbol) {
			d.Symbol = cashSymbol(d)
			d.Amount = deriveCashAmount(d)
			requireNonZero(d)
		} else if !d.Quantity.IsPositive() {
			d.Errors.Add("quantity", "security transfers need a quantity greater than zero")
		}

	default:
		// Deposit, withdrawal, interest, tax: pure cash legs.
		d.Symbol = cashSymbol(d)
		d.Amount = deriveCashAmount(d)
		requireNonZero(d)
	}
}

// deriveCashAmount picks the cash value of a row: the provided amount, else
// quantity times price, else whichever single component is set. Brokers put
// cash values in any of the three columns.
func deriveCashAmount(d *activity.Draft) decimal.Decimal {
	switch {
	case d.Amount.IsPositive():
		return d.Amount
	case d.Quantity.IsPositive() && d.UnitPrice.IsPositive():
		return d.Quantity.Mul(d.UnitPrice)
	case d.Quantity.IsPositive():
		return d.Quantity
	case d.UnitPrice.IsPositive():
		return d.UnitPrice
	default:
		return decimal.Zero
	}
}

func requireNonZero(d *activity.Draft) {
	if !d.Amount.IsPositive() && !d.Quantity.IsPositive() && !d.UnitPrice.IsPositive() {
		d.Errors.Add("amount", "amount, quantity or unit price must be greater than zero")
	}
}

// cashSymbol returns the synthetic cash symbol for the draft's currency, or
// empty when the currency itself failed validation.
func cashSymbol(d *activity.Draft) string {
	if d.Currency == "" {
		return ""
	}
	return activity.CashSymbol(d.Currency)
}
