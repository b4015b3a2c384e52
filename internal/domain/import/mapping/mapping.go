// Package mapping resolves the vocabulary of a broker's CSV export into the
// canonical import model: columns to fields, activity tokens to canonical
// types, raw symbols to tickers, and account tokens to internal accounts.
// Mappings are persisted per account and reused on later imports.
package mapping

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/portfolio-importer/internal/domain/activity"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/sniffer"
)

// Field is a canonical activity field a CSV column can map to.
type Field string

const (
	FieldDate      Field = "date"
	FieldType      Field = "type"
	FieldSymbol    Field = "symbol"
	FieldQuantity  Field = "quantity"
	FieldUnitPrice Field = "unitPrice"
	FieldAmount    Field = "amount"
	FieldFee       Field = "fee"
	FieldCurrency  Field = "currency"
	FieldFxRate    Field = "fxRate"
	FieldAccount   Field = "account"
	FieldComment   Field = "comment"
)

// AllFields in display order. Required fields come first.
var AllFields = []Field{
	FieldDate, FieldType, FieldSymbol, FieldQuantity, FieldUnitPrice,
	FieldAmount, FieldFee, FieldCurrency, FieldFxRate, FieldAccount,
	FieldComment,
}

// RequiredFields must be bound before the wizard can leave the mapping step.
var RequiredFields = []Field{FieldDate, FieldType, FieldSymbol, FieldQuantity, FieldUnitPrice, FieldAmount}

// ImportMapping is the persisted per-account mapping profile. Field mappings
// bind canonical fields to normalized CSV headers; the three token maps fold
// broker vocabulary into canonical values. All token maps are last-write-wins
// per key.
type ImportMapping struct {
	AccountID uuid.UUID `json:"account_id"`

	// FieldMappings binds canonical field -> normalized CSV header. At most
	// one header per field, and a header may serve at most one field.
	FieldMappings map[Field]string `json:"field_mappings"`

	// ActivityMappings binds canonical type -> CSV token prefixes.
	ActivityMappings map[activity.Type][]string `json:"activity_mappings"`

	// SymbolMappings binds raw CSV symbol token -> resolved symbol.
	SymbolMappings map[string]string `json:"symbol_mappings"`

	// AccountMappings binds raw CSV account token -> internal account id.
	AccountMappings map[string]uuid.UUID `json:"account_mappings"`

	ParseConfig sniffer.ParseConfig `json:"parse_config"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewImportMapping returns an empty profile for an account.
func NewImportMapping(accountID uuid.UUID) *ImportMapping {
	return &ImportMapping{
		AccountID:        accountID,
		FieldMappings:    make(map[Field]string),
		ActivityMappings: make(map[activity.Type][]string),
		SymbolMappings:   make(map[string]string),
		AccountMappings:  make(map[string]uuid.UUID),
		ParseConfig:      sniffer.DefaultParseConfig(),
	}
}

// SetField binds a field to a normalized header, displacing any other field
// currently bound to that header so the one-to-one invariant holds.
func (m *ImportMapping) SetField(field Field, normalizedHeader string) {
	if m.FieldMappings == nil {
		m.FieldMappings = make(map[Field]string)
	}
	for f, h := range m.FieldMappings {
		if h == normalizedHeader && f != field {
			delete(m.FieldMappings, f)
		}
	}
	if normalizedHeader == "" {
		delete(m.FieldMappings, field)
		return
	}
	m.FieldMappings[field] = normalizedHeader
}

// Validate checks structural invariants: no header claimed by two fields.
func (m *ImportMapping) Validate() error {
	seen := make(map[string]Field, len(m.FieldMappings))
	for field, header := range m.FieldMappings {
		if header == "" {
			continue
		}
		if other, dup := seen[header]; dup {
			return fmt.Errorf("header %q mapped to both %s and %s", header, other, field)
		}
		seen[header] = field
	}
	return nil
}

// MissingRequiredFields returns the required fields with no bound header,
// in display order.
func (m *ImportMapping) MissingRequiredFields() []Field {
	var missing []Field
	for _, f := range RequiredFields {
		if m.FieldMappings[f] == "" {
			missing = append(missing, f)
		}
	}
	return missing
}
