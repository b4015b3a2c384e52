// Package dedupe computes content-addressed idempotency keys for prospective
// activities and marks drafts the ledger has already recorded. Key generation
// must stay bit-for-bit compatible with the ledger's own generator: a client
// hash that disagrees with the backend hash on equivalent input breaks
// deduplication silently.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/portfolio-importer/internal/domain/activity"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/normalizer"
)

// KeyInput is the normalized content of one prospective activity. Two inputs
// that are semantically identical must produce identical keys.
type KeyInput struct {
	AccountID           uuid.UUID
	Type                activity.Type
	Date                time.Time
	AssetID             string
	Quantity            decimal.Decimal
	UnitPrice           decimal.Decimal
	Amount              decimal.Decimal
	Currency            string
	ProviderReferenceID string
	Description         string
}

// FromDraft builds the key input for a draft. CSV imports carry no provider
// reference; that slot stays empty and still participates in the canonical
// string.
func FromDraft(d activity.Draft) KeyInput {
	return KeyInput{
		AccountID:   d.AccountID,
		Type:        d.Type,
		Date:        d.Date,
		AssetID:     d.Symbol,
		Quantity:    d.Quantity,
		UnitPrice:   d.UnitPrice,
		Amount:      d.Amount,
		Currency:    d.Currency,
		Description: d.Comment,
	}
}

// CanonicalString renders the pipe-delimited form that gets hashed. Field
// order and number rendering mirror the ledger's generator exactly: absent
// numbers render as "0", numbers carry no trailing fraction zeros, the date
// is date-only, and the description has its whitespace collapsed.
func (in KeyInput) CanonicalString() string {
	return strings.Join([]string{
		in.AccountID.String(),
		string(in.Type),
		normalizer.FormatDate(in.Date),
		in.AssetID,
		normalizer.CanonicalNumber(in.Quantity),
		normalizer.CanonicalNumber(in.UnitPrice),
		normalizer.CanonicalNumber(in.Amount),
		strings.ToUpper(strings.TrimSpace(in.Currency)),
		in.ProviderReferenceID,
		normalizer.CleanDescription(in.Description),
	}, "|")
}

// Key returns the hex-encoded SHA-256 of the canonical string.
func (in KeyInput) Key() string {
	sum := sha256.Sum256([]byte(in.CanonicalString()))
	return hex.EncodeToString(sum[:])
}
