package mapping

import (
	"strings"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/portfolio-importer/internal/domain/activity"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/sniffer"
)

// Resolver answers the four mapping questions for a concrete table: which
// column holds each field, what canonical type a raw token means, what a raw
// symbol resolves to, and which internal account a raw account token names.
// It is immutable once built; rebuilding after a mapping edit is cheap.
type Resolver struct {
	mapping *ImportMapping
	table   *sniffer.RawTable

	// DefaultAccountID receives rows whose account token has no mapping.
	DefaultAccountID uuid.UUID

	columns map[Field]int
}

// NewResolver binds a mapping profile to a parsed table. Explicit field
// mappings always win; unbound fields fall back to a header that equals the
// field name, then to the alias table.
func NewResolver(m *ImportMapping, table *sniffer.RawTable, defaultAccount uuid.UUID) *Resolver {
	r := &Resolver{
		mapping:          m,
		table:            table,
		DefaultAccountID: defaultAccount,
		columns:          make(map[Field]int, len(AllFields)),
	}

	claimed := make(map[int]bool)
	for _, field := range AllFields {
		idx := r.inferColumn(field, claimed)
		r.columns[field] = idx
		if idx >= 0 {
			claimed[idx] = true
		}
	}
	return r
}

func (r *Resolver) inferColumn(field Field, claimed map[int]bool) int {
	if header, ok := r.mapping.FieldMappings[field]; ok && header != "" {
		return r.table.ColumnIndex(header)
	}

	// Headers equal to the field name self-bind.
	if idx := r.table.ColumnIndex(strings.ToLower(string(field))); idx >= 0 && !claimed[idx] {
		return idx
	}

	for _, alias := range headerAliases[field] {
		if idx := r.table.ColumnIndex(alias); idx >= 0 && !claimed[idx] {
			return idx
		}
	}
	return -1
}

// Column returns the column index bound to a field, or -1.
func (r *Resolver) Column(field Field) int { return r.columns[field] }

// Value extracts the trimmed cell for a field from a table row.
func (r *Resolver) Value(rowIndex int, field Field) string {
	idx := r.columns[field]
	if idx < 0 {
		return ""
	}
	return r.table.Cell(rowIndex, idx)
}

// ResolveType folds a raw activity token into a canonical type. Precedence:
// explicit mapping prefixes, then exact default, then default prefixes, then
// the keyword scan. Explicit prefixes are checked in canonical type
// declaration order and, within a type, registration order.
func (r *Resolver) ResolveType(token string) (activity.Type, bool) {
	t, _, ok := r.ResolveTypeDetail(token)
	return t, ok
}

// ResolveTypeDetail resolves a raw token and also returns what the matched
// prefix left unconsumed, as a subtype candidate: "DIVIDEND REINVESTED"
// yields (Dividend, "REINVESTED"). Keyword matches carry no remainder; a hit
// buried inside a free-text description says nothing about subtypes.
func (r *Resolver) ResolveTypeDetail(token string) (activity.Type, string, bool) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return "", "", false
	}

	for _, t := range activity.AllTypes {
		for _, prefix := range r.mapping.ActivityMappings[t] {
			upper := strings.ToUpper(prefix)
			if strings.HasPrefix(token, upper) {
				return t, subtypeRemainder(token[len(upper):]), true
			}
		}
	}

	if t, ok := activity.ParseType(token); ok {
		return t, "", true
	}

	for _, def := range defaultTypePrefixes {
		if strings.HasPrefix(token, def.prefix) {
			return def.t, subtypeRemainder(token[len(def.prefix):]), true
		}
	}

	t, ok := matchTypeKeyword(token)
	return t, "", ok
}

// subtypeRemainder normalizes the tail of a type token into subtype form:
// separators trimmed, inner spaces folded to underscores.
func subtypeRemainder(tail string) string {
	tail = strings.Trim(tail, " \t-_:()/.")
	if tail == "" {
		return ""
	}
	return strings.Join(strings.Fields(tail), "_")
}

// ResolveSymbol maps a raw symbol token to a resolved symbol. Explicit
// mappings win; a token already satisfying the ticker grammar (or the
// synthetic cash form) is self-resolved.
func (r *Resolver) ResolveSymbol(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	if resolved, ok := r.mapping.SymbolMappings[token]; ok {
		return resolved, true
	}
	upper := strings.ToUpper(token)
	if activity.ValidSymbol(upper) {
		return upper, true
	}
	return "", false
}

// ResolveAccount maps a raw account token to an internal account id, falling
// back to the wizard's selected default account.
func (r *Resolver) ResolveAccount(token string) uuid.UUID {
	token = strings.TrimSpace(token)
	if token != "" {
		if id, ok := r.mapping.AccountMappings[token]; ok {
			return id
		}
	}
	return r.DefaultAccountID
}

// ColumnSuggestion is a fuzzy candidate for an unbound field, for the
// mapping step UI.
type ColumnSuggestion struct {
	Field  Field  `json:"field"`
	Header string `json:"header"`
	Score  int    `json:"score"`
}

// SuggestColumns fuzzy-ranks headers for every field with no inferred
// column. Suggestions never auto-bind; the user confirms them into explicit
// field mappings.
func (r *Resolver) SuggestColumns() []ColumnSuggestion {
	var suggestions []ColumnSuggestion
	for _, field := range AllFields {
		if r.columns[field] >= 0 {
			continue
		}
		targets := append([]string{strings.ToLower(string(field))}, headerAliases[field]...)
		best := ColumnSuggestion{Field: field, Score: -1}
		for _, target := range targets {
			ranks := fuzzy.RankFindNormalizedFold(target, r.table.Normalized)
			for _, rank := range ranks {
				// RankFind distances are smaller-is-better; invert so the
				// suggestion carries a bigger-is-better score.
				score := 100 - rank.Distance
				if score > best.Score {
					best.Score = score
					best.Header = r.table.Headers[rank.OriginalIndex]
				}
			}
		}
		if best.Score >= 0 {
			suggestions = append(suggestions, best)
		}
	}
	return suggestions
}

// UnmappedTypeTokens returns the distinct raw activity tokens in the table
// that resolve to nothing, in first-appearance order. The wizard surfaces
// these for manual mapping.
func (r *Resolver) UnmappedTypeTokens() []string {
	seen := make(map[string]bool)
	var tokens []string
	for i := range r.table.Rows {
		raw := r.Value(i, FieldType)
		if raw == "" {
			continue
		}
		upper := strings.ToUpper(raw)
		if seen[upper] {
			continue
		}
		seen[upper] = true
		if _, ok := r.ResolveType(raw); !ok {
			tokens = append(tokens, upper)
		}
	}
	return tokens
}

// UnmappedSymbolTokens returns the distinct raw symbols that resolve to
// nothing, in first-appearance order.
func (r *Resolver) UnmappedSymbolTokens() []string {
	seen := make(map[string]bool)
	var tokens []string
	for i := range r.table.Rows {
		raw := r.Value(i, FieldSymbol)
		if raw == "" || seen[raw] {
			continue
		}
		seen[raw] = true
		if _, ok := r.ResolveSymbol(raw); !ok {
			tokens = append(tokens, raw)
		}
	}
	return tokens
}
