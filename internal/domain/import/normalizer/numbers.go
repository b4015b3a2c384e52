package normalizer

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Currency graphemes stripped before numeric parsing.
var currencySymbols = []string{"$", "£", "€", "¥", "₹", "₦", "₽", "¢"}

// Tokens treated as "no value" rather than a parse failure.
var emptyTokens = map[string]struct{}{
	"":    {},
	"-":   {},
	"n/a": {},
	"na":  {},
	"nan": {},
	"nil": {},
	"null": {},
}

// NoThousandsSeparator declares that the input carries no digit grouping at
// all, so a lone comma or dot can only be a decimal point.
const NoThousandsSeparator rune = -1

// NumberOptions steers separator handling. Zero value means full auto
// detection.
type NumberOptions struct {
	// DecimalSeparator is '.', ',' or 0 for auto.
	DecimalSeparator rune
	// ThousandsSeparator is ',', '.', ' ', NoThousandsSeparator for
	// ungrouped input, or 0 for auto.
	ThousandsSeparator rune
}

// IsEmptyToken reports whether a raw cell means "no value" rather than a
// malformed one.
func IsEmptyToken(s string) bool {
	_, empty := emptyTokens[strings.ToLower(strings.TrimSpace(s))]
	return empty
}

// ParseDecimal parses a raw numeric token into an absolute decimal value.
// It strips currency symbols, thousands separators and internal spaces,
// converts a trailing ",dd" comma into a decimal point, and unwraps
// parenthesized values. Signs are discarded: direction is implied by the
// activity type, because brokers are inconsistent about signing. Returns
// false for empty or non-numeric input; it never errors.
func ParseDecimal(raw string, opts NumberOptions) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if _, empty := emptyTokens[strings.ToLower(s)]; empty {
		return decimal.Decimal{}, false
	}

	// Banking convention writes negatives as (100.50); the magnitude is all
	// the importer keeps.
	s = strings.TrimSpace(strings.Trim(s, "()"))
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "+")

	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return decimal.Decimal{}, false
	}

	s = normalizeSeparators(s, opts)

	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return decimal.Decimal{}, false
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d.Abs(), true
}

func normalizeSeparators(s string, opts NumberOptions) string {
	// Space and NBSP grouping is already stripped by ParseDecimal; only
	// comma and dot grouping needs handling here.
	switch opts.ThousandsSeparator {
	case ',':
		s = strings.ReplaceAll(s, ",", "")
	case '.':
		s = strings.ReplaceAll(s, ".", "")
	}

	switch opts.DecimalSeparator {
	case ',':
		if opts.ThousandsSeparator == 0 {
			s = strings.ReplaceAll(s, ".", "")
		}
		return strings.ReplaceAll(s, ",", ".")
	case '.':
		if opts.ThousandsSeparator == 0 {
			s = strings.ReplaceAll(s, ",", "")
		}
		return s
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	if opts.ThousandsSeparator != 0 {
		// Grouping was resolved above, so a surviving comma is a decimal
		// comma. A comma and a dot both surviving contradicts the declared
		// grouping; the digit check downstream rejects the token.
		if hasComma && !hasDot {
			return strings.ReplaceAll(s, ",", ".")
		}
		return s
	}

	switch {
	case hasComma && hasDot:
		// The later separator is the decimal point.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.ReplaceAll(s, ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")
	case hasComma:
		// A single trailing ",dd" group reads as a decimal comma; anything
		// else reads as thousands grouping.
		idx := strings.LastIndex(s, ",")
		if frac := s[idx+1:]; len(frac) >= 1 && len(frac) <= 2 && strings.Count(s, ",") == 1 {
			return strings.ReplaceAll(s, ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")
	default:
		return s
	}
}

// CanonicalNumber renders a decimal without trailing fraction zeros, so 10,
// 10.0 and 10.00 produce the same token. Idempotency keys depend on this
// rendering matching the backend's.
func CanonicalNumber(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// CleanDescription trims and collapses internal whitespace runs to single
// spaces.
func CleanDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
