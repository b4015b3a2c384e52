package sniffer

import (
	"strings"
	"unicode"
)

// Dialect is the inferred regional formatting of a file's sample rows. It
// fills the "auto" slots of a ParseConfig; explicit user settings always win.
type Dialect struct {
	DecimalSeparator   string
	ThousandsSeparator string
	DayFirst           bool
	CurrencyHint       string
	Confidence         float64
}

// ProbeDialect inspects up to the first few data rows to infer decimal
// separator convention, date component order, and a currency hint.
func ProbeDialect(rows [][]string, amountCols []int, dateCol int) Dialect {
	dialect := Dialect{
		DecimalSeparator:   ".",
		ThousandsSeparator: ",",
		Confidence:         0.5,
	}

	europeanHints, usHints := 0, 0
	dayFirst, monthFirst := false, false

	for _, row := range rows {
		for _, col := range amountCols {
			if col < 0 || col >= len(row) {
				continue
			}
			switch amountHint(row[col]) {
			case 1:
				europeanHints++
			case -1:
				usHints++
			}
		}

		if dateCol >= 0 && dateCol < len(row) {
			if leadsWithDay(row[dateCol]) {
				dayFirst = true
			} else {
				monthFirst = true
			}
		}

		for _, cell := range row {
			switch {
			case strings.Contains(cell, "€"):
				dialect.CurrencyHint = "EUR"
				europeanHints++
			case strings.Contains(cell, "£"):
				dialect.CurrencyHint = "GBP"
			case strings.Contains(cell, "$"):
				if dialect.CurrencyHint == "" {
					dialect.CurrencyHint = "USD"
				}
				usHints++
			}
		}
	}

	if europeanHints > usHints {
		dialect.DecimalSeparator = ","
		dialect.ThousandsSeparator = "."
	}
	if total := europeanHints + usHints; total > 0 {
		winning := usHints
		if europeanHints > usHints {
			winning = europeanHints
		}
		dialect.Confidence = float64(winning) / float64(total)
	}

	switch {
	case dayFirst && !monthFirst:
		dialect.DayFirst = true
	case !dayFirst && monthFirst:
		dialect.DayFirst = false
	default:
		dialect.DayFirst = dialect.DecimalSeparator == ","
	}

	return dialect
}

// amountHint returns 1 for European formatting, -1 for US, 0 for ambiguous.
func amountHint(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == ',' || r == '.' {
			return r
		}
		return -1
	}, val)
	if cleaned == "" {
		return 0
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasDot:
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			return 1
		}
		return -1
	case hasComma:
		if decimalSuffix(cleaned, ',') {
			return 1
		}
	case hasDot:
		if decimalSuffix(cleaned, '.') {
			return -1
		}
	}
	return 0
}

func decimalSuffix(value string, sep rune) bool {
	idx := strings.LastIndex(value, string(sep))
	if idx == -1 || idx == len(value)-1 {
		return false
	}
	frac := value[idx+1:]
	if len(frac) > 2 {
		return false
	}
	for _, r := range frac {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// leadsWithDay reports whether the first numeric component of a date string
// can only be a day (greater than 12).
func leadsWithDay(dateVal string) bool {
	parts := strings.FieldsFunc(dateVal, func(r rune) bool {
		return r == '/' || r == '-' || r == '.'
	})
	if len(parts) < 2 {
		return false
	}
	day := 0
	for _, c := range strings.TrimSpace(parts[0]) {
		if c < '0' || c > '9' {
			break
		}
		day = day*10 + int(c-'0')
	}
	return day > 12 && day <= 31
}
