// Package quotes imports the strict quote sibling format: a CSV that must
// carry at least the symbol, date and close columns. Unlike activity imports
// there is no mapping step and no review; a malformed row fails the file.
package quotes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/portfolio-importer/internal/domain/activity"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/normalizer"
)

// ErrMissingColumns is returned when the header lacks symbol, date or close.
var ErrMissingColumns = errors.New("quote file requires symbol, date and close columns")

// quoteRow is the raw CSV shape. Extra columns are tolerated and ignored.
type quoteRow struct {
	Symbol string `csv:"symbol"`
	Date   string `csv:"date"`
	Close  string `csv:"close"`
}

// Quote is one parsed and validated price point.
type Quote struct {
	Symbol string          `json:"symbol"`
	Date   time.Time       `json:"date"`
	Close  decimal.Decimal `json:"close"`
}

// Parse reads the strict quote format. Every row must validate; row errors
// are joined and returned together so the caller can report them all at once.
func Parse(data []byte) ([]Quote, error) {
	header := strings.ToLower(firstLine(string(data)))
	for _, col := range []string{"symbol", "date", "close"} {
		if !strings.Contains(header, col) {
			return nil, ErrMissingColumns
		}
	}

	var rows []*quoteRow
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, fmt.Errorf("parse quote file: %w", err)
	}

	quotes := make([]Quote, 0, len(rows))
	var rowErrs []error
	for i, row := range rows {
		line := i + 2 // 1-based, after the header

		symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
		if !activity.ValidSymbol(symbol) {
			rowErrs = append(rowErrs, fmt.Errorf("line %d: invalid symbol %q", line, row.Symbol))
			continue
		}

		date, ok := normalizer.ParseDate(row.Date, normalizer.DateOptions{})
		if !ok {
			rowErrs = append(rowErrs, fmt.Errorf("line %d: unrecognized date %q", line, row.Date))
			continue
		}

		closePrice, ok := normalizer.ParseDecimal(row.Close, normalizer.NumberOptions{})
		if !ok || !closePrice.IsPositive() {
			rowErrs = append(rowErrs, fmt.Errorf("line %d: invalid close %q", line, row.Close))
			continue
		}

		quotes = append(quotes, Quote{
			Symbol: symbol,
			Date:   normalizer.DateOnly(date),
			Close:  closePrice,
		})
	}

	if len(rowErrs) > 0 {
		return nil, errors.Join(rowErrs...)
	}

	sort.Slice(quotes, func(i, j int) bool {
		if quotes[i].Symbol != quotes[j].Symbol {
			return quotes[i].Symbol < quotes[j].Symbol
		}
		return quotes[i].Date.Before(quotes[j].Date)
	})
	return quotes, nil
}

func firstLine(s string) string {
	if idx := strings.IndexAny(s, "\r\n"); idx >= 0 {
		return s[:idx]
	}
	return s
}
