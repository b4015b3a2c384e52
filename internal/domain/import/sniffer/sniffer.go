// Package sniffer normalizes raw broker export files (CSV/TSV/XLSX) into a
// rectangular table of header plus string rows. It detects delimiters and
// header rows when the parse configuration leaves them on auto, and probes
// sample rows for the regional dialect of dates and amounts.
package sniffer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var (
	ErrEmptyFile        = errors.New("file is empty")
	ErrNoHeadersFound   = errors.New("could not find data headers")
	ErrInvalidDelimiter = errors.New("could not detect valid delimiter")
	ErrNoDataRows       = errors.New("file has no data rows")
)

// Separator constants accepted by ParseConfig.
const (
	SeparatorAuto = ""
	SeparatorNone = "none"
)

// ParseConfig holds every user-tunable knob for turning file bytes into a
// RawTable. The zero value is not useful; start from DefaultParseConfig.
type ParseConfig struct {
	HasHeaderRow   bool   `json:"has_header_row"`
	HeaderRowIndex int    `json:"header_row_index"`
	Delimiter      string `json:"delimiter"` // ",", ";", "\t" or "" for auto
	SkipTopRows    int    `json:"skip_top_rows"`
	SkipBottomRows int    `json:"skip_bottom_rows"`
	SkipEmptyRows  bool   `json:"skip_empty_rows"`

	DateFormat         string `json:"date_format"`         // Go layout or "" for auto
	DecimalSeparator   string `json:"decimal_separator"`   // ".", "," or "" for auto
	ThousandsSeparator string `json:"thousands_separator"` // ",", ".", " ", "none" or "" for auto
	DefaultCurrency    string `json:"default_currency"`
}

// DefaultParseConfig returns the configuration used before any user edits.
func DefaultParseConfig() ParseConfig {
	return ParseConfig{
		HasHeaderRow:  true,
		SkipEmptyRows: true,
	}
}

// RawTable is the immutable output of file normalization. Headers keep their
// display form; Normalized carries the lower-cased, trimmed form used for
// mapping. Row order follows the file.
type RawTable struct {
	Headers    []string
	Normalized []string
	Rows       [][]string
	Delimiter  rune
}

// Header keywords used to score candidate header lines. Broker exports bury
// headers under preamble (account numbers, statement periods), so the line
// with the most keyword matches and columns wins.
var headerKeywords = []string{
	"date", "trade date", "settlement", "symbol", "ticker", "isin",
	"quantity", "shares", "units", "price", "unit price", "amount",
	"value", "fee", "commission", "currency", "type", "activity",
	"action", "transaction", "account", "description", "net",
}

// Normalize turns raw file bytes into a RawTable under cfg. It is pure given
// (data, cfg): the same inputs always produce the same table.
func Normalize(data []byte, cfg ParseConfig) (*RawTable, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	var (
		records   [][]string
		delimiter rune
		err       error
	)
	if IsExcel(data) {
		records, err = excelRecords(data)
		delimiter = ','
	} else {
		records, delimiter, err = csvRecords(normalizeBytes(data), cfg)
	}
	if err != nil {
		return nil, err
	}

	records = trimRecords(records, cfg.SkipTopRows, cfg.SkipBottomRows)
	if len(records) == 0 {
		return nil, ErrNoDataRows
	}

	var headers []string
	if cfg.HasHeaderRow {
		idx := cfg.HeaderRowIndex
		if idx < 0 || idx >= len(records) {
			return nil, ErrNoHeadersFound
		}
		headers = records[idx]
		records = records[idx+1:]
	} else {
		width := 0
		for _, rec := range records {
			if len(rec) > width {
				width = len(rec)
			}
		}
		headers = make([]string, width)
		for i := range headers {
			headers[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	if emptyRow(headers) {
		return nil, ErrNoHeadersFound
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		if cfg.SkipEmptyRows && emptyRow(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, ErrNoDataRows
	}

	display := make([]string, len(headers))
	normalized := make([]string, len(headers))
	for i, h := range headers {
		display[i] = strings.TrimSpace(h)
		normalized[i] = strings.ToLower(display[i])
	}

	return &RawTable{
		Headers:    display,
		Normalized: normalized,
		Rows:       rows,
		Delimiter:  delimiter,
	}, nil
}

// Cell returns the trimmed cell at (row, col), or "" when out of range.
func (t *RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

// ColumnIndex returns the position of a header by its normalized name.
func (t *RawTable) ColumnIndex(normalizedHeader string) int {
	for i, h := range t.Normalized {
		if h == normalizedHeader {
			return i
		}
	}
	return -1
}

func csvRecords(data []byte, cfg ParseConfig) ([][]string, rune, error) {
	delimiter := delimiterFromConfig(cfg.Delimiter)
	if delimiter == 0 {
		var err error
		delimiter, err = detectDelimiter(data, cfg.SkipTopRows)
		if err != nil {
			return nil, 0, err
		}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("malformed csv: %w", err)
		}
		records = append(records, rec)
	}
	return records, delimiter, nil
}

func delimiterFromConfig(s string) rune {
	switch s {
	case ",":
		return ','
	case ";":
		return ';'
	case "\t", "tab":
		return '\t'
	default:
		return 0
	}
}

// detectDelimiter scores the first lines of the file. The delimiter that
// splits the best-scoring candidate header line into the most columns wins.
func detectDelimiter(data []byte, skipTop int) (rune, error) {
	lines := strings.Split(string(data), "\n")
	best := rune(0)
	bestScore := 0

	for i, line := range lines {
		if i < skipTop {
			continue
		}
		if i > skipTop+20 {
			break
		}
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lower := strings.ToLower(line)

		keywordMatches := 0
		for _, kw := range headerKeywords {
			if strings.Contains(lower, kw) {
				keywordMatches++
			}
		}

		for _, d := range []rune{';', '\t', ',', '|'} {
			count := strings.Count(line, string(d))
			if count == 0 {
				continue
			}
			score := count*10 + keywordMatches*5
			if score > bestScore {
				bestScore = score
				best = d
			}
		}
	}

	if best == 0 {
		return 0, ErrInvalidDelimiter
	}
	return best, nil
}

// FindHeaderRow locates the most plausible header row index within the first
// 20 lines, for files that carry preamble above the column names. Returns -1
// when nothing scores.
func FindHeaderRow(data []byte, delimiter rune) int {
	lines := strings.Split(string(normalizeBytes(data)), "\n")
	bestIdx := -1
	bestScore := 0

	for i, line := range lines {
		if i > 20 {
			break
		}
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lower := strings.ToLower(line)

		matches := 0
		for _, kw := range headerKeywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		columns := strings.Count(line, string(delimiter)) + 1
		score := columns*10 + matches
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return bestIdx
}

func trimRecords(records [][]string, top, bottom int) [][]string {
	if top > 0 {
		if top >= len(records) {
			return nil
		}
		records = records[top:]
	}
	if bottom > 0 {
		if bottom >= len(records) {
			return nil
		}
		records = records[:len(records)-bottom]
	}
	return records
}

func emptyRow(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// normalizeBytes strips a UTF-8 BOM and falls back to latin-1 decoding when
// the payload is not valid UTF-8. Older bank exports still ship ISO-8859-1.
func normalizeBytes(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}
	if utf8.Valid(data) {
		return data
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return []byte(string(runes))
}
