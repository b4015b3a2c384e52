// Package normalizer turns raw CSV cell strings into typed values: calendar
// dates, decimal amounts, and cleaned descriptions. Parsing failures are
// reported as "no value", never as errors; attaching an error to the row is
// the validator's job.
package normalizer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Dates with years outside this window are treated as unparsed. Broker
// exports occasionally carry sentinel dates (0001-01-01, 9999-12-31) that
// must not survive into the ledger.
const (
	minYear = 1900
	maxYear = 2100
)

// isoLayouts are tried first, before any locale-specific guessing.
var isoLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// dayFirstLayouts cover European and banking notations where the day leads.
var dayFirstLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"02/01/06",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"02Jan2006",
}

// monthFirstLayouts cover US notations.
var monthFirstLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"01.02.2006",
	"01/02/06",
	"01/02/2006 15:04",
	"01/02/2006 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan-02-2006",
	"Jan 02 2006",
}

// yearFirstLayouts cover Asian and compact banking notations.
var yearFirstLayouts = []string{
	"2006/01/02",
	"2006.01.02",
	"20060102",
	"2006年01月02日",
	"2006年1月2日",
}

// DateOptions steers ambiguous parses.
type DateOptions struct {
	// Layout, when non-empty, is tried before everything else.
	Layout string
	// DayFirst prefers DD/MM over MM/DD for slash/dash/dot notations.
	DayFirst bool
	// Location defaults to UTC.
	Location *time.Location
}

var quarterRe = regexp.MustCompile(`^(?:Q([1-4])[\s-]?(\d{4})|(\d{4})[\s-]?Q([1-4]))$`)

// ParseDate parses a raw date token. The order is: explicit layout, ISO-8601,
// locale layouts (day-first or month-first per options), year-first layouts,
// fiscal quarter notation, then a Unix timestamp fallback (seconds below
// 10^12, milliseconds above). Returns false when every strategy fails or the
// year falls outside [1900, 2100].
func ParseDate(raw string, opts DateOptions) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	if opts.Layout != "" {
		if t, err := time.ParseInLocation(opts.Layout, raw, loc); err == nil {
			return acceptDate(t)
		}
	}

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return acceptDate(t)
		}
	}

	first, second := monthFirstLayouts, dayFirstLayouts
	if opts.DayFirst {
		first, second = dayFirstLayouts, monthFirstLayouts
	}
	for _, group := range [][]string{first, second, yearFirstLayouts} {
		for _, layout := range group {
			if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
				return acceptDate(t)
			}
		}
	}

	if m := quarterRe.FindStringSubmatch(strings.ToUpper(raw)); m != nil {
		q, year := m[1], m[2]
		if q == "" {
			q, year = m[4], m[3]
		}
		qn, _ := strconv.Atoi(q)
		yn, _ := strconv.Atoi(year)
		return acceptDate(time.Date(yn, time.Month((qn-1)*3+1), 1, 0, 0, 0, 0, loc))
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n < 1e12 {
			return acceptDate(time.Unix(n, 0).UTC())
		}
		return acceptDate(time.UnixMilli(n).UTC())
	}

	return time.Time{}, false
}

func acceptDate(t time.Time) (time.Time, bool) {
	if t.Year() < minYear || t.Year() > maxYear {
		return time.Time{}, false
	}
	return t, true
}

// DateOnly truncates to midnight UTC. Idempotency keys and ledger payloads
// carry dates, not instants.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders the canonical YYYY-MM-DD form.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// DetectDayFirst inspects date samples and reports whether the day leads.
// A first component above 12 is conclusive; otherwise the result is false
// with ok=false.
func DetectDayFirst(samples []string) (dayFirst, ok bool) {
	for _, s := range samples {
		parts := strings.FieldsFunc(s, func(r rune) bool {
			return r == '/' || r == '-' || r == '.'
		})
		if len(parts) < 2 {
			continue
		}
		lead, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		if lead > 12 && lead <= 31 {
			return true, true
		}
		trail, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err == nil && trail > 12 && trail <= 31 {
			return false, true
		}
	}
	return false, false
}
