package ledger

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DisplayDateLayout documents the display form of transaction dates.
const DisplayDateLayout = "02 Jan 06"

var displayDatePattern = regexp.MustCompile(`^(\d{1,2})[\s-]+([A-Za-z]{3})[A-Za-z]*[\s-]+(\d{2}|\d{4})$`)

var monthsByAbbrev = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseDisplayDate parses "DD Mon YY" with two-digit years read as 2000+YY.
// Four-digit years are accepted as-is.
func ParseDisplayDate(s string, loc *time.Location) (time.Time, bool) {
	m := displayDatePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, ok := monthsByAbbrev[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		year += 2000
	}
	if loc == nil {
		loc = time.UTC
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	// time.Date normalises 31 Feb into March; reject instead.
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// FormatDisplayDate renders t in the "DD Mon YY" display form.
func FormatDisplayDate(t time.Time) string {
	return t.Format(DisplayDateLayout)
}

// ClampRange narrows already-fetched rows to [from, to] without refetching.
// The upper bound is inclusive through the end of that day. Rows whose
// display date cannot be parsed are always kept. Nil bounds are open.
func ClampRange(rows []Row, from, to *time.Time) []Row {
	if from == nil && to == nil {
		out := make([]Row, len(rows))
		copy(out, rows)
		return out
	}
	var lower, upper time.Time
	var loc *time.Location
	if from != nil {
		loc = from.Location()
		lower = startOfDay(*from)
	}
	if to != nil {
		if loc == nil {
			loc = to.Location()
		}
		upper = startOfDay(*to).AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		d, ok := ParseDisplayDate(row.DisplayDate, loc)
		if !ok {
			out = append(out, row)
			continue
		}
		if from != nil && d.Before(lower) {
			continue
		}
		if to != nil && d.After(upper) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
