package classify

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DateOrder decides which reading of an ambiguous numeric date such as
// 03/04/2024 is tried first. Both readings are always tried, so 15/04/2024
// parses under either order.
type DateOrder string

const (
	// MDY tries month-first before day-first (the default).
	MDY DateOrder = "mdy"
	// DMY tries day-first before month-first.
	DMY DateOrder = "dmy"
)

// ParseDateOrder maps a user string ("mdy", "us", "dmy", "eu", "") to a DateOrder.
func ParseDateOrder(s string) (DateOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "mdy", "us":
		return MDY, nil
	case "dmy", "eu":
		return DMY, nil
	default:
		return MDY, fmt.Errorf("unknown date order %q (want mdy|dmy)", s)
	}
}

// isoLayouts are unambiguous and always tried first.
var isoLayouts = []string{
	"2006-1-2",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2T15:04:05",
	"2006-1-2T15:04",
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"2006/1/2",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006.1.2",
}

// textLayouts carry a month name and are unambiguous.
var textLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2-Jan-2006",
	"2-Jan-06",
	"Mon, 2 Jan 2006",
	"Monday, January 2, 2006",
	time.RFC1123,
	time.RFC1123Z,
	time.ANSIC,
}

var monthFirstLayouts = []string{
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04 PM",
	"1-2-2006",
	"1.2.2006",
	"1/2/06",
}

var dayFirstLayouts = []string{
	"2/1/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006 3:04 PM",
	"2-1-2006",
	"2.1.2006",
	"2.1.2006 15:04:05",
	"2/1/06",
}

// layoutsFor returns the layout list in try order for the given preference.
func layoutsFor(order DateOrder) []string {
	first, second := monthFirstLayouts, dayFirstLayouts
	if order == DMY {
		first, second = dayFirstLayouts, monthFirstLayouts
	}
	out := make([]string, 0, len(isoLayouts)+len(textLayouts)+len(first)+len(second))
	out = append(out, isoLayouts...)
	out = append(out, textLayouts...)
	out = append(out, first...)
	out = append(out, second...)
	return out
}

var (
	mdyLayouts = layoutsFor(MDY)
	dmyLayouts = layoutsFor(DMY)
)

// ParseDate is the general-purpose date parser. It trims s and tries a fixed
// list of layouts; calendar validity is enforced (2023-02-31 fails). Values
// without a zone are returned in UTC. Bare numbers are never dates.
func ParseDate(s string, order DateOrder) (time.Time, bool) {
	t, _, ok := ParseDateLayout(s, order)
	return t, ok
}

// ParseDateLayout is ParseDate that also reports the matching layout.
func ParseDateLayout(s string, order DateOrder) (time.Time, string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !hasDateShape(s) {
		return time.Time{}, "", false
	}
	layouts := mdyLayouts
	if order == DMY {
		layouts = dmyLayouts
	}
	for _, lay := range layouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, lay, true
		}
	}
	return time.Time{}, "", false
}

// hasDateShape cheaply rejects values that cannot match any layout: a date
// needs a separator or a letter besides digits.
func hasDateShape(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '+' && r != '-' {
			return true
		}
	}
	return strings.Count(s, "-") >= 2
}

// MonthMiddleISO parses a value whose three numeric tokens always carry the
// month in the middle. The year is whichever outer token has exactly four
// digits; if neither does the value is rejected. Ranges are checked loosely
// (year 1900..2100, month 1..12, day 1..31, no per-month day count). On
// success it returns the canonical "YYYY-MM-DD" text.
func MonthMiddleISO(s string) (string, bool) {
	if IsNullSentinel(s) {
		return "", false
	}
	parts := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return r < '0' || r > '9'
	})
	if len(parts) != 3 {
		return "", false
	}

	a, b, c := parts[0], parts[1], parts[2]
	var ys, ms, ds string
	switch {
	case len(a) == 4:
		ys, ms, ds = a, b, c
	case len(c) == 4:
		ds, ms, ys = a, b, c
	default:
		return "", false
	}

	year, err := strconv.Atoi(ys)
	if err != nil {
		return "", false
	}
	month, err := strconv.Atoi(ms)
	if err != nil {
		return "", false
	}
	day, err := strconv.Atoi(ds)
	if err != nil {
		return "", false
	}

	if year < 1900 || year > 2100 {
		return "", false
	}
	if month < 1 || month > 12 {
		return "", false
	}
	if day < 1 || day > 31 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

// ParseMonthMiddleDate is MonthMiddleISO converted to a timestamp. Token-valid
// values that are not real calendar days (2023-02-31) have no timestamp and
// fail here.
func ParseMonthMiddleDate(s string) (time.Time, bool) {
	iso, ok := MonthMiddleISO(s)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
