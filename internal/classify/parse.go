package classify

import (
	"math"
	"strconv"
	"strings"
)

// nullSentinels are literal strings treated as "no value" by the date paths.
// Compared case-insensitively after trimming.
var nullSentinels = map[string]struct{}{
	"null": {},
	"none": {},
	"na":   {},
	"n/a":  {},
}

// IsNullSentinel reports whether s is blank or one of null/none/na/n/a.
func IsNullSentinel(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return true
	}
	_, ok := nullSentinels[s]
	return ok
}

// ParseInt parses a trimmed base-10 integer with an optional sign.
func ParseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseFloat parses a trimmed decimal number, accepting a decimal point and an
// exponent. Hex-float syntax, NaN and infinities are rejected because they do
// not survive JSON output. Digit separators ("1_000") are not numbers.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	body := strings.TrimLeft(s, "+-")
	if strings.ContainsRune(body, '_') {
		return 0, false
	}
	if len(body) > 1 && body[0] == '0' && (body[1] == 'x' || body[1] == 'X') {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
