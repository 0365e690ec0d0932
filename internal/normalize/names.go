package normalize

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Name normalizes a column header: trim, lower-case, NFC, every run of
// non-word runes (and underscores) collapsed to a single "_", no leading or
// trailing "_". A word rune is a letter, a number or "_".
//
// Name is idempotent: Name(Name(x)) == Name(x).
func Name(s string) string {
	// cases.Caser is stateful, so one per call.
	s = cases.Lower(language.Und).String(strings.TrimSpace(s))
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	sep := false
	for _, r := range s {
		if r == '_' || !isWordRune(r) {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('_')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Names normalizes a header row so the result can back a TypedTable: names
// that normalize to "" become column_<n> (1-based position) and repeats get
// _2, _3, ... suffixes in order of appearance.
func Names(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, r := range raw {
		base := Name(r)
		if base == "" {
			base = "column_" + strconv.Itoa(i+1)
		}
		n := base
		for k := 2; ; k++ {
			if _, taken := seen[n]; !taken {
				break
			}
			n = base + "_" + strconv.Itoa(k)
		}
		seen[n] = struct{}{}
		out[i] = n
	}
	return out
}
