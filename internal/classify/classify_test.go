package classify

import (
	"testing"
	"time"
)

//
// Vocabulary
//

// TestVocabularyLookup verifies case-insensitive, whitespace-tolerant lookup
// against the default truth vocabulary.
func TestVocabularyLookup(t *testing.T) {
	t.Parallel()

	vocab := DefaultVocabulary()
	tests := []struct {
		name  string
		in    string
		ok    bool
		value bool
	}{
		{"true literal", "true", true, true},
		{"upper case", "TRUE", true, true},
		{"padded no", " no ", true, false},
		{"french yes", "oui", true, true},
		{"french no", "NON", true, false},
		{"numeric one", "1", true, true},
		{"numeric zero", "0", true, false},
		{"single letters", "y", true, true},
		{"unknown", "maybe", false, false},
		{"empty", "", false, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := vocab.Lookup(tt.in)
			if ok != tt.ok || got != tt.value {
				t.Fatalf("Lookup(%q) = (%v,%v), want (%v,%v)", tt.in, got, ok, tt.value, tt.ok)
			}
		})
	}
}

// TestVocabularyExtend verifies locale extension leaves the original untouched.
func TestVocabularyExtend(t *testing.T) {
	t.Parallel()

	base := DefaultVocabulary()
	de := base.Extend([]string{"Ja"}, []string{"Nein"})

	if v, ok := de.Lookup("ja"); !ok || !v {
		t.Fatalf("extended vocabulary should map ja -> true")
	}
	if v, ok := de.Lookup("nein"); !ok || v {
		t.Fatalf("extended vocabulary should map nein -> false")
	}
	if _, ok := base.Lookup("ja"); ok {
		t.Fatalf("Extend must not mutate the receiver")
	}
	if NewVocabulary(nil, []string{"  "}).Empty() != true {
		t.Fatalf("blank tokens should be ignored")
	}
}

//
// Parse functions
//

// TestParseInt verifies strict base-10 integer parsing.
func TestParseInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"3", 3, true},
		{" -42 ", -42, true},
		{"+7", 7, true},
		{"3.0", 0, false},
		{"1e3", 0, false},
		{"12abc", 0, false},
		{"", 0, false},
		{"0x10", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseInt(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseInt(%q) = (%d,%v), want (%d,%v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

// TestParseFloat verifies decimal parsing and the rejection of forms that
// cannot be written as JSON numbers.
func TestParseFloat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"3", 3, true},
		{"3.25", 3.25, true},
		{" -1.5e2 ", -150, true},
		{".5", 0.5, true},
		{"NaN", 0, false},
		{"inf", 0, false},
		{"-Infinity", 0, false},
		{"0x1p-2", 0, false},
		{"1e400", 0, false},
		{"1,5", 0, false},
		{"1_000", 0, false},
		{"1_000.5", 0, false},
		{"15_01_2023", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseFloat(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseFloat(%q) = (%v,%v), want (%v,%v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

// TestParseDate verifies the general-purpose parser and the effect of DateOrder
// on ambiguous numeric dates.
func TestParseDate(t *testing.T) {
	t.Parallel()

	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name  string
		in    string
		order DateOrder
		want  time.Time
		ok    bool
	}{
		{"iso", "2023-01-15", MDY, day(2023, time.January, 15), true},
		{"iso unpadded", "2023-1-5", MDY, day(2023, time.January, 5), true},
		{"iso timestamp", "2023-01-15 10:30:00", MDY, time.Date(2023, 1, 15, 10, 30, 0, 0, time.UTC), true},
		{"rfc3339", "2023-01-15T10:30:00Z", MDY, time.Date(2023, 1, 15, 10, 30, 0, 0, time.UTC), true},
		{"month name", "Jan 15, 2023", MDY, day(2023, time.January, 15), true},
		{"day month name", "15 March 2023", MDY, day(2023, time.March, 15), true},
		{"ambiguous mdy", "03/04/2024", MDY, day(2024, time.March, 4), true},
		{"ambiguous dmy", "03/04/2024", DMY, day(2024, time.April, 3), true},
		{"unambiguous day first", "15/04/2024", MDY, day(2024, time.April, 15), true},
		{"dotted", "15.04.2024", MDY, day(2024, time.April, 15), true},
		{"invalid calendar day", "2023-02-31", MDY, time.Time{}, false},
		{"bare year", "1900", MDY, time.Time{}, false},
		{"compact digits", "20230115", MDY, time.Time{}, false},
		{"text", "abc", MDY, time.Time{}, false},
		{"blank", "   ", MDY, time.Time{}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseDate(tt.in, tt.order)
			if ok != tt.ok || !got.Equal(tt.want) {
				t.Fatalf("ParseDate(%q,%s) = (%v,%v), want (%v,%v)", tt.in, tt.order, got, ok, tt.want, tt.ok)
			}
		})
	}
}

// TestParseDateOrder verifies user-facing aliases.
func TestParseDateOrder(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]DateOrder{"": MDY, "us": MDY, "MDY": MDY, "eu": DMY, " dmy ": DMY} {
		got, err := ParseDateOrder(in)
		if err != nil || got != want {
			t.Fatalf("ParseDateOrder(%q) = (%v,%v), want %v", in, got, err, want)
		}
	}
	if _, err := ParseDateOrder("ymd"); err == nil {
		t.Fatalf("ParseDateOrder(ymd) should fail")
	}
}

// TestMonthMiddleISO verifies the three-token heuristic: the middle token is
// always the month and the year is the four-digit outer token.
func TestMonthMiddleISO(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2023-01-15", "2023-01-15", true},
		{"15-01-2023", "2023-01-15", true},
		{"2023/1/5", "2023-01-05", true},
		{"5.1.2023", "2023-01-05", true},
		{"  15 / 01 / 2023 ", "2023-01-15", true},
		{"2023-02-31", "2023-02-31", true}, // lenient day range
		{"15-01-23", "", false},            // no four-digit outer token
		{"01-2023-15", "", false},          // year in the middle
		{"2023-13-01", "", false},
		{"2023-00-01", "", false},
		{"1899-01-01", "", false},
		{"2101-01-01", "", false},
		{"2023-01-32", "", false},
		{"2023-01", "", false},
		{"2023-01-15-01", "", false},
		{"abc", "", false},
		{"N/A", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := MonthMiddleISO(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("MonthMiddleISO(%q) = (%q,%v), want (%q,%v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}

	if _, ok := ParseMonthMiddleDate("2023-02-31"); ok {
		t.Fatalf("ParseMonthMiddleDate should reject a non-calendar day")
	}
	if got, ok := ParseMonthMiddleDate("20-02-2023"); !ok || !got.Equal(time.Date(2023, 2, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("ParseMonthMiddleDate(20-02-2023) = (%v,%v)", got, ok)
	}
}

//
// Column predicates
//

// TestColumnPredicates verifies whole-column classification rules.
func TestColumnPredicates(t *testing.T) {
	t.Parallel()

	vocab := DefaultVocabulary()

	t.Run("boolean strict", func(t *testing.T) {
		t.Parallel()
		if !IsBoolean([]string{"TRUE", " no ", "oui", "0"}, vocab) {
			t.Fatalf("mixed-case vocabulary tokens should qualify")
		}
		if IsBoolean([]string{"yes", "no", "maybe"}, vocab) {
			t.Fatalf("one unknown token must disqualify")
		}
		if IsBoolean(nil, vocab) {
			t.Fatalf("empty input must not qualify")
		}
	})

	t.Run("integer", func(t *testing.T) {
		t.Parallel()
		if !IsInteger([]string{"1", "0", "1"}) {
			t.Fatalf("digits should qualify")
		}
		if IsInteger([]string{"1", "2.5"}) {
			t.Fatalf("a decimal must disqualify")
		}
	})

	t.Run("float", func(t *testing.T) {
		t.Parallel()
		if !IsFloat([]string{"1", "2.5", "3e2"}) {
			t.Fatalf("decimals should qualify")
		}
		if IsFloat([]string{"1", "x"}) {
			t.Fatalf("text must disqualify")
		}
	})

	t.Run("date threshold", func(t *testing.T) {
		t.Parallel()
		four := []string{"2023-01-01", "2023-01-02", "2023-01-03", "2023-01-04", "garbage"}
		if !IsDate(four, MDY, 0.8) {
			t.Fatalf("4 of 5 parseable should meet 0.8")
		}
		three := []string{"2023-01-01", "2023-01-02", "2023-01-03", "x", "y"}
		if IsDate(three, MDY, 0.8) {
			t.Fatalf("3 of 5 parseable must not meet 0.8")
		}
		withSentinels := []string{"2023-01-01", "null", "N/A", "  ", "none", "2023-01-02"}
		if !IsDate(withSentinels, MDY, 0.8) {
			t.Fatalf("sentinels must be dropped from the denominator")
		}
		if IsDate([]string{"NA", ""}, MDY, 0.8) {
			t.Fatalf("no candidates must not qualify")
		}
		if IsDate([]string{"1900", "abc", "2000"}, MDY, 0) {
			t.Fatalf("bare years are not dates")
		}
	})
}
