// Package normalize rewrites raw string columns into typed columns according
// to their inferred profile.
//
// Per-value failures never abort normalization: a value that does not fit the
// column's type becomes missing and is counted in Stats. Columns profiled as
// strings get one more chance as dates through the month-in-the-middle
// heuristic before being kept as trimmed text.
package normalize

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tabnorm/internal/classify"
	"tabnorm/internal/profile"
	"tabnorm/internal/table"
)

// DefaultMonthMiddleThreshold is the share of month-middle parseable values
// needed to rescue a string column as a date.
const DefaultMonthMiddleThreshold = 0.8

// DefaultStringNullTokens are the literals the string path treats as missing.
// Matching is exact (case-sensitive).
var DefaultStringNullTokens = []string{"null", "NULL"}

// ErrProfileMismatch is returned when profiles do not line up with columns.
var ErrProfileMismatch = errors.New("profiles do not match table columns")

// Options control normalization. The zero value selects the defaults.
type Options struct {
	Vocabulary           classify.Vocabulary
	DateOrder            classify.DateOrder
	MonthMiddleThreshold float64
	StringNullTokens     []string
}

func (o Options) withDefaults() Options {
	if o.Vocabulary.Empty() {
		o.Vocabulary = classify.DefaultVocabulary()
	}
	if o.DateOrder == "" {
		o.DateOrder = classify.MDY
	}
	if o.MonthMiddleThreshold <= 0 {
		o.MonthMiddleThreshold = DefaultMonthMiddleThreshold
	}
	if o.StringNullTokens == nil {
		o.StringNullTokens = DefaultStringNullTokens
	}
	return o
}

// Stats reports what normalization did to one column.
type Stats struct {
	// CoercedMissing counts present raw cells that became missing because they
	// did not fit the column type (null sentinels and blanks excluded).
	CoercedMissing int `json:"coerced_missing"`
	// Rescued is true when a string-profiled column was promoted to a date by
	// the month-in-the-middle heuristic.
	Rescued bool `json:"rescued_as_date"`
}

// Column normalizes one raw column. The column name is kept as given.
func Column(col table.RawColumn, prof profile.ColumnProfile, opt Options) table.TypedColumn {
	c, _ := ColumnWithStats(col, prof, opt)
	return c
}

// ColumnWithStats is Column that also reports coercion statistics.
func ColumnWithStats(col table.RawColumn, prof profile.ColumnProfile, opt Options) (table.TypedColumn, Stats) {
	opt = opt.withDefaults()

	switch prof.Type {
	case table.Boolean:
		return booleans(col, opt.Vocabulary)
	case table.Integer:
		return integers(col)
	case table.Float:
		return floats(col)
	case table.Date:
		return dates(col, opt.DateOrder)
	case table.String:
		if c, st, ok := monthMiddle(col, opt.MonthMiddleThreshold); ok {
			return c, st
		}
		return strs(col, opt.StringNullTokens), Stats{}
	default:
		return strs(col, opt.StringNullTokens), Stats{}
	}
}

// Table normalizes every column and builds the typed table. profiles must be
// the output of profile.ProfileTable for t: same length, same order, same
// raw names. Column names are normalized with Names.
func Table(t table.RawTable, profiles []profile.ColumnProfile, opt Options) (table.TypedTable, error) {
	cols, _, err := TableWithStats(t, profiles, opt)
	if err != nil {
		return table.TypedTable{}, err
	}
	return cols, nil
}

// TableWithStats is Table that also returns per-column Stats in column order.
func TableWithStats(t table.RawTable, profiles []profile.ColumnProfile, opt Options) (table.TypedTable, []Stats, error) {
	if err := CheckProfiles(t, profiles); err != nil {
		return table.TypedTable{}, nil, err
	}

	opt = opt.withDefaults()
	names := Names(t.Names())
	cols := make([]table.TypedColumn, len(t.Columns))
	stats := make([]Stats, len(t.Columns))
	for i, c := range t.Columns {
		cols[i], stats[i] = ColumnWithStats(c, profiles[i], opt)
		cols[i].Name = names[i]
	}

	tt, err := table.NewTypedTable(cols)
	if err != nil {
		return table.TypedTable{}, nil, err
	}
	return tt, stats, nil
}

// CheckProfiles verifies that profiles line up with the table's columns.
func CheckProfiles(t table.RawTable, profiles []profile.ColumnProfile) error {
	if len(profiles) != len(t.Columns) {
		return fmt.Errorf("%w: %d profiles for %d columns", ErrProfileMismatch, len(profiles), len(t.Columns))
	}
	for i, c := range t.Columns {
		if profiles[i].Name != c.Name {
			return fmt.Errorf("%w: profile %d is %q, column is %q", ErrProfileMismatch, i, profiles[i].Name, c.Name)
		}
	}
	return nil
}

func booleans(col table.RawColumn, vocab classify.Vocabulary) (table.TypedColumn, Stats) {
	var st Stats
	out := make([]sql.NullBool, len(col.Values))
	for i, v := range col.Values {
		if !v.Valid {
			continue
		}
		b, ok := vocab.Lookup(v.Value)
		if !ok {
			if strings.TrimSpace(v.Value) != "" {
				st.CoercedMissing++
			}
			continue
		}
		out[i] = sql.NullBool{Bool: b, Valid: true}
	}
	return table.NewBoolColumn(col.Name, out), st
}

func integers(col table.RawColumn) (table.TypedColumn, Stats) {
	var st Stats
	out := make([]sql.NullInt64, len(col.Values))
	for i, v := range col.Values {
		if !v.Valid {
			continue
		}
		s := strings.TrimSpace(v.Value)
		if s == "" {
			continue
		}
		n, ok := classify.ParseInt(s)
		if !ok {
			st.CoercedMissing++
			continue
		}
		out[i] = sql.NullInt64{Int64: n, Valid: true}
	}
	return table.NewIntColumn(col.Name, out), st
}

func floats(col table.RawColumn) (table.TypedColumn, Stats) {
	var st Stats
	out := make([]sql.NullFloat64, len(col.Values))
	for i, v := range col.Values {
		if !v.Valid {
			continue
		}
		s := strings.TrimSpace(v.Value)
		if s == "" {
			continue
		}
		f, ok := classify.ParseFloat(s)
		if !ok {
			st.CoercedMissing++
			continue
		}
		out[i] = sql.NullFloat64{Float64: f, Valid: true}
	}
	return table.NewFloatColumn(col.Name, out), st
}

func dates(col table.RawColumn, order classify.DateOrder) (table.TypedColumn, Stats) {
	var st Stats
	out := make([]sql.NullTime, len(col.Values))
	for i, v := range col.Values {
		if !v.Valid || classify.IsNullSentinel(v.Value) {
			continue
		}
		t, ok := classify.ParseDate(v.Value, order)
		if !ok {
			st.CoercedMissing++
			continue
		}
		out[i] = sql.NullTime{Time: t, Valid: true}
	}
	return table.NewTimeColumn(col.Name, out), st
}

// monthMiddle tries the month-in-the-middle heuristic on every candidate value
// (present, not blank, not a null sentinel). ok is true when at least one
// value parsed and the parsed share reaches threshold.
func monthMiddle(col table.RawColumn, threshold float64) (table.TypedColumn, Stats, bool) {
	out := make([]sql.NullTime, len(col.Values))
	var candidates, parsed int
	for i, v := range col.Values {
		if !v.Valid || classify.IsNullSentinel(v.Value) {
			continue
		}
		candidates++
		t, ok := classify.ParseMonthMiddleDate(v.Value)
		if !ok {
			continue
		}
		parsed++
		out[i] = sql.NullTime{Time: t, Valid: true}
	}
	if parsed == 0 || float64(parsed)/float64(candidates) < threshold {
		return table.TypedColumn{}, Stats{}, false
	}
	return table.NewTimeColumn(col.Name, out), Stats{CoercedMissing: candidates - parsed, Rescued: true}, true
}

func strs(col table.RawColumn, nullTokens []string) table.TypedColumn {
	out := make([]sql.NullString, len(col.Values))
	for i, v := range col.Values {
		if !v.Valid {
			continue
		}
		s := strings.TrimSpace(v.Value)
		if s == "" || isToken(s, nullTokens) {
			continue
		}
		out[i] = sql.NullString{String: s, Valid: true}
	}
	return table.NewStringColumn(col.Name, out)
}

func isToken(s string, tokens []string) bool {
	for _, t := range tokens {
		if s == t {
			return true
		}
	}
	return false
}
