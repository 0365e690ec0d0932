package table

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"
)

// TypedColumn is a normalized column with a single concrete type.
//
// Exactly one of the value slices is populated, the one matching Type. The
// other slices stay nil, so a present value can never disagree with the
// declared type. Use the New*Column constructors rather than filling the
// struct by hand.
type TypedColumn struct {
	Name string
	Type SemanticType

	Bools   []sql.NullBool
	Ints    []sql.NullInt64
	Floats  []sql.NullFloat64
	Times   []sql.NullTime
	Strings []sql.NullString
}

// NewBoolColumn wraps v as a Boolean column named name.
func NewBoolColumn(name string, v []sql.NullBool) TypedColumn {
	return TypedColumn{Name: name, Type: Boolean, Bools: v}
}

// NewIntColumn wraps v as an Integer column named name.
func NewIntColumn(name string, v []sql.NullInt64) TypedColumn {
	return TypedColumn{Name: name, Type: Integer, Ints: v}
}

// NewFloatColumn wraps v as a Float column named name.
func NewFloatColumn(name string, v []sql.NullFloat64) TypedColumn {
	return TypedColumn{Name: name, Type: Float, Floats: v}
}

// NewTimeColumn wraps v as a Date column named name.
func NewTimeColumn(name string, v []sql.NullTime) TypedColumn {
	return TypedColumn{Name: name, Type: Date, Times: v}
}

// NewStringColumn wraps v as a String column named name.
func NewStringColumn(name string, v []sql.NullString) TypedColumn {
	return TypedColumn{Name: name, Type: String, Strings: v}
}

// Len returns the row count.
func (c TypedColumn) Len() int {
	switch c.Type {
	case Boolean:
		return len(c.Bools)
	case Integer:
		return len(c.Ints)
	case Float:
		return len(c.Floats)
	case Date:
		return len(c.Times)
	case String:
		return len(c.Strings)
	default:
		return 0
	}
}

// IsNull reports whether row i is missing.
func (c TypedColumn) IsNull(i int) bool {
	switch c.Type {
	case Boolean:
		return !c.Bools[i].Valid
	case Integer:
		return !c.Ints[i].Valid
	case Float:
		return !c.Floats[i].Valid
	case Date:
		return !c.Times[i].Valid
	case String:
		return !c.Strings[i].Valid
	default:
		return true
	}
}

// Value returns row i as a plain Go value (bool, int64, float64, time.Time,
// string) or nil when missing. Storage backends bind these directly.
func (c TypedColumn) Value(i int) any {
	if c.IsNull(i) {
		return nil
	}
	switch c.Type {
	case Boolean:
		return c.Bools[i].Bool
	case Integer:
		return c.Ints[i].Int64
	case Float:
		return c.Floats[i].Float64
	case Date:
		return c.Times[i].Time
	case String:
		return c.Strings[i].String
	default:
		return nil
	}
}

// Text renders row i for CSV output and previews. Missing values render as "".
func (c TypedColumn) Text(i int) string {
	if c.IsNull(i) {
		return ""
	}
	switch c.Type {
	case Boolean:
		return strconv.FormatBool(c.Bools[i].Bool)
	case Integer:
		return strconv.FormatInt(c.Ints[i].Int64, 10)
	case Float:
		return strconv.FormatFloat(c.Floats[i].Float64, 'g', -1, 64)
	case Date:
		return FormatTime(c.Times[i].Time)
	case String:
		return c.Strings[i].String
	default:
		return ""
	}
}

// FormatTime renders a date as YYYY-MM-DD when it has no time-of-day part and
// as "YYYY-MM-DD HH:MM:SS" otherwise.
func FormatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// MissingCount returns how many rows are missing.
func (c TypedColumn) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			n++
		}
	}
	return n
}

// Nullable reports whether any row is missing.
func (c TypedColumn) Nullable() bool {
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			return true
		}
	}
	return false
}

// MaxTextLen returns the longest present value's length in runes, using the
// Text rendering. ok is false when every row is missing.
func (c TypedColumn) MaxTextLen() (n int, ok bool) {
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			continue
		}
		ok = true
		if l := utf8.RuneCountInString(c.Text(i)); l > n {
			n = l
		}
	}
	return n, ok
}

// TypedTable is an ordered set of typed columns with distinct, non-empty names
// and equal row counts.
type TypedTable struct {
	Columns []TypedColumn
}

// NewTypedTable validates the table invariants and returns the table.
func NewTypedTable(cols []TypedColumn) (TypedTable, error) {
	if len(cols) == 0 {
		return TypedTable{}, ErrNoColumns
	}
	seen := make(map[string]struct{}, len(cols))
	n := cols[0].Len()
	for _, c := range cols {
		if c.Name == "" {
			return TypedTable{}, ErrEmptyName
		}
		if _, dup := seen[c.Name]; dup {
			return TypedTable{}, fmt.Errorf("%w: %q", ErrDuplicateName, c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.Len() != n {
			return TypedTable{}, fmt.Errorf("%w: %q has %d rows, want %d", ErrRowCountMismatch, c.Name, c.Len(), n)
		}
	}
	return TypedTable{Columns: cols}, nil
}

// Rows returns the row count.
func (t TypedTable) Rows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// Names returns column names in order.
func (t TypedTable) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Row returns row i as plain values in column order.
func (t TypedTable) Row(i int) []any {
	out := make([]any, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = c.Value(i)
	}
	return out
}
