// Package table holds the data model shared by the inference engine and its
// collaborators: raw string columns as loaded from a file, the closed set of
// semantic types, and the typed columns produced by normalization.
//
// Raw input is immutable once loaded. A TypedTable is built once through
// NewTypedTable and never mutated afterwards; downstream packages (schema,
// export, storage) only read it.
package table

import (
	"errors"
	"fmt"
	"strings"
)

// SemanticType is the inferred logical kind of a column.
//
// The set is closed. Code that branches on a SemanticType should switch over
// all five values so adding a type is a single, compiler-visible change.
type SemanticType int

const (
	String SemanticType = iota
	Boolean
	Integer
	Float
	Date
)

// String returns the lower-case label used in reports and JSON.
func (t SemanticType) String() string {
	switch t {
	case Boolean:
		return "boolean"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Date:
		return "date"
	case String:
		return "string"
	default:
		return fmt.Sprintf("SemanticType(%d)", int(t))
	}
}

// ParseSemanticType maps a label ("boolean", "integer", ...) back to a type.
// Matching is case-insensitive and whitespace-tolerant.
func ParseSemanticType(s string) (SemanticType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "boolean", "bool":
		return Boolean, nil
	case "integer", "int":
		return Integer, nil
	case "float", "number":
		return Float, nil
	case "date", "datetime", "timestamp":
		return Date, nil
	case "string", "text":
		return String, nil
	default:
		return String, fmt.Errorf("table: unknown semantic type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t SemanticType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *SemanticType) UnmarshalText(b []byte) error {
	v, err := ParseSemanticType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Raw is one optional cell of a raw column. Valid=false means the loader saw no
// value at all, which is distinct from Value=="".
type Raw struct {
	Value string
	Valid bool
}

// Some returns a present raw cell.
func Some(s string) Raw { return Raw{Value: s, Valid: true} }

// Missing returns an absent raw cell.
func Missing() Raw { return Raw{} }

// RawColumn is a named column of optional strings in row order.
type RawColumn struct {
	Name   string
	Values []Raw
}

// NewRawColumn builds a column from plain strings, treating every value as present.
func NewRawColumn(name string, values ...string) RawColumn {
	out := make([]Raw, len(values))
	for i, v := range values {
		out[i] = Some(v)
	}
	return RawColumn{Name: name, Values: out}
}

// Present returns the non-missing values in row order.
func (c RawColumn) Present() []string {
	out := make([]string, 0, len(c.Values))
	for _, v := range c.Values {
		if v.Valid {
			out = append(out, v.Value)
		}
	}
	return out
}

// RawTable is an ordered list of raw columns as presented by a loader.
type RawTable struct {
	Columns []RawColumn
}

var (
	// ErrNoColumns is returned when a table has zero columns.
	ErrNoColumns = errors.New("table has no columns")
	// ErrRowCountMismatch is returned when columns differ in length.
	ErrRowCountMismatch = errors.New("columns have different row counts")
	// ErrEmptyName is returned when a typed column has an empty name.
	ErrEmptyName = errors.New("column name is empty")
	// ErrDuplicateName is returned when two typed columns share a name.
	ErrDuplicateName = errors.New("duplicate column name")
)

// Rows returns the row count (length of the first column, 0 for no columns).
func (t RawTable) Rows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// Names returns the raw column names in order.
func (t RawTable) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks the structural invariants a loader must uphold.
func (t RawTable) Validate() error {
	if len(t.Columns) == 0 {
		return ErrNoColumns
	}
	n := len(t.Columns[0].Values)
	for _, c := range t.Columns[1:] {
		if len(c.Values) != n {
			return fmt.Errorf("%w: %q has %d rows, want %d", ErrRowCountMismatch, c.Name, len(c.Values), n)
		}
	}
	return nil
}
