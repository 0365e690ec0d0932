// Package schema renders a typed table as SQL DDL and JSON Schema, and builds
// the storage.TableSpec used to load it into a database.
package schema

import (
	"fmt"
	"strings"
	"unicode"

	"tabnorm/internal/table"
)

// DefaultTableName is used when CreateTableSQL gets an empty table name.
const DefaultTableName = "normalized_data"

// VARCHAR length bounds for string columns.
const (
	MinVarcharLen = 255
	MaxVarcharLen = 1000
)

// SQLType maps a column to its generic SQL type. String columns get
// VARCHAR(N) where N is the longest value in runes clamped to
// [MinVarcharLen, MaxVarcharLen].
func SQLType(col table.TypedColumn) string {
	switch col.Type {
	case table.Boolean:
		return "BOOLEAN"
	case table.Integer:
		return "BIGINT"
	case table.Float:
		return "DOUBLE PRECISION"
	case table.Date:
		return "TIMESTAMP"
	case table.String:
		return fmt.Sprintf("VARCHAR(%d)", VarcharLen(col))
	default:
		return fmt.Sprintf("VARCHAR(%d)", MinVarcharLen)
	}
}

// VarcharLen is the clamped VARCHAR length for col.
func VarcharLen(col table.TypedColumn) int {
	n, ok := col.MaxTextLen()
	if !ok || n <= 0 {
		return MinVarcharLen
	}
	return min(max(MinVarcharLen, n), MaxVarcharLen)
}

// SafeIdentifier makes s usable as an unquoted SQL identifier: every run of
// non-word runes becomes "_", a leading digit gets a "_" prefix, and the
// result is lower-cased. Underscore runs are kept as they are.
func SafeIdentifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			b.WriteByte('_')
			inRun = true
		}
	}
	out := b.String()
	if out != "" {
		first := []rune(out)[0]
		if unicode.IsDigit(first) {
			out = "_" + out
		}
	}
	return strings.ToLower(out)
}

// CreateTableSQL renders a CREATE TABLE statement for t:
//
//	CREATE TABLE <schema>.<table> (
//	  col TYPE NOT NULL,
//	  other TYPE NULL
//	);
//
// A column is NOT NULL exactly when it has no missing values. schemaName may
// be empty.
func CreateTableSQL(t table.TypedTable, tableName, schemaName string) string {
	full := SafeIdentifier(tableName)
	if full == "" {
		full = DefaultTableName
	}
	if s := SafeIdentifier(schemaName); s != "" {
		full = s + "." + full
	}

	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		null := "NOT NULL"
		if c.Nullable() {
			null = "NULL"
		}
		defs[i] = fmt.Sprintf("  %s %s %s", SafeIdentifier(c.Name), SQLType(c), null)
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(full)
	b.WriteString(" (\n")
	b.WriteString(strings.Join(defs, ",\n"))
	b.WriteString("\n);")
	return b.String()
}
