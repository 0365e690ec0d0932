// Package storage defines the backend-neutral table description and the
// repository registry. Backends live in subpackages and register themselves
// from init(); import storage/all to get every backend.
package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedKind is returned by New for an unregistered backend kind.
var ErrUnsupportedKind = errors.New("unsupported storage kind")

// TableSpec describes a table to create. Column types are already rendered for
// the target dialect.
type TableSpec struct {
	// Name may be schema-qualified ("staging.orders").
	Name        string           `json:"name"`
	Columns     []ColumnSpec     `json:"columns"`
	Constraints []ConstraintSpec `json:"constraints,omitempty"`
}

type ColumnSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable *bool  `json:"nullable,omitempty"`
}

// IsNullable treats an unset Nullable as nullable.
func (c ColumnSpec) IsNullable() bool {
	return c.Nullable == nil || *c.Nullable
}

type ConstraintSpec struct {
	Kind    string   `json:"kind"` // "unique"
	Columns []string `json:"columns"`
}

// ColumnNames returns the column names in declaration order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// UniqueColumns returns the columns of the first unique constraint, or nil.
// Loaders use it as the dedupe key.
func (t TableSpec) UniqueColumns() []string {
	for _, c := range t.Constraints {
		if strings.EqualFold(c.Kind, "unique") {
			return c.Columns
		}
	}
	return nil
}

// Validate checks the parts every backend relies on.
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" || strings.TrimSpace(c.Type) == "" {
			return fmt.Errorf("table %s: column name/type must be set", t.Name)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("table %s: duplicate column %q", t.Name, name)
		}
		seen[key] = true
	}
	for _, con := range t.Constraints {
		if !strings.EqualFold(con.Kind, "unique") {
			return fmt.Errorf("table %s: unsupported constraint kind %q", t.Name, con.Kind)
		}
		if len(con.Columns) == 0 {
			return fmt.Errorf("table %s: unique constraint requires columns", t.Name)
		}
		for _, col := range con.Columns {
			if !seen[strings.ToLower(strings.TrimSpace(col))] {
				return fmt.Errorf("table %s: constraint column %q is not a table column", t.Name, col)
			}
		}
	}
	return nil
}

// SplitQualifiedName splits a schema-qualified name into (schema, table).
//
// Examples:
//   - "public.countries" => ("public", "countries")
//   - "countries"        => ("", "countries")
//
// Only a single dot is understood; anything else is treated as unqualified.
func SplitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
