package schema

import (
	"fmt"
	"strconv"
	"strings"

	"tabnorm/internal/storage"
	"tabnorm/internal/table"
)

// Dialect is the SQL flavour of a storage backend. Its values match the
// storage kinds registered by the backends.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MSSQL    Dialect = "mssql"
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
)

// RowHashColumn is the preferred name of the dedupe-key column added by
// TableSpecFor.
const RowHashColumn = "row_hash"

// ParseDialect accepts the storage kind names plus a few common aliases.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mssql", "sqlserver":
		return MSSQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql", "mariadb":
		return MySQL, nil
	default:
		return "", fmt.Errorf("unknown sql dialect %q", s)
	}
}

// ColumnTypeFor returns the native column type of col in dialect d.
func ColumnTypeFor(col table.TypedColumn, d Dialect) string {
	switch d {
	case MSSQL:
		switch col.Type {
		case table.Boolean:
			return "BIT"
		case table.Integer:
			return "BIGINT"
		case table.Float:
			return "FLOAT"
		case table.Date:
			return "DATETIME2"
		default:
			return "NVARCHAR(" + strconv.Itoa(VarcharLen(col)) + ")"
		}
	case SQLite:
		switch col.Type {
		case table.Boolean, table.Integer:
			return "INTEGER"
		case table.Float:
			return "REAL"
		default:
			return "TEXT"
		}
	case MySQL:
		switch col.Type {
		case table.Boolean:
			return "BOOLEAN"
		case table.Integer:
			return "BIGINT"
		case table.Float:
			return "DOUBLE"
		case table.Date:
			return "DATETIME(6)"
		default:
			return "VARCHAR(" + strconv.Itoa(VarcharLen(col)) + ")"
		}
	default:
		return SQLType(col)
	}
}

// rowHashType is the column type for a hex sha256 digest.
func rowHashType(d Dialect) string {
	if d == SQLite {
		return "TEXT"
	}
	return "CHAR(64)"
}

// TableSpecFor builds the storage description of t for dialect d. Column
// names go through SafeIdentifier. With withRowHash a NOT NULL hash column is
// appended under a unique constraint; its name is RowHashColumn, suffixed
// when a data column already uses it. Callers find it with
// spec.UniqueColumns().
func TableSpecFor(t table.TypedTable, name string, d Dialect, withRowHash bool) (storage.TableSpec, error) {
	if len(t.Columns) == 0 {
		return storage.TableSpec{}, table.ErrNoColumns
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultTableName
	}

	spec := storage.TableSpec{Name: name, Columns: make([]storage.ColumnSpec, 0, len(t.Columns)+1)}
	used := make(map[string]bool, len(t.Columns)+1)
	for _, c := range t.Columns {
		id := SafeIdentifier(c.Name)
		if used[id] {
			return storage.TableSpec{}, fmt.Errorf("%w: %q after identifier cleanup", table.ErrDuplicateName, id)
		}
		used[id] = true
		nullable := c.Nullable()
		spec.Columns = append(spec.Columns, storage.ColumnSpec{
			Name:     id,
			Type:     ColumnTypeFor(c, d),
			Nullable: &nullable,
		})
	}

	if withRowHash {
		hash := RowHashColumn
		for k := 2; used[hash]; k++ {
			hash = RowHashColumn + "_" + strconv.Itoa(k)
		}
		hashNullable := false
		spec.Columns = append(spec.Columns, storage.ColumnSpec{Name: hash, Type: rowHashType(d), Nullable: &hashNullable})
		spec.Constraints = []storage.ConstraintSpec{{Kind: "unique", Columns: []string{hash}}}
	}
	return spec, spec.Validate()
}
