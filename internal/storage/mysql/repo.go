// Package mysql implements storage.Repository for MySQL and MariaDB using
// github.com/go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"

	"tabnorm/internal/storage"
)

const maxParams = 65535

func init() {
	storage.Register("mysql", New)
}

// Repo implements storage.Repository for MySQL.
type Repo struct {
	db        *sql.DB
	batchRows int
}

// New opens a pool for cfg.DSN (go-sql-driver format,
// "user:pass@tcp(host:3306)/db"). parseTime is forced on so DATETIME columns
// scan as time.Time.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	dc, err := mysqldrv.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql: parse dsn: %w", err)
	}
	dc.ParseTime = true

	connector, err := mysqldrv.NewConnector(dc)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, batchRows: cfg.BatchRows}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureTable creates the table if it does not exist. In MySQL a schema
// qualifier names a database, which must already exist.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	q, err := buildCreateTableSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("mysql: create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows performs batched multi-row inserts. With dedupeColumns it uses
// INSERT IGNORE, which relies on the table's unique key.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupeColumns []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := storage.CheckRows(columns, rows); err != nil {
		return 0, err
	}

	per := storage.RowsPerStatement(r.batchRows, len(columns), maxParams)
	var total int64
	for _, part := range storage.Chunks(rows, per) {
		q, args := buildInsertSQL(table, columns, part, len(dedupeColumns) > 0)
		res, err := r.db.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("mysql: insert into %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func buildCreateTableSQL(t storage.TableSpec) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("mysql: %w", err)
	}

	parts := make([]string, 0, len(t.Columns)+len(t.Constraints))
	for _, c := range t.Columns {
		def := myIdent(c.Name) + " " + c.Type
		if !c.IsNullable() {
			def += " NOT NULL"
		}
		parts = append(parts, def)
	}
	for _, con := range t.Constraints {
		cols := make([]string, len(con.Columns))
		for i, c := range con.Columns {
			cols[i] = myIdent(c)
		}
		parts = append(parts, fmt.Sprintf("UNIQUE KEY (%s)", strings.Join(cols, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n) DEFAULT CHARSET=utf8mb4;",
		myTableIdent(t.Name), strings.Join(parts, ",\n  ")), nil
}

func buildInsertSQL(table string, columns []string, rows [][]any, ignore bool) (string, []any) {
	var b strings.Builder
	if ignore {
		b.WriteString("INSERT IGNORE INTO ")
	} else {
		b.WriteString("INSERT INTO ")
	}
	b.WriteString(myTableIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(myIdent(c))
	}
	b.WriteString(") VALUES ")

	placeholders := "(" + strings.TrimRight(strings.Repeat("?, ", len(columns)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		args = append(args, row...)
	}
	return b.String(), args
}

// myIdent backtick-quotes an identifier.
func myIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

func myTableIdent(name string) string {
	schema, table := storage.SplitQualifiedName(name)
	if schema == "" {
		return myIdent(table)
	}
	return myIdent(schema) + "." + myIdent(table)
}

var _ storage.Repository = (*Repo)(nil)
