package storage

import (
	"fmt"
	"strings"
)

// RowsPerStatement returns how many rows of width columns fit in one
// statement given a bind-parameter limit and the configured batch size.
// It is at least 1.
func RowsPerStatement(batchRows, columns, maxParams int) int {
	if batchRows <= 0 {
		batchRows = DefaultBatchRows
	}
	if columns <= 0 {
		return batchRows
	}
	n := maxParams / columns
	if n > batchRows {
		n = batchRows
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Chunks splits rows into consecutive slices of at most size rows.
func Chunks(rows [][]any, size int) [][][]any {
	if size < 1 {
		size = 1
	}
	out := make([][][]any, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}

// CheckRows verifies that every row is as wide as columns.
func CheckRows(columns []string, rows [][]any) error {
	if len(columns) == 0 {
		return fmt.Errorf("storage: no columns")
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return fmt.Errorf("storage: row %d has %d values for %d columns", i, len(r), len(columns))
		}
	}
	return nil
}

// DedupeRows keeps the first row for every distinct dedupe key, preserving
// order. Backends whose idempotent insert does not collapse duplicates inside
// one statement (SQL Server NOT EXISTS) need it.
//
// Every dedupe column must be present in columns.
func DedupeRows(rows [][]any, columns []string, dedupeColumns []string) ([][]any, error) {
	if len(dedupeColumns) == 0 {
		return rows, nil
	}
	idx := make([]int, len(dedupeColumns))
	for i, dc := range dedupeColumns {
		pos := -1
		for j, c := range columns {
			if c == dc {
				pos = j
				break
			}
		}
		if pos < 0 {
			return nil, fmt.Errorf("storage: dedupe column %q not present in columns", dc)
		}
		idx[i] = pos
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([][]any, 0, len(rows))
	var b strings.Builder
	for _, r := range rows {
		b.Reset()
		for _, p := range idx {
			fmt.Fprintf(&b, "%T:%v\x1f", r[p], r[p])
		}
		k := b.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}
