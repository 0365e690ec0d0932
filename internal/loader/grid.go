package loader

import (
	"strings"

	"tabnorm/internal/table"
)

// DefaultMissingTokens are the cell values read as missing, matching the
// usual dataframe NA set. Whitespace-only cells are always missing.
var DefaultMissingTokens = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// cellReader decides which raw strings are missing. Tokens match exactly.
type cellReader struct {
	tokens map[string]struct{}
}

func newCellReader(tokens []string) cellReader {
	if tokens == nil {
		tokens = DefaultMissingTokens
	}
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return cellReader{tokens: m}
}

func (c cellReader) cell(s string) table.Raw {
	if strings.TrimSpace(s) == "" {
		return table.Missing()
	}
	if _, ok := c.tokens[s]; ok {
		return table.Missing()
	}
	return table.Some(s)
}

func (c cellReader) row(rec []string) []table.Raw {
	out := make([]table.Raw, len(rec))
	for i, s := range rec {
		out[i] = c.cell(s)
	}
	return out
}

// grid is the row-major intermediate every format parser fills.
type grid struct {
	header []string
	rows   [][]table.Raw
}

// build transposes the grid into columns. Short rows are padded with missing
// cells; cells beyond the header get unnamed columns.
func (g grid) build() (table.RawTable, error) {
	width := len(g.header)
	for _, r := range g.rows {
		width = max(width, len(r))
	}
	if width == 0 {
		return table.RawTable{}, ErrNoColumns
	}
	if len(g.rows) == 0 {
		return table.RawTable{}, ErrEmptyTable
	}

	cols := make([]table.RawColumn, width)
	for j := range cols {
		if j < len(g.header) {
			cols[j].Name = g.header[j]
		}
		cols[j].Values = make([]table.Raw, len(g.rows))
	}
	for i, r := range g.rows {
		for j := 0; j < len(r) && j < width; j++ {
			cols[j].Values[i] = r[j]
		}
	}
	return table.RawTable{Columns: cols}, nil
}
