package loader

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

func readXLSX(ctx context.Context, r io.Reader, sheet string, cells cellReader) (grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return grid{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	name, err := pickSheet(f.GetSheetList(), sheet)
	if err != nil {
		return grid{}, err
	}

	rows, err := f.Rows(name)
	if err != nil {
		return grid{}, fmt.Errorf("sheet %q: %w", name, err)
	}
	defer rows.Close()

	var g grid
	first := true
	for n := 0; rows.Next(); n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return grid{}, err
			}
		}
		rec, err := rows.Columns()
		if err != nil {
			return grid{}, fmt.Errorf("sheet %q row %d: %w", name, n+1, err)
		}
		if first {
			g.header = rec
			first = false
			continue
		}
		g.rows = append(g.rows, cells.row(rec))
	}
	if err := rows.Error(); err != nil {
		return grid{}, fmt.Errorf("sheet %q: %w", name, err)
	}
	return g, nil
}

// pickSheet resolves want against the workbook's sheets. An all-digit want
// is a 0-based index unless a sheet carries that exact name.
func pickSheet(sheets []string, want string) (string, error) {
	if len(sheets) == 0 {
		return "", ErrNoColumns
	}
	want = strings.TrimSpace(want)
	if want == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if s == want {
			return s, nil
		}
	}
	if i, err := strconv.Atoi(want); err == nil && i >= 0 && i < len(sheets) {
		return sheets[i], nil
	}
	return "", fmt.Errorf("%w: %q (have %s)", ErrSheetNotFound, want, strings.Join(sheets, ", "))
}
