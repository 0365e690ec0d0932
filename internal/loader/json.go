package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tabnorm/internal/table"
)

// jsonGrid accumulates records whose keys become columns in first-seen order.
type jsonGrid struct {
	grid
	index map[string]int
	cells cellReader
}

func newJSONGrid(cells cellReader) *jsonGrid {
	return &jsonGrid{index: map[string]int{}, cells: cells}
}

// readObject consumes one object whose '{' has already been read and appends
// it as a row.
func (g *jsonGrid) readObject(dec *json.Decoder) error {
	row := make([]table.Raw, len(g.header))
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: read object key: %w", err)
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("json: object key not a string (got %T)", kt)
		}
		vt, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: read value of %q: %w", key, err)
		}
		v, err := materialize(dec, vt)
		if err != nil {
			return err
		}

		j, ok := g.index[key]
		if !ok {
			j = len(g.header)
			g.index[key] = j
			g.header = append(g.header, key)
		}
		for len(row) <= j {
			row = append(row, table.Missing())
		}
		row[j] = g.cellFor(v)
	}
	if end, err := dec.Token(); err != nil {
		return fmt.Errorf("json: read object end: %w", err)
	} else if end != json.Delim('}') {
		return fmt.Errorf("json: expected '}', got %v", end)
	}
	g.rows = append(g.rows, row)
	return nil
}

// cellFor flattens a decoded value to a raw cell. Arrays of strings are
// joined with ","; other composites are kept as compact JSON.
func (g *jsonGrid) cellFor(v any) table.Raw {
	switch t := v.(type) {
	case nil:
		return table.Missing()
	case string:
		return g.cells.cell(t)
	case json.Number:
		return table.Some(t.String())
	case bool:
		return table.Some(strconv.FormatBool(t))
	case []any:
		ss := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				return compactJSON(v)
			}
			ss = append(ss, s)
		}
		if len(ss) == 0 {
			return table.Missing()
		}
		return table.Some(strings.Join(ss, ","))
	default:
		return compactJSON(v)
	}
}

func compactJSON(v any) table.Raw {
	b, err := json.Marshal(v)
	if err != nil {
		return table.Missing()
	}
	return table.Some(string(b))
}

// readRecords consumes the elements of an array whose '[' has been read.
// null elements are skipped; any other non-object element is an error.
func (g *jsonGrid) readRecords(ctx context.Context, dec *json.Decoder) error {
	for n := 0; dec.More(); n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: read array element: %w", err)
		}
		if tok == nil {
			continue
		}
		if tok != json.Delim('{') {
			return fmt.Errorf("json: array element %d is not an object", n)
		}
		if err := g.readObject(dec); err != nil {
			return err
		}
	}
	if end, err := dec.Token(); err != nil {
		return fmt.Errorf("json: read array end: %w", err)
	} else if end != json.Delim(']') {
		return fmt.Errorf("json: expected ']', got %v", end)
	}
	return nil
}

// readJSON accepts a root array of flat objects, or a root object that holds
// such an array under its first array-valued key. A root object without one
// is a single record.
func readJSON(ctx context.Context, r io.Reader, cells cellReader) (grid, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	g := newJSONGrid(cells)

	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return grid{}, ErrNoColumns
	}
	if err != nil {
		return grid{}, fmt.Errorf("json: read first token: %w", err)
	}

	switch tok {
	case json.Delim('['):
		if err := g.readRecords(ctx, dec); err != nil {
			return grid{}, err
		}
		return g.grid, nil
	case json.Delim('{'):
		return g.readEnvelope(ctx, dec)
	default:
		return grid{}, fmt.Errorf("json: unsupported root token %v (want object or array)", tok)
	}
}

func (g *jsonGrid) readEnvelope(ctx context.Context, dec *json.Decoder) (grid, error) {
	single := newJSONGrid(g.cells)
	single.rows = [][]table.Raw{nil}

	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return grid{}, fmt.Errorf("json: read object key: %w", err)
		}
		key, _ := kt.(string)
		vt, err := dec.Token()
		if err != nil {
			return grid{}, fmt.Errorf("json: read value of %q: %w", key, err)
		}
		if vt == json.Delim('[') {
			if err := g.readRecords(ctx, dec); err != nil {
				return grid{}, fmt.Errorf("json: records under %q: %w", key, err)
			}
			return g.grid, nil
		}
		v, err := materialize(dec, vt)
		if err != nil {
			return grid{}, err
		}
		single.index[key] = len(single.header)
		single.header = append(single.header, key)
		single.rows[0] = append(single.rows[0], single.cellFor(v))
	}
	if len(single.header) == 0 {
		return grid{}, ErrNoColumns
	}
	return single.grid, nil
}

// readJSONLines reads one object per line; blank lines are allowed.
func readJSONLines(ctx context.Context, r io.Reader, cells cellReader) (grid, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	g := newJSONGrid(cells)

	for n := 1; ; n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return grid{}, err
			}
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return g.grid, nil
		}
		if err != nil {
			return grid{}, fmt.Errorf("jsonl record %d: %w", n, err)
		}
		if tok != json.Delim('{') {
			return grid{}, fmt.Errorf("jsonl record %d: not an object", n)
		}
		if err := g.readObject(dec); err != nil {
			return grid{}, fmt.Errorf("jsonl record %d: %w", n, err)
		}
	}
}

// materialize builds a Go value for the JSON value whose first token is tok.
func materialize(dec *json.Decoder, tok json.Token) (any, error) {
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		m := make(map[string]any)
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("json: read nested key: %w", err)
			}
			k, _ := kt.(string)
			vt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("json: read nested value: %w", err)
			}
			v, err := materialize(dec, vt)
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("json: read nested object end: %w", err)
		}
		return m, nil
	case '[':
		arr := []any{}
		for dec.More() {
			vt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("json: read nested element: %w", err)
			}
			v, err := materialize(dec, vt)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("json: read nested array end: %w", err)
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("json: unexpected delimiter %q", d)
	}
}
