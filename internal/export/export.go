// Package export writes a run's artefacts into a dated run folder:
//
//	<root>/<sub>/<stem>OUT_<YYYY-MM-DD>/
//	    <stem>OUT_clean.csv
//	    <stem>OUT_data.json
//	    <stem>OUT_schema.sql
//	    <stem>OUT_schema.json
//	    <stem>OUT_report.json
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"tabnorm/internal/logging"
	"tabnorm/internal/normalize"
	"tabnorm/internal/profile"
	"tabnorm/internal/schema"
	"tabnorm/internal/table"
)

// ErrOutputExists is returned when the run folder exists and overwriting is off.
var ErrOutputExists = errors.New("output folder already exists")

// DefaultRoot is the output root when Writer.Root is empty.
const DefaultRoot = "output"

// Run is everything one export writes.
type Run struct {
	// Input is the source path or URL; its stem names the run folder.
	Input string
	// Date names the folder. Zero means today.
	Date  time.Time
	RunID string

	Table    table.TypedTable
	Profiles []profile.ColumnProfile
	Stats    []normalize.Stats

	// DuplicateRows counts rows identical to an earlier row.
	DuplicateRows int

	CreateSQL  string
	JSONSchema schema.JSONSchema
}

// Paths are the files written by Write.
type Paths struct {
	Dir        string
	CleanCSV   string
	DataJSON   string
	SchemaSQL  string
	SchemaJSON string
	Report     string
}

// All lists the file paths in write order.
func (p Paths) All() []string {
	return []string{p.CleanCSV, p.DataJSON, p.SchemaSQL, p.SchemaJSON, p.Report}
}

// Writer writes runs under Root/Sub.
type Writer struct {
	Root      string
	Sub       string
	Overwrite bool
	Logger    *zap.Logger
}

// Stem is the artefact prefix for input: "<basename without ext>OUT".
func Stem(input string) string {
	base := filepath.Base(input)
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + "OUT"
}

// RunDir is the folder Write would use for input on date.
func (w Writer) RunDir(input string, date time.Time) string {
	root := w.Root
	if root == "" {
		root = DefaultRoot
	}
	if date.IsZero() {
		date = time.Now()
	}
	return filepath.Join(root, w.Sub, Stem(input)+"_"+date.Format("2006-01-02"))
}

// Write creates the run folder and its five files.
func (w Writer) Write(run Run) (Paths, error) {
	log := logging.OrNop(w.Logger)
	dir := w.RunDir(run.Input, run.Date)

	if _, err := os.Stat(dir); err == nil && !w.Overwrite {
		return Paths{}, fmt.Errorf("%w: %s", ErrOutputExists, dir)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Paths{}, fmt.Errorf("stat %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create %s: %w", dir, err)
	}

	stem := Stem(run.Input)
	p := Paths{
		Dir:        dir,
		CleanCSV:   filepath.Join(dir, stem+"_clean.csv"),
		DataJSON:   filepath.Join(dir, stem+"_data.json"),
		SchemaSQL:  filepath.Join(dir, stem+"_schema.sql"),
		SchemaJSON: filepath.Join(dir, stem+"_schema.json"),
		Report:     filepath.Join(dir, stem+"_report.json"),
	}

	schemaJSON, err := json.MarshalIndent(run.JSONSchema, "", "  ")
	if err != nil {
		return Paths{}, fmt.Errorf("encode json schema: %w", err)
	}
	report, err := json.MarshalIndent(NewReport(run), "", "  ")
	if err != nil {
		return Paths{}, fmt.Errorf("encode report: %w", err)
	}
	records, err := Records(run.Table)
	if err != nil {
		return Paths{}, err
	}

	steps := []struct {
		path string
		data func() ([]byte, error)
	}{
		{p.CleanCSV, func() ([]byte, error) { return CleanCSV(run.Table) }},
		{p.DataJSON, func() ([]byte, error) { return records, nil }},
		{p.SchemaSQL, func() ([]byte, error) { return []byte(run.CreateSQL + "\n"), nil }},
		{p.SchemaJSON, func() ([]byte, error) { return append(schemaJSON, '\n'), nil }},
		{p.Report, func() ([]byte, error) { return append(report, '\n'), nil }},
	}
	for _, s := range steps {
		b, err := s.data()
		if err != nil {
			return Paths{}, err
		}
		if err := os.WriteFile(s.path, b, 0o644); err != nil {
			return Paths{}, fmt.Errorf("write %s: %w", s.path, err)
		}
		log.Debug("export: wrote file", zap.String("path", s.path), zap.Int("bytes", len(b)))
	}

	log.Info("export: run folder written", zap.String("dir", dir), zap.Int("rows", run.Table.Rows()))
	return p, nil
}

// CleanCSV renders t with a header row. Missing values are empty fields.
func CleanCSV(t table.TypedTable) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(t.Names()); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	rec := make([]string, len(t.Columns))
	for i := 0; i < t.Rows(); i++ {
		for j, c := range t.Columns {
			rec[j] = c.Text(i)
		}
		if err := cw.Write(rec); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Records renders t as an indented JSON array of objects whose keys follow
// column order. Missing values are null; dates are RFC 3339 strings.
func Records(t table.TypedTable) ([]byte, error) {
	var buf bytes.Buffer
	keys := make([][]byte, len(t.Columns))
	for j, c := range t.Columns {
		k, err := json.Marshal(c.Name)
		if err != nil {
			return nil, fmt.Errorf("encode key %q: %w", c.Name, err)
		}
		keys[j] = k
	}

	buf.WriteByte('[')
	for i := 0; i < t.Rows(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, c := range t.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.Write(keys[j])
			buf.WriteByte(':')
			v, err := json.Marshal(jsonValue(c, i))
			if err != nil {
				return nil, fmt.Errorf("encode row %d column %q: %w", i+1, c.Name, err)
			}
			buf.Write(v)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent records: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func jsonValue(c table.TypedColumn, i int) any {
	if c.IsNull(i) {
		return nil
	}
	if c.Type == table.Date {
		return c.Times[i].Time.Format(time.RFC3339)
	}
	return c.Value(i)
}
