package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"tabnorm/internal/config"
	"tabnorm/internal/engine"
)

// Console limits.
const (
	maxListedColumns  = 30
	maxPreviewColumns = 10
)

// render prints the run to w in the order: summary, column list, profile,
// preview, schemas, report, exported files.
func render(w io.Writer, res *engine.Result, out config.OutputConfig) error {
	fmt.Fprintf(w, "Loaded: %s\n", res.Source)
	fmt.Fprintf(w, "Rows: %d\n", res.Table.Rows())
	fmt.Fprintf(w, "Columns: %d\n", len(res.Table.Columns))
	writeColumnList(w, res)

	fmt.Fprintln(w, "\nProfile:")
	if err := writeProfile(w, res); err != nil {
		return err
	}

	if out.PreviewRows > 0 {
		fmt.Fprintln(w, "\nPreview:")
		if err := writePreview(w, res, out.PreviewRows); err != nil {
			return err
		}
	}

	if out.ShowSchema {
		b, err := json.MarshalIndent(res.JSONSchema, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json schema: %w", err)
		}
		fmt.Fprintf(w, "\nSQL:\n%s\n\nJSON Schema:\n%s\n", res.CreateSQL, b)
	}

	if out.Report {
		b, err := json.MarshalIndent(res.Report(), "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		fmt.Fprintf(w, "\nReport:\n%s\n", b)
	}

	if res.Paths != nil {
		fmt.Fprintf(w, "\nExported to %s:\n", res.Paths.Dir)
		for _, p := range res.Paths.All() {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	if res.Inserted > 0 {
		fmt.Fprintf(w, "\nInserted %d rows.\n", res.Inserted)
	}
	return nil
}

func writeColumnList(w io.Writer, res *engine.Result) {
	cols := res.Table.Columns
	for i, c := range cols {
		if i == maxListedColumns {
			fmt.Fprintf(w, "  ... +%d more\n", len(cols)-maxListedColumns)
			break
		}
		fmt.Fprintf(w, "  - %s (%s)\n", c.Name, c.Type)
	}
}

// writeProfile lists the raw columns with their cleaned names.
func writeProfile(w io.Writer, res *engine.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tNAME\tTYPE\tMISSING %\tUNIQUE\tSAMPLES")
	names := res.Table.Names()
	for i, p := range res.Profiles {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\t%s\n",
			p.Name, name, p.Type, p.MissingPct, p.UniqueCount, strings.Join(p.Samples, " | "))
	}
	return tw.Flush()
}

func writePreview(w io.Writer, res *engine.Result, n int) error {
	t := res.Table
	if n > t.Rows() {
		n = t.Rows()
	}
	cols := t.Columns
	if len(cols) > maxPreviewColumns {
		cols = cols[:maxPreviewColumns]
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	cells := make([]string, len(cols))
	for r := 0; r < n; r++ {
		for i, c := range cols {
			if c.IsNull(r) {
				cells[i] = "<null>"
			} else {
				cells[i] = c.Text(r)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(t.Columns) > maxPreviewColumns {
		fmt.Fprintf(w, "(showing %d of %d columns)\n", maxPreviewColumns, len(t.Columns))
	}
	return nil
}
