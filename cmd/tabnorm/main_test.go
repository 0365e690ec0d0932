package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabnorm/internal/config"
	"tabnorm/internal/engine"
	"tabnorm/internal/export"
	"tabnorm/internal/loader"
	"tabnorm/internal/storage"
)

const ordersCSV = "Order ID,Paid,Amount\n1,yes,10.5\n2,no,3\n3,oui,7.25\n"

func writeInput(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"-log-level", "error"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{fmt.Errorf("load: %w", loader.ErrNotFound), exitNotFound},
		{fmt.Errorf("load: %w", loader.ErrUnsupportedFormat), exitUsage},
		{loader.ErrSheetNotFound, exitUsage},
		{fmt.Errorf("store: %w", storage.ErrUnsupportedKind), exitUsage},
		{config.ErrInvalid, exitUsage},
		{fmt.Errorf("export: %w", export.ErrOutputExists), exitOutputExist},
		{loader.ErrEmptyTable, exitEmptyInput},
		{loader.ErrNoColumns, exitEmptyInput},
		{fmt.Errorf("normalize: %w", engine.ErrNoUsableColumns), exitNoColumns},
		{errors.New("boom"), exitUnexpected},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), "%v", tt.err)
	}
}

func TestResolveDSN(t *testing.T) {
	t.Setenv("DSN", "")
	assert.Equal(t, "cfg", resolveDSN("", "cfg"))

	t.Setenv("DSN", " env ")
	assert.Equal(t, "env", resolveDSN("", "cfg"))
	assert.Equal(t, "flag", resolveDSN("flag", "cfg"))
}

func TestParseDelimiter(t *testing.T) {
	for in, want := range map[string]rune{"": 0, ";": ';', "tab": '\t', `\t`: '\t', "|": '|'} {
		got, err := parseDelimiter(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseDelimiter(";;")
	require.ErrorIs(t, err, config.ErrInvalid)
}

func TestFlagsApplyOnlySetFlags(t *testing.T) {
	t.Setenv("DSN", "")
	f, rest, err := parseFlags([]string{"-table", "orders", "-preview-rows", "0", "-dsn", "x.db", "in.csv"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, []string{"in.csv"}, rest)

	cfg := config.Default()
	cfg.Output.Schema = "staging"
	f.apply(cfg)

	assert.Equal(t, "orders", cfg.Output.Table)
	assert.Equal(t, 0, cfg.Output.PreviewRows)
	assert.Equal(t, "staging", cfg.Output.Schema)
	assert.Equal(t, "x.db", cfg.Storage.DSN)
	assert.False(t, cfg.Output.Export)
}

func TestRun_PrintsSummary(t *testing.T) {
	in := writeInput(t, "orders.csv", ordersCSV)

	code, out, _ := runCLI(t, "-table", "orders", "-show-schema", "-report", in)
	require.Equal(t, exitOK, code)

	assert.Contains(t, out, "Loaded: "+in)
	assert.Contains(t, out, "Rows: 3\nColumns: 3\n")
	assert.Contains(t, out, "  - order_id (integer)")
	assert.Contains(t, out, "  - paid (boolean)")
	assert.Contains(t, out, "CREATE TABLE orders (")
	assert.Contains(t, out, `"required": [`)
	assert.Contains(t, out, `"rows": 3`)
	assert.NotContains(t, out, "Exported to")
}

func TestRun_ExportAndLoad(t *testing.T) {
	t.Setenv("DSN", "")
	t.Setenv("TABNORM_OUTPUT_ROOT", t.TempDir())
	in := writeInput(t, "orders.csv", ordersCSV)
	db := filepath.Join(t.TempDir(), "out.db")

	code, out, errOut := runCLI(t, "-export", "-out", "batch1", "-load", "-backend", "sqlite", "-dsn", db, in)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "Exported to ")
	assert.Contains(t, out, "ordersOUT_report.json")
	assert.Contains(t, out, "Inserted 3 rows.")

	code, _, _ = runCLI(t, "-export", "-out", "batch1", in)
	assert.Equal(t, exitOutputExist, code)
}

func TestRun_ExitCodes(t *testing.T) {
	dir := t.TempDir()

	code, _, _ := runCLI(t, filepath.Join(dir, "nope.csv"))
	assert.Equal(t, exitNotFound, code)

	code, _, _ = runCLI(t, writeInput(t, "a.pdf", "x"))
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI(t, writeInput(t, "header.csv", "a,b\n"))
	assert.Equal(t, exitEmptyInput, code)

	code, _, _ = runCLI(t, writeInput(t, "blank.csv", "a,b\n,\nNA,\n"))
	assert.Equal(t, exitNoColumns, code)

	code, _, _ = runCLI(t)
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI(t, "-preview-rows", "99", writeInput(t, "x.csv", ordersCSV))
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI(t, "-no-such-flag")
	assert.Equal(t, exitUsage, code)
}

func TestRun_DumpConfig(t *testing.T) {
	code, out, _ := runCLI(t, "-table", "orders", "-dump-config")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "table: orders")
	assert.Contains(t, out, "level: error")
}

func TestRender_WideTable(t *testing.T) {
	var b strings.Builder
	header := make([]string, 35)
	row := make([]string, 35)
	for i := range header {
		header[i] = fmt.Sprintf("c%d", i)
		row[i] = fmt.Sprint(i)
	}
	in := writeInput(t, "wide.csv", strings.Join(header, ",")+"\n"+strings.Join(row, ",")+"\n")

	res, err := engine.New(engine.Options{}, nil, nil).Run(context.Background(), in)
	require.NoError(t, err)
	require.NoError(t, render(&b, res, config.OutputConfig{PreviewRows: 3}))

	out := b.String()
	assert.Contains(t, out, "  ... +5 more\n")
	assert.Contains(t, out, "(showing 10 of 35 columns)")
	assert.NotContains(t, out, "  - c30 ")
}
