// Package loader reads a tabular file into a table.RawTable of optional
// strings. It dispatches on the file suffix and never interprets values
// beyond deciding which cells are missing.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"tabnorm/internal/table"
)

var (
	// ErrNotFound is returned when the input path does not exist.
	ErrNotFound = errors.New("input not found")
	// ErrUnsupportedFormat is returned for unknown file suffixes.
	ErrUnsupportedFormat = errors.New("unsupported file type")
	// ErrEmptyTable is returned when the input has a header but no data rows.
	ErrEmptyTable = errors.New("input contains no rows")
	// ErrNoColumns is returned when no header or table could be found.
	ErrNoColumns = errors.New("input contains no columns")
	// ErrSheetNotFound is returned when Options.Sheet names no sheet.
	ErrSheetNotFound = errors.New("sheet not found")
)

// Format is an input file family.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
	FormatXLSX  Format = "xlsx"
	FormatHTML  Format = "html"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
)

// DefaultTimeout bounds URL downloads when Options.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// Options controls loading.
type Options struct {
	// Sheet selects a workbook sheet by name or 0-based index. Empty means
	// the first sheet.
	Sheet string
	// Delimiter forces the CSV field separator. Zero means sniff.
	Delimiter rune
	// MissingTokens replaces DefaultMissingTokens when non-nil.
	MissingTokens []string

	// HTTPClient and Timeout are used when the input is an http(s) URL.
	HTTPClient *http.Client
	Timeout    time.Duration
}

// DetectFormat maps a file name or URL path to its Format.
func DetectFormat(name string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".tsv", ".tab":
		return FormatTSV, nil
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return FormatXLSX, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	default:
		if ext == "" {
			ext = "(none)"
		}
		return "", fmt.Errorf("%w: %s (want .csv, .tsv, .xlsx, .html, .json or .jsonl)", ErrUnsupportedFormat, ext)
	}
}

// Load reads path, which may also be an http(s) URL, into a RawTable.
func Load(ctx context.Context, src string, opt Options) (table.RawTable, error) {
	if isURL(src) {
		u, err := url.Parse(src)
		if err != nil {
			return table.RawTable{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		format, err := DetectFormat(path.Base(u.Path))
		if err != nil {
			return table.RawTable{}, err
		}
		body, err := fetch(ctx, src, opt)
		if err != nil {
			return table.RawTable{}, err
		}
		return Read(ctx, bytes.NewReader(body), format, opt)
	}

	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return table.RawTable{}, fmt.Errorf("%w: %s", ErrNotFound, src)
		}
		return table.RawTable{}, fmt.Errorf("stat %s: %w", src, err)
	}
	if info.IsDir() {
		return table.RawTable{}, fmt.Errorf("%w: %s is a directory", ErrUnsupportedFormat, src)
	}
	format, err := DetectFormat(src)
	if err != nil {
		return table.RawTable{}, err
	}

	f, err := os.Open(src)
	if err != nil {
		return table.RawTable{}, fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()

	t, err := Read(ctx, f, format, opt)
	if err != nil {
		return table.RawTable{}, fmt.Errorf("%s: %w", filepath.Base(src), err)
	}
	return t, nil
}

// Read parses r as format.
func Read(ctx context.Context, r io.Reader, format Format, opt Options) (table.RawTable, error) {
	cells := newCellReader(opt.MissingTokens)

	var (
		g   grid
		err error
	)
	switch format {
	case FormatCSV:
		g, err = readCSV(ctx, r, opt.Delimiter, cells)
	case FormatTSV:
		d := opt.Delimiter
		if d == 0 {
			d = '\t'
		}
		g, err = readCSV(ctx, r, d, cells)
	case FormatXLSX:
		g, err = readXLSX(ctx, r, opt.Sheet, cells)
	case FormatHTML:
		g, err = readHTML(r, cells)
	case FormatJSON:
		g, err = readJSON(ctx, r, cells)
	case FormatJSONL:
		g, err = readJSONLines(ctx, r, cells)
	default:
		return table.RawTable{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return table.RawTable{}, err
	}
	return g.build()
}

func isURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// fetch downloads a URL. Non-2xx responses fail with the status and the
// start of the body.
func fetch(ctx context.Context, src string, opt Options) ([]byte, error) {
	client := opt.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	timeout := opt.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", "tabnorm/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, src)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}
