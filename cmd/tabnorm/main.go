// Command tabnorm loads a tabular file, infers a type per column, normalizes
// the values and prints a profile, a preview and the derived schemas.
// Optionally it writes a run folder and loads the cleaned rows into a
// database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"unicode/utf8"

	"go.uber.org/zap"

	"tabnorm/internal/classify"
	"tabnorm/internal/config"
	"tabnorm/internal/engine"
	"tabnorm/internal/export"
	"tabnorm/internal/loader"
	"tabnorm/internal/logging"
	"tabnorm/internal/metrics"
	"tabnorm/internal/metrics/datadog"
	"tabnorm/internal/normalize"
	"tabnorm/internal/profile"
	"tabnorm/internal/storage"

	// register all backends with the storage factory.
	_ "tabnorm/internal/storage/all"
)

// Exit codes.
const (
	exitOK          = 0
	exitNotFound    = 1
	exitUsage       = 2
	exitUnexpected  = 3
	exitOutputExist = 4
	exitEmptyInput  = 5
	exitNoColumns   = 6
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// flags holds the command line. Only flags the user actually set override
// the config file; see apply.
type flags struct {
	configPath  string
	sheet       string
	previewRows int
	table       string
	schema      string
	showSchema  bool
	report      bool
	out         string
	export      bool
	overwrite   bool
	backend     string
	dsn         string
	load        bool
	dateOrder   string
	workers     int
	logLevel    string
	dumpConfig  bool

	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*flags, []string, error) {
	f := &flags{set: map[string]bool{}}
	fs := flag.NewFlagSet("tabnorm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: tabnorm [flags] <input file or URL>")
		fs.PrintDefaults()
	}

	fs.StringVar(&f.configPath, "config", "", "YAML config file (TABNORM_* env vars override it)")
	fs.StringVar(&f.sheet, "sheet", "", "workbook sheet name or 0-based index")
	fs.IntVar(&f.previewRows, "preview-rows", 5, "cleaned rows to preview (0-50)")
	fs.StringVar(&f.table, "table", "", "table name used in the DDL")
	fs.StringVar(&f.schema, "schema", "", "optional SQL schema prefix")
	fs.BoolVar(&f.showSchema, "show-schema", false, "print CREATE TABLE and JSON Schema")
	fs.BoolVar(&f.report, "report", false, "print the run report as JSON")
	fs.StringVar(&f.out, "out", "", "subfolder inside the output root")
	fs.BoolVar(&f.export, "export", false, "write the run folder")
	fs.BoolVar(&f.overwrite, "overwrite", false, "replace an existing run folder")
	fs.StringVar(&f.backend, "backend", "", "storage backend (postgres, mssql, sqlite, mysql)")
	fs.StringVar(&f.dsn, "dsn", "", "storage DSN (overrides env DSN and config)")
	fs.BoolVar(&f.load, "load", false, "load the cleaned rows into the storage backend")
	fs.StringVar(&f.dateOrder, "date-order", "", "ambiguous date order: mdy or dmy")
	fs.IntVar(&f.workers, "workers", 0, "parallel column workers (0 = GOMAXPROCS)")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&f.dumpConfig, "dump-config", false, "print the effective config as YAML and exit")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, fs.Args(), nil
}

// apply copies explicitly set flags onto cfg.
func (f *flags) apply(cfg *config.Config) {
	for name := range f.set {
		switch name {
		case "sheet":
			cfg.Input.Sheet = f.sheet
		case "preview-rows":
			cfg.Output.PreviewRows = f.previewRows
		case "table":
			cfg.Output.Table = f.table
		case "schema":
			cfg.Output.Schema = f.schema
		case "show-schema":
			cfg.Output.ShowSchema = f.showSchema
		case "report":
			cfg.Output.Report = f.report
		case "out":
			cfg.Output.Sub = f.out
		case "export":
			cfg.Output.Export = f.export
		case "overwrite":
			cfg.Output.Overwrite = f.overwrite
		case "backend":
			cfg.Storage.Kind = f.backend
		case "load":
			cfg.Storage.Load = f.load
		case "date-order":
			cfg.Inference.DateOrder = strings.ToLower(strings.TrimSpace(f.dateOrder))
		case "workers":
			cfg.Workers = f.workers
		case "log-level":
			cfg.Log.Level = f.logLevel
		}
	}
	cfg.Storage.DSN = resolveDSN(f.dsn, cfg.Storage.DSN)
}

// resolveDSN picks the storage DSN.
//
// Precedence order (highest wins):
//  1. -dsn flag
//  2. DSN environment variable
//  3. the config value (file or TABNORM_DSN)
func resolveDSN(flagDSN, cfgDSN string) string {
	if v := strings.TrimSpace(flagDSN); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("DSN")); v != "" {
		return v
	}
	return cfgDSN
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// Until the zap logger exists, failures go through a plain log.Logger.
	plain := log.New(stderr, "tabnorm: ", 0)

	f, rest, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		plain.Printf("load config: %v", err)
		return exitUsage
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		plain.Printf("%v", err)
		return exitUsage
	}

	if f.dumpConfig {
		if err := cfg.Dump(stdout); err != nil {
			plain.Printf("dump config: %v", err)
			return exitUnexpected
		}
		return exitOK
	}

	if len(rest) != 1 {
		plain.Printf("expected exactly one input, got %d", len(rest))
		return exitUsage
	}
	input := rest[0]

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		plain.Printf("init logger: %v", err)
		return exitUsage
	}
	defer func() { _ = logger.Sync() }()

	opt, err := engineOptions(cfg)
	if err != nil {
		plain.Printf("%v", err)
		return exitUsage
	}

	backend, closeMetrics := metricsBackend(ctx, cfg.Metrics, logger)
	defer closeMetrics()

	res, err := engine.New(opt, logger, backend).Run(ctx, input)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}

	if err := render(stdout, res, cfg.Output); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUnexpected
	}
	return exitOK
}

// engineOptions translates the validated config into engine options.
func engineOptions(cfg *config.Config) (engine.Options, error) {
	order, err := classify.ParseDateOrder(cfg.Inference.DateOrder)
	if err != nil {
		return engine.Options{}, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	delim, err := parseDelimiter(cfg.Input.Delimiter)
	if err != nil {
		return engine.Options{}, err
	}
	vocab := classify.DefaultVocabulary().Extend(cfg.Inference.TrueTokens, cfg.Inference.FalseTokens)

	opt := engine.Options{
		Load: loader.Options{
			Sheet:         cfg.Input.Sheet,
			Delimiter:     delim,
			MissingTokens: cfg.Input.MissingTokens,
		},
		Profile: profile.Options{
			SampleSize:    cfg.Inference.SampleSize,
			Vocabulary:    vocab,
			DateOrder:     order,
			DateThreshold: cfg.Inference.DateThreshold,
		},
		Normalize: normalize.Options{
			Vocabulary:           vocab,
			DateOrder:            order,
			MonthMiddleThreshold: cfg.Inference.MonthMiddleThreshold,
		},
		Workers:    cfg.Workers,
		TableName:  cfg.Output.Table,
		SchemaName: cfg.Output.Schema,
	}
	if cfg.Output.Export {
		opt.Export = &export.Writer{Root: cfg.Output.Root, Sub: cfg.Output.Sub, Overwrite: cfg.Output.Overwrite}
	}
	if cfg.Storage.Load {
		opt.Store = &engine.StoreOptions{
			Config:  storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN, BatchRows: cfg.Storage.BatchRows},
			RowHash: !cfg.Storage.SkipRowHash,
		}
	}
	return opt, nil
}

// parseDelimiter accepts a single character, "tab" or a literal "\t".
func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%w: input.delimiter must be one character, got %q", config.ErrInvalid, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// metricsBackend builds the configured backend. A backend that fails to
// start is logged and replaced by Nop. The returned func flushes and stops
// it.
func metricsBackend(ctx context.Context, mc config.MetricsConfig, logger *zap.Logger) (metrics.Backend, func()) {
	switch mc.Backend {
	case "datadog":
		tags := datadog.ParseTagsCSV(mc.Tags)
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    mc.JobName,
			Tags:       tags,
			FlushEvery: mc.FlushEvery,
		})
		if err != nil {
			logger.Warn("metrics: failed to init datadog backend; using nop", zap.Error(err))
			return metrics.Nop{}, func() {}
		}
		logger.Info("metrics: datadog enabled", zap.String("job", mc.JobName), zap.Strings("tags", tags))
		return b, func() {
			if err := b.Close(); err != nil {
				logger.Warn("metrics: datadog close/flush error", zap.Error(err))
			}
		}
	default:
		logger.Debug("metrics: disabled", zap.String("backend", mc.Backend))
		return metrics.Nop{}, func() {}
	}
}

// exitCode maps a run error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, loader.ErrNotFound):
		return exitNotFound
	case errors.Is(err, loader.ErrUnsupportedFormat),
		errors.Is(err, loader.ErrSheetNotFound),
		errors.Is(err, storage.ErrUnsupportedKind),
		errors.Is(err, config.ErrInvalid):
		return exitUsage
	case errors.Is(err, export.ErrOutputExists):
		return exitOutputExist
	case errors.Is(err, loader.ErrEmptyTable), errors.Is(err, loader.ErrNoColumns):
		return exitEmptyInput
	case errors.Is(err, engine.ErrNoUsableColumns):
		return exitNoColumns
	default:
		return exitUnexpected
	}
}
