// Package engine runs one normalization job end to end: load, profile,
// normalize, emit schemas, then optionally export and load into a database.
//
// Profiling and normalization fan out per column with a bounded errgroup.
// Results are written into pre-sized slices by index, so column order and
// row order are exactly those of the input.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tabnorm/internal/export"
	"tabnorm/internal/loader"
	"tabnorm/internal/logging"
	"tabnorm/internal/metrics"
	"tabnorm/internal/normalize"
	"tabnorm/internal/profile"
	"tabnorm/internal/rowhash"
	"tabnorm/internal/schema"
	"tabnorm/internal/storage"
	"tabnorm/internal/table"
)

// ErrNoUsableColumns is returned when normalization leaves no column with a
// single present value.
var ErrNoUsableColumns = errors.New("no usable columns after normalization")

// Pipeline step names used in logs and metrics.
const (
	StepLoad      = "load"
	StepProfile   = "profile"
	StepNormalize = "normalize"
	StepSchema    = "schema"
	StepExport    = "export"
	StepStore     = "store"
)

// Options configures a run.
type Options struct {
	Load      loader.Options
	Profile   profile.Options
	Normalize normalize.Options

	// Workers bounds the per-column fan-out. <= 0 means GOMAXPROCS.
	Workers int

	// TableName and SchemaName name the DDL target; Title is the JSON Schema
	// title and defaults to TableName.
	TableName  string
	SchemaName string
	Title      string

	// Export, when non-nil, writes the run folder.
	Export *export.Writer
	// Store, when non-nil, loads the typed table into a database.
	Store *StoreOptions

	// Now stamps the run. Nil means time.Now.
	Now func() time.Time
}

// StoreOptions configures the database load.
type StoreOptions struct {
	Config storage.Config
	// RowHash adds a unique row_hash column so reloading a file inserts
	// nothing new.
	RowHash bool
}

// Result is everything a run produced.
type Result struct {
	RunID   string
	Source  string
	Started time.Time

	Raw      table.RawTable
	Profiles []profile.ColumnProfile
	Table    table.TypedTable
	Stats    []normalize.Stats

	// DuplicateRows counts cleaned rows identical to an earlier row. With a
	// row hash they are stored once.
	DuplicateRows int

	CreateSQL  string
	JSONSchema schema.JSONSchema

	// Paths is set when the run was exported.
	Paths *export.Paths
	// Inserted counts rows the database accepted; zero when not stored.
	Inserted int64
}

// Report is the export report for the run, whether or not it was exported.
func (r *Result) Report() export.Report {
	return export.NewReport(r.exportRun())
}

func (r *Result) exportRun() export.Run {
	return export.Run{
		Input:      r.Source,
		Date:       r.Started,
		RunID:      r.RunID,
		Table:      r.Table,
		Profiles:   r.Profiles,
		Stats:      r.Stats,

		DuplicateRows: r.DuplicateRows,
		CreateSQL:  r.CreateSQL,
		JSONSchema: r.JSONSchema,
	}
}

// Engine executes runs. It is safe to reuse across runs.
type Engine struct {
	opt     Options
	log     *zap.Logger
	metrics metrics.Backend
}

// New returns an Engine. log and m may be nil.
func New(opt Options, log *zap.Logger, m metrics.Backend) *Engine {
	if opt.Workers <= 0 {
		opt.Workers = runtime.GOMAXPROCS(0)
	}
	if opt.TableName == "" {
		opt.TableName = schema.DefaultTableName
	}
	if opt.Title == "" {
		opt.Title = opt.TableName
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Engine{opt: opt, log: logging.OrNop(log), metrics: metrics.Or(m)}
}

// Run processes input, a file path or http(s) URL.
func (e *Engine) Run(ctx context.Context, input string) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Source: input, Started: e.opt.Now()}
	log := e.log.With(zap.String("run_id", res.RunID), zap.String("source", input))
	log.Info("run: start", zap.Int("workers", e.opt.Workers))

	steps := []struct {
		name string
		fn   func(context.Context, *Result, *zap.Logger) error
		skip bool
	}{
		{StepLoad, e.load, false},
		{StepProfile, e.profile, false},
		{StepNormalize, e.normalize, false},
		{StepSchema, e.schema, false},
		{StepExport, e.export, e.opt.Export == nil},
		{StepStore, e.store, e.opt.Store == nil},
	}
	for _, s := range steps {
		if s.skip {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		start := time.Now()
		err := s.fn(ctx, res, log)
		metrics.ObserveStep(e.metrics, s.name, start, err)
		if err != nil {
			log.Error("run: step failed", zap.String("step", s.name), zap.Error(err))
			return res, fmt.Errorf("%s: %w", s.name, err)
		}
		log.Debug("run: step done", zap.String("step", s.name), zap.Duration("took", time.Since(start)))
	}

	log.Info("run: done",
		zap.Int("rows", res.Table.Rows()),
		zap.Int("columns", len(res.Table.Columns)),
		zap.Int64("inserted", res.Inserted),
		zap.Duration("took", time.Since(res.Started)),
	)
	return res, nil
}

func (e *Engine) load(ctx context.Context, res *Result, log *zap.Logger) error {
	raw, err := loader.Load(ctx, res.Source, e.opt.Load)
	if err != nil {
		return err
	}
	res.Raw = raw
	e.metrics.IncCounter(metrics.RowsTotal, float64(raw.Rows()), metrics.Labels{"kind": "read"})
	log.Info("load: table read", zap.Int("rows", raw.Rows()), zap.Int("columns", len(raw.Columns)))
	return nil
}

func (e *Engine) profile(ctx context.Context, res *Result, log *zap.Logger) error {
	cols := res.Raw.Columns
	profiles := make([]profile.ColumnProfile, len(cols))

	err := e.forEachColumn(ctx, len(cols), func(i int) error {
		profiles[i] = profile.Profile(cols[i], e.opt.Profile)
		return nil
	})
	if err != nil {
		return err
	}
	res.Profiles = profiles

	for _, p := range profiles {
		log.Debug("profile: column",
			zap.String("column", p.Name),
			zap.Stringer("type", p.Type),
			zap.Float64("missing_pct", p.MissingPct),
			zap.Int("unique", p.UniqueCount),
		)
	}
	return nil
}

func (e *Engine) normalize(ctx context.Context, res *Result, log *zap.Logger) error {
	raw := res.Raw
	if err := normalize.CheckProfiles(raw, res.Profiles); err != nil {
		return err
	}
	names := normalize.Names(raw.Names())
	cols := make([]table.TypedColumn, len(raw.Columns))
	stats := make([]normalize.Stats, len(raw.Columns))

	err := e.forEachColumn(ctx, len(cols), func(i int) error {
		cols[i], stats[i] = normalize.ColumnWithStats(raw.Columns[i], res.Profiles[i], e.opt.Normalize)
		cols[i].Name = names[i]
		return nil
	})
	if err != nil {
		return err
	}

	tt, err := table.NewTypedTable(cols)
	if err != nil {
		return err
	}
	if !hasUsableColumn(tt) {
		return ErrNoUsableColumns
	}
	res.Table, res.Stats = tt, stats
	res.DuplicateRows = rowhash.New(tt.Names()).Duplicates(tableRows(tt))
	if res.DuplicateRows > 0 {
		log.Info("normalize: repeated rows", zap.Int("duplicates", res.DuplicateRows))
	}

	for i, c := range tt.Columns {
		l := metrics.Labels{"type": c.Type.String()}
		e.metrics.IncCounter(metrics.ColumnsTotal, 1, l)
		e.metrics.IncCounter(metrics.CoercedMissingTotal, float64(stats[i].CoercedMissing), l)
		if stats[i].CoercedMissing > 0 || stats[i].Rescued {
			log.Info("normalize: column adjusted",
				zap.String("column", c.Name),
				zap.Stringer("type", c.Type),
				zap.Int("coerced_missing", stats[i].CoercedMissing),
				zap.Bool("rescued_as_date", stats[i].Rescued),
			)
		}
	}
	return nil
}

func (e *Engine) schema(_ context.Context, res *Result, _ *zap.Logger) error {
	res.CreateSQL = schema.CreateTableSQL(res.Table, e.opt.TableName, e.opt.SchemaName)
	res.JSONSchema = schema.JSONSchemaFor(res.Table, e.opt.Title)
	return nil
}

func (e *Engine) export(_ context.Context, res *Result, _ *zap.Logger) error {
	w := *e.opt.Export
	if w.Logger == nil {
		w.Logger = e.log
	}
	p, err := w.Write(res.exportRun())
	if err != nil {
		return err
	}
	res.Paths = &p
	return nil
}

func (e *Engine) store(ctx context.Context, res *Result, log *zap.Logger) error {
	so := e.opt.Store
	dialect, err := schema.ParseDialect(so.Config.Kind)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnsupportedKind, err)
	}

	name := schema.SafeIdentifier(e.opt.TableName)
	if s := schema.SafeIdentifier(e.opt.SchemaName); s != "" {
		name = s + "." + name
	}
	spec, err := schema.TableSpecFor(res.Table, name, dialect, so.RowHash)
	if err != nil {
		return err
	}

	log = log.With(zap.String("backend", so.Config.Kind), zap.String("dsn", logging.RedactDSN(so.Config.DSN)), zap.String("table", spec.Name))
	repo, err := storage.New(ctx, so.Config)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.EnsureTable(ctx, spec); err != nil {
		return err
	}

	rows := tableRows(res.Table)
	if so.RowHash {
		rows = rowhash.New(res.Table.Names()).Append(rows)
	}

	n, err := repo.InsertRows(ctx, spec.Name, spec.ColumnNames(), rows, spec.UniqueColumns())
	if err != nil {
		return err
	}
	res.Inserted = n
	e.metrics.IncCounter(metrics.RowsTotal, float64(n), metrics.Labels{"kind": "loaded"})
	log.Info("store: rows inserted", zap.Int64("inserted", n), zap.Int("offered", len(rows)), zap.Int("duplicates", res.DuplicateRows))
	return nil
}

// forEachColumn runs fn(i) for i in [0,n) with at most Workers goroutines.
func (e *Engine) forEachColumn(ctx context.Context, n int, fn func(i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opt.Workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func tableRows(t table.TypedTable) [][]any {
	rows := make([][]any, t.Rows())
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

func hasUsableColumn(t table.TypedTable) bool {
	for _, c := range t.Columns {
		if c.MissingCount() < c.Len() {
			return true
		}
	}
	return false
}
