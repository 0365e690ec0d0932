package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string

	// BatchRows caps how many rows go into one INSERT statement. Backends
	// lower it further when their bind-parameter limit requires. <= 0 means
	// DefaultBatchRows.
	BatchRows int
}

// DefaultBatchRows is the row cap per INSERT when Config.BatchRows is unset.
const DefaultBatchRows = 500

// Repository loads one typed table into a database.
//
// Each backend implements these semantics in its own idiomatic way
// (Postgres ON CONFLICT, SQLite OR IGNORE, SQL Server NOT EXISTS, MySQL
// INSERT IGNORE).
type Repository interface {
	// Close releases any backend resources. Call once.
	Close()

	// EnsureTable creates the table (and its schema, where the backend has
	// schemas) if it does not exist yet. It is idempotent.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// InsertRows inserts rows aligned with columns. When dedupeColumns is
	// non-empty, rows whose dedupe key already exists are skipped, which makes
	// reloading the same file idempotent. It returns the number of rows the
	// database reports as inserted.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupeColumns []string) (int64, error)
}

// Factory opens a repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("%w: storage.kind=%s (registered: %v)", ErrUnsupportedKind, cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
