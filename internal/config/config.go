// Package config loads tabnorm settings from an optional YAML file with
// TABNORM_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TABNORM_"

// Preview bounds for Output.PreviewRows.
const (
	MinPreviewRows = 0
	MaxPreviewRows = 50
)

// ErrInvalid wraps every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full tabnorm configuration. Environment variables override
// YAML values; fields left unset in both get their env-default.
type Config struct {
	Input     InputConfig     `yaml:"input"`
	Inference InferenceConfig `yaml:"inference"`
	Output    OutputConfig    `yaml:"output"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`

	// Workers bounds the per-column parallel map. 0 means GOMAXPROCS.
	Workers int `yaml:"workers" env:"TABNORM_WORKERS" env-default:"0"`
}

// InputConfig controls loading.
type InputConfig struct {
	// Sheet selects a workbook sheet by name or 0-based index.
	Sheet string `yaml:"sheet" env:"TABNORM_SHEET"`
	// Delimiter forces the CSV delimiter; empty means sniff.
	Delimiter string `yaml:"delimiter" env:"TABNORM_DELIMITER"`
	// MissingTokens replaces the default NA token set when non-empty.
	MissingTokens []string `yaml:"missing_tokens,omitempty" env:"TABNORM_MISSING_TOKENS" env-separator:"|"`
}

// InferenceConfig controls profiling and normalization.
type InferenceConfig struct {
	SampleSize           int      `yaml:"sample_size" env:"TABNORM_SAMPLE_SIZE" env-default:"3"`
	DateOrder            string   `yaml:"date_order" env:"TABNORM_DATE_ORDER" env-default:"mdy"`
	DateThreshold        float64  `yaml:"date_threshold" env:"TABNORM_DATE_THRESHOLD" env-default:"0.8"`
	MonthMiddleThreshold float64  `yaml:"month_middle_threshold" env:"TABNORM_MONTH_MIDDLE_THRESHOLD" env-default:"0.8"`
	TrueTokens           []string `yaml:"true_tokens,omitempty" env:"TABNORM_TRUE_TOKENS" env-separator:","`
	FalseTokens          []string `yaml:"false_tokens,omitempty" env:"TABNORM_FALSE_TOKENS" env-separator:","`
}

// OutputConfig controls schema naming, console output and the run folder.
type OutputConfig struct {
	Table       string `yaml:"table" env:"TABNORM_TABLE" env-default:"normalized_data"`
	Schema      string `yaml:"schema" env:"TABNORM_SCHEMA"`
	PreviewRows int    `yaml:"preview_rows" env:"TABNORM_PREVIEW_ROWS" env-default:"5"`
	ShowSchema  bool   `yaml:"show_schema" env:"TABNORM_SHOW_SCHEMA"`
	Report      bool   `yaml:"report" env:"TABNORM_REPORT"`

	Export    bool   `yaml:"export" env:"TABNORM_EXPORT"`
	Root      string `yaml:"root" env:"TABNORM_OUTPUT_ROOT" env-default:"output"`
	Sub       string `yaml:"sub" env:"TABNORM_OUT"`
	Overwrite bool   `yaml:"overwrite" env:"TABNORM_OVERWRITE"`
}

// StorageConfig controls the optional database load.
type StorageConfig struct {
	Load      bool   `yaml:"load" env:"TABNORM_LOAD"`
	Kind      string `yaml:"kind" env:"TABNORM_BACKEND" env-default:"sqlite"`
	DSN       string `yaml:"dsn" env:"TABNORM_DSN"`
	BatchRows int    `yaml:"batch_rows" env:"TABNORM_BATCH_ROWS" env-default:"500"`
	// SkipRowHash disables the row_hash dedupe column.
	SkipRowHash bool `yaml:"skip_row_hash" env:"TABNORM_SKIP_ROW_HASH"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Backend    string        `yaml:"backend" env:"TABNORM_METRICS_BACKEND" env-default:"none"`
	JobName    string        `yaml:"job_name" env:"TABNORM_METRICS_JOB" env-default:"tabnorm"`
	Tags       string        `yaml:"tags" env:"TABNORM_METRICS_TAGS"`
	FlushEvery time.Duration `yaml:"flush_every" env:"TABNORM_METRICS_FLUSH_EVERY" env-default:"60s"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"TABNORM_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"TABNORM_LOG_FORMAT" env-default:"console"`
}

// Load reads path (when non-empty) then applies environment overrides and
// defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read config from env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	return &Config{
		Inference: InferenceConfig{SampleSize: 3, DateOrder: "mdy", DateThreshold: 0.8, MonthMiddleThreshold: 0.8},
		Output:    OutputConfig{Table: "normalized_data", PreviewRows: 5, Root: "output"},
		Storage:   StorageConfig{Kind: "sqlite", BatchRows: 500},
		Metrics:   MetricsConfig{Backend: "none", JobName: "tabnorm", FlushEvery: 60 * time.Second},
		Log:       LogConfig{Level: "info", Format: "console"},
	}
}

func (c *Config) normalize() {
	c.Inference.DateOrder = strings.ToLower(strings.TrimSpace(c.Inference.DateOrder))
	c.Storage.Kind = strings.ToLower(strings.TrimSpace(c.Storage.Kind))
	c.Metrics.Backend = strings.ToLower(strings.TrimSpace(c.Metrics.Backend))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate checks enum fields and numeric ranges. Storage kinds are checked
// against the registry when the backend is opened, not here.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, a ...any) { problems = append(problems, fmt.Sprintf(format, a...)) }

	switch c.Inference.DateOrder {
	case "mdy", "dmy":
	default:
		add("inference.date_order %q: want mdy or dmy", c.Inference.DateOrder)
	}
	if c.Inference.SampleSize < 0 {
		add("inference.sample_size %d: must be >= 0", c.Inference.SampleSize)
	}
	for _, th := range []struct {
		name string
		v    float64
	}{
		{"inference.date_threshold", c.Inference.DateThreshold},
		{"inference.month_middle_threshold", c.Inference.MonthMiddleThreshold},
	} {
		if th.v <= 0 || th.v > 1 {
			add("%s %v: want (0, 1]", th.name, th.v)
		}
	}
	if n := c.Output.PreviewRows; n < MinPreviewRows || n > MaxPreviewRows {
		add("output.preview_rows %d: want %d..%d", n, MinPreviewRows, MaxPreviewRows)
	}
	if c.Output.Export && strings.TrimSpace(c.Output.Root) == "" {
		add("output.root: required when exporting")
	}
	if c.Storage.BatchRows <= 0 {
		add("storage.batch_rows %d: must be > 0", c.Storage.BatchRows)
	}
	if c.Storage.Load && strings.TrimSpace(c.Storage.DSN) == "" {
		add("storage.dsn: required when loading")
	}
	switch c.Metrics.Backend {
	case "none", "", "datadog":
	default:
		add("metrics.backend %q: want none or datadog", c.Metrics.Backend)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		add("log.level %q: want debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		add("log.format %q: want console or json", c.Log.Format)
	}
	if c.Workers < 0 {
		add("workers %d: must be >= 0", c.Workers)
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}

// Dump writes c as YAML. The DSN is written as given; callers redact it
// first when the output is shared.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
