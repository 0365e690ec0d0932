// Package profile implements the column type inferrer.
//
// For every raw column it applies the value classifiers in strict priority
// order (boolean, integer, float, date, string) and records the descriptive
// statistics shown in reports: missing percentage, distinct count and a few
// raw samples.
//
// Inference is best-effort and never fails: every column ends up with exactly
// one semantic type, string being the universal fallback.
package profile

import (
	"math"

	"tabnorm/internal/classify"
	"tabnorm/internal/table"
)

// DefaultSampleSize is the number of raw samples kept per column.
const DefaultSampleSize = 3

// ColumnProfile describes one raw column. It is created once per load and
// read-only afterwards.
type ColumnProfile struct {
	Name        string             `json:"name"`
	Type        table.SemanticType `json:"inferred_type"`
	MissingPct  float64            `json:"missing_pct"`
	UniqueCount int                `json:"unique_count"`
	Samples     []string           `json:"samples"`
}

// Options control inference. The zero value is usable: it selects the default
// vocabulary, month-first dates, a 0.8 date threshold and three samples.
type Options struct {
	// SampleSize is how many raw samples to keep. <= 0 means DefaultSampleSize.
	SampleSize int

	// Vocabulary is the truth vocabulary. Empty means classify.DefaultVocabulary().
	Vocabulary classify.Vocabulary

	// DateOrder is the tie-breaker for ambiguous numeric dates.
	DateOrder classify.DateOrder

	// DateThreshold is the share of parseable values required for a date
	// column. <= 0 means classify.DefaultDateThreshold.
	DateThreshold float64
}

func (o Options) withDefaults() Options {
	if o.SampleSize <= 0 {
		o.SampleSize = DefaultSampleSize
	}
	if o.Vocabulary.Empty() {
		o.Vocabulary = classify.DefaultVocabulary()
	}
	if o.DateOrder == "" {
		o.DateOrder = classify.MDY
	}
	if o.DateThreshold <= 0 {
		o.DateThreshold = classify.DefaultDateThreshold
	}
	return o
}

// Infer returns the first semantic type whose classifier accepts all of
// values, trying Boolean, Integer, Float, Date, then String.
//
// Order matters: integer syntax is a subset of float syntax, so narrower types
// are tried first. The vocabulary overlaps numerically ("1"/"0"), so a column
// only counts as boolean when at least one value is a non-numeric truth token;
// ["1","0","1"] is an integer column.
func Infer(values []string, opt Options) table.SemanticType {
	opt = opt.withDefaults()

	switch {
	case classify.IsBoolean(values, opt.Vocabulary) && !numericOnly(values):
		return table.Boolean
	case classify.IsInteger(values):
		return table.Integer
	case classify.IsFloat(values):
		return table.Float
	case classify.IsDate(values, opt.DateOrder, opt.DateThreshold):
		return table.Date
	default:
		return table.String
	}
}

// Profile computes the profile of a single column.
func Profile(col table.RawColumn, opt Options) ColumnProfile {
	opt = opt.withDefaults()

	p := ColumnProfile{
		Name:    col.Name,
		Type:    table.String,
		Samples: []string{},
	}
	total := len(col.Values)
	if total == 0 {
		return p
	}

	present := col.Present()
	missing := total - len(present)
	p.MissingPct = round2(float64(missing) / float64(total) * 100)

	distinct := make(map[string]struct{}, len(present))
	for _, v := range present {
		distinct[v] = struct{}{}
	}
	p.UniqueCount = len(distinct)

	for _, v := range present {
		if len(p.Samples) >= opt.SampleSize {
			break
		}
		p.Samples = append(p.Samples, v)
	}

	p.Type = Infer(present, opt)
	return p
}

// ProfileTable profiles every column, preserving column order.
func ProfileTable(t table.RawTable, opt Options) []ColumnProfile {
	opt = opt.withDefaults()
	out := make([]ColumnProfile, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = Profile(c, opt)
	}
	return out
}

// numericOnly reports whether every value is an integer literal.
func numericOnly(values []string) bool {
	for _, v := range values {
		if _, ok := classify.ParseInt(v); !ok {
			return false
		}
	}
	return true
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
