// Package metrics is the backend-neutral metrics surface used by the engine.
//
// The engine only talks to Backend. Concrete backends (Datadog) live in
// subpackages; Nop is used when metrics are disabled.
package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Metric names emitted by the engine.
const (
	// StepTotal counts finished pipeline steps. Labels: step, status.
	StepTotal = "tabnorm_step_total"
	// StepDurationSeconds observes step wall time. Labels: step, status.
	StepDurationSeconds = "tabnorm_step_duration_seconds"
	// RowsTotal counts rows. Labels: kind (read|loaded).
	RowsTotal = "tabnorm_rows_total"
	// ColumnsTotal counts normalized columns. Labels: type.
	ColumnsTotal = "tabnorm_columns_total"
	// CoercedMissingTotal counts present raw values that became missing
	// during normalization. Labels: type.
	CoercedMissingTotal = "tabnorm_coerced_missing_total"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives counter increments and histogram observations. It must be
// safe for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}

// Or returns b, or Nop when b is nil.
func Or(b Backend) Backend {
	if b == nil {
		return Nop{}
	}
	return b
}

// Status is the status label for err.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveStep records one StepTotal increment and one StepDurationSeconds
// observation for a step that started at start.
func ObserveStep(b Backend, step string, start time.Time, err error) {
	l := Labels{"step": step, "status": Status(err)}
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDurationSeconds, time.Since(start).Seconds(), l)
}

// Recorder is an in-memory Backend. Tests and the run report use it to read
// back what was emitted.
type Recorder struct {
	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{counters: map[string]float64{}, samples: map[string][]float64{}}
}

func (r *Recorder) IncCounter(name string, delta float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[Key(name, labels)] += delta
}

func (r *Recorder) ObserveHistogram(name string, value float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := Key(name, labels)
	r.samples[k] = append(r.samples[k], value)
}

// Counter returns the accumulated value for name and labels.
func (r *Recorder) Counter(name string, labels Labels) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[Key(name, labels)]
}

// Samples returns a copy of the observations for name and labels.
func (r *Recorder) Samples(name string, labels Labels) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.samples[Key(name, labels)]...)
}

// Key renders name{k=v,...} with label keys sorted.
func Key(name string, labels Labels) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

// Fanout sends every call to all backends.
type Fanout []Backend

func (f Fanout) IncCounter(name string, delta float64, labels Labels) {
	for _, b := range f {
		b.IncCounter(name, delta, labels)
	}
}

func (f Fanout) ObserveHistogram(name string, value float64, labels Labels) {
	for _, b := range f {
		b.ObserveHistogram(name, value, labels)
	}
}

var (
	_ Backend = Nop{}
	_ Backend = (*Recorder)(nil)
	_ Backend = Fanout(nil)
)
