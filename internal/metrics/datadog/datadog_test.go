package datadog

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"tabnorm/internal/metrics"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

// quietOptions returns options whose ticker never fires during a test.
func quietOptions(fs *fakeSubmitter) Options {
	return Options{
		JobName:    "job1",
		FlushEvery: 24 * time.Hour,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(1000, 0) },
		newTicker:  func(time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	}
}

func newQuiet(t *testing.T, fs *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), quietOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// TestResolveEnvTag verifies ENV beats DD_ENV and blanks fall back to unknown.
func TestResolveEnvTag(t *testing.T) {
	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ENV", tc.env)
			t.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestWrapInitErr(t *testing.T) {
	if got := wrapInitErr(nil); got != nil {
		t.Fatalf("wrapInitErr(nil)=%v, want nil", got)
	}
	in := errors.New("boom")
	got := wrapInitErr(in)
	if got == nil || !strings.Contains(got.Error(), "datadog metrics init:") || !errors.Is(got, in) {
		t.Fatalf("wrapInitErr(err)=%v", got)
	}
}

// TestNewBackend_InitErrors covers the two init failures.
func TestNewBackend_InitErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewBackend(ctx, quietOptions(&fakeSubmitter{})); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled parent: err=%v", err)
	}

	opts := quietOptions(&fakeSubmitter{})
	opts.Tags = []string{"a:b,c:d"}
	if _, err := NewBackend(context.Background(), opts); err == nil || !strings.Contains(err.Error(), "invalid tag") {
		t.Fatalf("bad tag: err=%v", err)
	}
}

// TestNewBackend_Defaults verifies the job tag and flush interval defaults.
func TestNewBackend_Defaults(t *testing.T) {
	opts := quietOptions(&fakeSubmitter{})
	opts.JobName = ""
	opts.FlushEvery = 0
	opts.Tags = []string{"team:data"}

	b, err := NewBackend(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	if !contains(b.baseTags, "job:tabnorm") || !contains(b.baseTags, "team:data") {
		t.Fatalf("baseTags=%v", b.baseTags)
	}
	if b.flushEvery != DefaultFlushEvery {
		t.Fatalf("flushEvery=%s, want %s", b.flushEvery, DefaultFlushEvery)
	}
}

// TestKeyFor verifies tag order and the "unknown" default.
func TestKeyFor(t *testing.T) {
	def := counterDefs[metrics.StepTotal]

	k := keyFor(def, metrics.Labels{"status": "ok", "step": "load", "extra": "x"})
	if got := k.tagList(); !reflect.DeepEqual(got, []string{"step:load", "status:ok"}) {
		t.Fatalf("tags=%v", got)
	}
	k = keyFor(def, nil)
	if got := k.tagList(); !reflect.DeepEqual(got, []string{"step:unknown", "status:unknown"}) {
		t.Fatalf("tags=%v", got)
	}
}

func TestWithTags(t *testing.T) {
	base := []string{"env:test", "job:tabnorm"}
	got := withTags(base, "step:load")
	if !reflect.DeepEqual(got, []string{"env:test", "job:tabnorm", "step:load"}) {
		t.Fatalf("withTags()=%v", got)
	}
	got[0] = "env:mutated"
	if base[0] == "env:mutated" {
		t.Fatalf("withTags output aliases base")
	}
}

func TestPercentileNearestRank(t *testing.T) {
	tests := []struct {
		name string
		s    []float64
		p    float64
		want float64
	}{
		{name: "empty", s: nil, p: 0.50, want: 0},
		{name: "single", s: []float64{7}, p: 0.95, want: 7},
		{name: "p_le_0", s: []float64{1, 2, 3}, p: -1, want: 1},
		{name: "p_ge_1", s: []float64{1, 2, 3}, p: 2, want: 3},
		{name: "median", s: []float64{1, 2, 3, 4, 5}, p: 0.50, want: 3},
		{name: "p90_small_n", s: []float64{1, 2, 3, 4, 5}, p: 0.90, want: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentileNearestRank(tc.s, tc.p); got != tc.want {
				t.Fatalf("percentileNearestRank(%v,%v)=%v, want %v", tc.s, tc.p, got, tc.want)
			}
		})
	}
}

// TestAddPercentiles verifies the six gauges and that input is not sorted in place.
func TestAddPercentiles(t *testing.T) {
	orig := []float64{5, 1, 3, 2, 4}
	in := append([]float64(nil), orig...)

	var series []datadogV2.MetricSeries
	addPercentiles(&series, []string{"step:load"}, "tabnorm.step.duration_seconds", in, 999)

	if len(series) != 6 {
		t.Fatalf("series.len=%d, want 6", len(series))
	}
	if !reflect.DeepEqual(in, orig) {
		t.Fatalf("samples mutated: %v", in)
	}
	last := series[5]
	if last.Metric != "tabnorm.step.duration_seconds.samples" || *last.Points[0].Value != 5 {
		t.Fatalf("samples gauge=%+v", last)
	}
	if *series[4].Points[0].Value != 5 || *series[4].Type != datadogV2.METRICINTAKETYPE_GAUGE {
		t.Fatalf("max gauge=%+v", series[4])
	}
}

// TestFlush_SubmitsAndResets verifies payload contents and buffer reset.
func TestFlush_SubmitsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newQuiet(t, fs)

	b.IncCounter(metrics.StepTotal, 2, metrics.Labels{"step": "load", "status": "ok"})
	b.IncCounter(metrics.RowsTotal, 3, metrics.Labels{"kind": "read"})
	b.IncCounter(metrics.ColumnsTotal, 1, metrics.Labels{"type": "date"})
	b.IncCounter(metrics.CoercedMissingTotal, 4, metrics.Labels{"type": "integer"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.5, metrics.Labels{"step": "load", "status": "ok"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
	if len(b.counters) != 0 || len(b.samples) != 0 {
		t.Fatalf("buffers not reset after Flush")
	}

	payload, _ := fs.last()
	byName := map[string]datadogV2.MetricSeries{}
	for _, s := range payload.Series {
		byName[s.Metric] = s
	}
	for _, w := range []string{
		"tabnorm.step.total",
		"tabnorm.rows.total",
		"tabnorm.columns.total",
		"tabnorm.values.coerced_missing",
		"tabnorm.step.duration_seconds.p50",
		"tabnorm.step.duration_seconds.samples",
	} {
		if _, ok := byName[w]; !ok {
			t.Fatalf("payload missing %q", w)
		}
	}
	rows := byName["tabnorm.rows.total"]
	if !contains(rows.Tags, "kind:read") || !contains(rows.Tags, "job:job1") || *rows.Points[0].Value != 3 {
		t.Fatalf("rows series=%+v", rows)
	}
	if *rows.Points[0].Timestamp != 1000 {
		t.Fatalf("timestamp=%d", *rows.Points[0].Timestamp)
	}
}

// TestFlush_Edges covers the empty window, dropped inputs and submit errors.
func TestFlush_Edges(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newQuiet(t, fs)

	if err := b.Flush(); err != nil || fs.count() != 0 {
		t.Fatalf("empty flush: err=%v count=%d", err, fs.count())
	}

	b.IncCounter(metrics.RowsTotal, 0, metrics.Labels{"kind": "read"})
	b.IncCounter("unknown_total", 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, -1, nil)
	b.ObserveHistogram("unknown_seconds", 1, nil)
	if err := b.Flush(); err != nil || fs.count() != 0 {
		t.Fatalf("dropped inputs submitted: err=%v count=%d", err, fs.count())
	}

	fs.err = errors.New("intake down")
	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "loaded"})
	if err := b.Flush(); err == nil || !strings.Contains(err.Error(), "intake down") {
		t.Fatalf("Flush() err=%v", err)
	}
	if len(b.counters) != 0 {
		t.Fatalf("buffers kept after failed submit")
	}
}

// TestLoopAndClose verifies periodic flushing and the final flush on Close.
func TestLoopAndClose(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		FlushEvery: 5 * time.Millisecond,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(2000, 0) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "read"})

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) && fs.count() < 1 {
		time.Sleep(2 * time.Millisecond)
	}
	if fs.count() < 1 {
		_ = b.Close()
		t.Fatalf("expected a background flush; got %d", fs.count())
	}

	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "read"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
	if fs.count() < 2 {
		t.Fatalf("expected final flush on Close; got %d", fs.count())
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close() err=%v", err)
	}
}

func TestBackend_ConcurrentAccess(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newQuiet(t, fs)

	workers := runtime.GOMAXPROCS(0) * 4
	iters := 2000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "normalize", "status": "ok"})
				b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "loaded"})
				b.ObserveHistogram(metrics.StepDurationSeconds, 0.01, metrics.Labels{"step": "normalize", "status": "ok"})
			}
		}()
	}
	wg.Wait()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	payload, _ := fs.last()
	for _, s := range payload.Series {
		if s.Metric == "tabnorm.rows.total" && *s.Points[0].Value != float64(workers*iters) {
			t.Fatalf("rows=%v, want %d", *s.Points[0].Value, workers*iters)
		}
	}
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty_returns_nil", in: "", want: nil},
		{name: "trims_and_skips_empty_segments", in: " env:prod , ,team:data,  ", want: []string{"env:prod", "team:data"}},
		{name: "single_tag", in: "team:data", want: []string{"team:data"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseTagsCSV(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
