package datadog

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"lakeload/internal/metrics"

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

// newTestBackend builds a backend with all seams faked: no network, a fixed
// clock, and a ticker that never fires (flushes happen only when the test
// calls Flush or Close).
func newTestBackend(t *testing.T, sub *fakeSubmitter) *Backend {
	t.Helper()

	b, err := NewBackend(context.Background(), Options{
		JobName: "testjob",
		Tags:    []string{"env:test"},
		now:     func() time.Time { return time.Unix(1700000000, 0) },
		newTicker: func(d time.Duration) *time.Ticker {
			return &time.Ticker{C: make(chan time.Time)}
		},
		submitter: sub,
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	return b
}

func TestPairKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
	}{
		{name: "normal", a: "derive", b: "ok"},
		{name: "empty_first", a: "", b: "ok"},
		{name: "empty_second", a: "load", b: ""},
		{name: "both_empty", a: "", b: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, b := splitPairKey(pairKey(tc.a, tc.b))
			if a != tc.a || b != tc.b {
				t.Fatalf("roundtrip got=(%q,%q), want=(%q,%q)", a, b, tc.a, tc.b)
			}
		})
	}

	t.Run("split_without_separator_defaults_unknown", func(t *testing.T) {
		a, b := splitPairKey("no-sep")
		if a != "no-sep" || b != "unknown" {
			t.Fatalf("splitPairKey()=(%q,%q)", a, b)
		}
	})
}

func TestFlushEmptyDoesNotSubmit(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := sub.count(); got != 0 {
		t.Fatalf("empty flush submitted %d payloads, want 0", got)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestFlushSubmitsBufferedCounters(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.MetricFilesTotal, 1, metrics.Labels{"stage": "derive", "verdict": "ok"})
	b.IncCounter(metrics.MetricFilesTotal, 2, metrics.Labels{"stage": "derive", "verdict": "ok"})
	b.IncCounter(metrics.MetricRecordsTotal, 41, metrics.Labels{"dataset": "api_clima"})
	b.IncCounter(metrics.MetricLoadRowsTotal, 100, metrics.Labels{"table": "forecast"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	payload, ok := sub.last()
	if !ok {
		t.Fatalf("no payload submitted")
	}

	byMetric := map[string]datadogV2.MetricSeries{}
	for _, s := range payload.Series {
		byMetric[s.Metric] = s
	}

	files, ok := byMetric["lakeload.files.total"]
	if !ok {
		t.Fatalf("lakeload.files.total missing from %v", payload.Series)
	}
	if got := *files.Points[0].Value; got != 3 {
		t.Errorf("files.total = %v, want 3 (accumulated)", got)
	}
	wantTags := map[string]bool{"job:testjob": true, "env:test": true, "stage:derive": true, "verdict:ok": true}
	for _, tag := range files.Tags {
		delete(wantTags, tag)
	}
	if len(wantTags) != 0 {
		t.Errorf("files.total missing tags %v (got %v)", wantTags, files.Tags)
	}

	if s, ok := byMetric["lakeload.records.total"]; !ok || *s.Points[0].Value != 41 {
		t.Errorf("records.total = %v, want 41", s)
	}
	if s, ok := byMetric["lakeload.load.rows.total"]; !ok || *s.Points[0].Value != 100 {
		t.Errorf("load.rows.total = %v, want 100", s)
	}

	// Buffers reset after flush: a second flush has nothing to send.
	if err := b.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if got := sub.count(); got != 1 {
		t.Fatalf("second flush submitted again: %d payloads", got)
	}
}

func TestNonPositiveDeltasIgnored(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.MetricRecordsTotal, 0, metrics.Labels{"dataset": "x"})
	b.IncCounter(metrics.MetricRecordsTotal, -5, metrics.Labels{"dataset": "x"})
	b.ObserveHistogram(metrics.MetricStageDurationSeconds, -1, metrics.Labels{"stage": "load"})
	b.IncCounter("unknown_metric", 7, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := sub.count(); got != 0 {
		t.Fatalf("ignored observations still submitted %d payloads", got)
	}
}

func TestStageDurationPercentiles(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)
	defer func() { _ = b.Close() }()

	for i := 1; i <= 10; i++ {
		b.ObserveHistogram(metrics.MetricStageDurationSeconds, float64(i), metrics.Labels{"stage": "load", "status": "ok"})
	}

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	payload, ok := sub.last()
	if !ok {
		t.Fatalf("no payload submitted")
	}

	got := map[string]float64{}
	for _, s := range payload.Series {
		got[s.Metric] = *s.Points[0].Value
	}

	const prefix = "lakeload.stage.duration_seconds"
	if got[prefix+".max"] != 10 {
		t.Errorf("max = %v, want 10", got[prefix+".max"])
	}
	if got[prefix+".samples"] != 10 {
		t.Errorf("samples = %v, want 10", got[prefix+".samples"])
	}
	if p50 := got[prefix+".p50"]; p50 < 5 || p50 > 6 {
		t.Errorf("p50 = %v, want ~5-6", p50)
	}
	if p99 := got[prefix+".p99"]; p99 != 10 {
		t.Errorf("p99 = %v, want 10", p99)
	}
}

func TestFlushPropagatesSubmitError(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("intake down")}
	b := newTestBackend(t, sub)

	b.IncCounter(metrics.MetricRecordsTotal, 1, metrics.Labels{"dataset": "x"})
	if err := b.Flush(); err == nil {
		t.Fatalf("Flush swallowed submit error")
	}

	// Buffers were reset despite the error; Close flushes nothing new.
	sub.err = nil
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := sub.count(); got != 1 {
		t.Fatalf("payload count = %d, want 1 (reset-on-error)", got)
	}
}

func TestPercentileNearestRank(t *testing.T) {
	s := []float64{3, 1, 2}
	sort.Float64s(s)

	tests := []struct {
		p    float64
		want float64
	}{
		{p: 0, want: 1},
		{p: 0.5, want: 2},
		{p: 1, want: 3},
	}
	for _, tc := range tests {
		if got := percentileNearestRank(s, tc.p); got != tc.want {
			t.Errorf("percentileNearestRank(p=%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
	if got := percentileNearestRank(nil, 0.5); got != 0 {
		t.Errorf("empty samples = %v, want 0", got)
	}
}

func TestParseTagsCSV(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "env:prod", want: []string{"env:prod"}},
		{in: " env:prod , team:data ,", want: []string{"env:prod", "team:data"}},
	}
	for _, tc := range tests {
		got := ParseTagsCSV(tc.in)
		if len(got) != len(tc.want) {
			t.Errorf("ParseTagsCSV(%q) = %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("ParseTagsCSV(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}
