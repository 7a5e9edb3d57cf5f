// Package metrics is a tiny façade between the pipeline and whatever
// monitoring system a deployment uses. Pipeline code calls the package-level
// helpers; main wires a concrete Backend (or leaves the nop default).
package metrics

import (
	"sync/atomic"
	"time"
)

// Labels are free-form metric dimensions, e.g. {"stage": "derive"}.
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// nopBackend discards everything. It is the default so that pipeline code
// never has to nil-check.
type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend atomic.Value // Backend

func init() {
	backend.Store(Backend(nopBackend{}))
}

// SetBackend installs b as the process-wide backend. Call once from main
// before the pipeline starts.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	backend.Store(b)
}

func current() Backend { return backend.Load().(Backend) }

// IncCounter adds delta to the named counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample of the named histogram.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush forces the backend to submit anything buffered.
func Flush() error { return current().Flush() }

// Metric names emitted by the pipeline. Backends switch on these.
const (
	MetricFilesTotal           = "lakeload_files_total"
	MetricRecordsTotal         = "lakeload_records_total"
	MetricLoadRowsTotal        = "lakeload_load_rows_total"
	MetricStageDurationSeconds = "lakeload_stage_duration_seconds"
)

// FileProcessed counts one input file that reached a terminal verdict for
// the given stage ("derive" or "load").
func FileProcessed(stage, verdict string) {
	IncCounter(MetricFilesTotal, 1, Labels{"stage": stage, "verdict": verdict})
}

// RecordsEmitted counts records produced for a dataset during expansion.
func RecordsEmitted(dataset string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(MetricRecordsTotal, float64(n), Labels{"dataset": dataset})
}

// RowsLoaded counts rows a warehouse backend reported as loaded.
func RowsLoaded(table string, n int64) {
	if n <= 0 {
		return
	}
	IncCounter(MetricLoadRowsTotal, float64(n), Labels{"table": table})
}

// ObserveStage records the wall time of one stage invocation.
func ObserveStage(stage, status string, d time.Duration) {
	ObserveHistogram(MetricStageDurationSeconds, d.Seconds(), Labels{"stage": stage, "status": status})
}
