// Package pipeline drives a batch run: enumerate raw inputs, derive flat
// artifacts for each, then gate and load the artifacts into the warehouse.
//
// The run is single-threaded and split into two phases with no resource
// held across the boundary: derive-all, then load-all. A failure on one
// file is recorded and the batch continues; the only fatal condition is
// being unable to enumerate the input directory at all.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lakeload/internal/classify"
	"lakeload/internal/config"
	"lakeload/internal/expand"
	"lakeload/internal/loadgate"
	"lakeload/internal/metrics"
	"lakeload/internal/objectstore"
	parsecsv "lakeload/internal/parser/csv"
	parsejson "lakeload/internal/parser/json"
	"lakeload/internal/warehouse"
	"lakeload/pkg/records"
)

// Logger is the minimal logging interface used by the engine.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Engine runs the derive and load phases.
type Engine struct {
	// RawDir holds the raw input files; ProcessedDir receives derived
	// artifacts and is the Load Gate's artifact set.
	RawDir       string
	ProcessedDir string

	// Loader is the warehouse boundary. When nil the load phase is skipped
	// (derive-only run).
	Loader warehouse.Loader

	// RawStore, when non-nil, backfills RawDir before derivation if the
	// directory is empty. ProcessedStore, when non-nil, receives a copy of
	// every accepted artifact after a successful load.
	RawStore       objectstore.Store
	ProcessedStore objectstore.Store

	Logger Logger

	// Parser carries the run-level reader knobs (delimiter override,
	// sample size) from the pipeline config.
	Parser config.Options

	// Now is a seam for deterministic timestamps in tests.
	Now func() time.Time
}

// FileOutcome is the terminal status of one input file or artifact.
type FileOutcome struct {
	Name    string
	Status  string
	Reason  string
	Records int
	Table   string
	Rows    int64
}

// Summary aggregates a run.
type Summary struct {
	Derived  []FileOutcome
	Loaded   []FileOutcome
	Skipped  []FileOutcome
	Failed   []FileOutcome
	Rejected []FileOutcome
}

func (s *Summary) String() string {
	return fmt.Sprintf("derived=%d loaded=%d skipped=%d rejected=%d failed=%d",
		len(s.Derived), len(s.Loaded), len(s.Skipped), len(s.Rejected), len(s.Failed))
}

func (e *Engine) logf(format string, v ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, v...)
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// sampleSize is the byte cap for classification and gate probes, overridable
// through the parser options.
func (e *Engine) sampleSize() int {
	return e.Parser.Int("sample_size", classify.SampleSize())
}

// Run executes one batch. The returned Summary is always non-nil; when the
// run aborts on the fatal enumerate error it is empty.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{}

	if err := os.MkdirAll(e.ProcessedDir, 0o755); err != nil {
		return sum, fmt.Errorf("prepare processed dir: %w", err)
	}
	if err := e.syncRaw(ctx); err != nil {
		return sum, err
	}

	names, err := enumerate(e.RawDir)
	if err != nil {
		// The only globally fatal condition.
		return sum, fmt.Errorf("enumerate %s: %w", e.RawDir, err)
	}

	for _, name := range names {
		e.deriveFile(name, sum)
	}

	if e.Loader == nil {
		e.logf("pipeline: no loader configured, stopping after derive (%s)", sum)
		return sum, nil
	}

	if err := e.Loader.EnsureDataset(ctx); err != nil {
		return sum, fmt.Errorf("ensure dataset: %w", err)
	}
	e.loadPhase(ctx, sum)

	e.logf("pipeline: run complete: %s", sum)
	return sum, nil
}

// enumerate lists the regular files under dir in lexical order.
func enumerate(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		names = append(names, ent.Name())
	}
	sort.Strings(names)
	return names, nil
}

// syncRaw backfills RawDir from the raw object store when the local
// directory is empty.
func (e *Engine) syncRaw(ctx context.Context) error {
	if e.RawStore == nil {
		return nil
	}
	if err := os.MkdirAll(e.RawDir, 0o755); err != nil {
		return fmt.Errorf("prepare raw dir: %w", err)
	}

	local, err := enumerate(e.RawDir)
	if err != nil {
		return fmt.Errorf("enumerate %s: %w", e.RawDir, err)
	}
	if len(local) > 0 {
		return nil
	}

	keys, err := e.RawStore.List(ctx, "")
	if err != nil {
		return fmt.Errorf("list raw store: %w", err)
	}
	for _, key := range keys {
		if err := e.downloadRaw(ctx, key); err != nil {
			return err
		}
	}
	e.logf("pipeline: downloaded %d raw objects into %s", len(keys), e.RawDir)
	return nil
}

func (e *Engine) downloadRaw(ctx context.Context, key string) error {
	rc, err := e.RawStore.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	defer rc.Close()

	f, err := os.Create(filepath.Join(e.RawDir, path.Base(key)))
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		return fmt.Errorf("download %s: %w", key, err)
	}
	return f.Close()
}

// errNoRecords marks an input that parsed but yielded nothing to load.
var errNoRecords = errors.New("no records recovered")

// deriveFile runs classification and expansion for one raw input and writes
// its artifacts. All failures are recorded in sum; nothing propagates.
func (e *Engine) deriveFile(name string, sum *Summary) {
	start := e.now()

	data, err := os.ReadFile(filepath.Join(e.RawDir, name))
	if err != nil {
		e.fileFailed(sum, name, "read", err, start)
		return
	}

	head := data
	if limit := e.sampleSize(); len(head) > limit {
		head = head[:limit]
	}
	cls := classify.Classify(name, head)

	if cls.Format == classify.FormatUnknown {
		e.logf("pipeline: skip %s: %s", name, cls.Reason)
		sum.Skipped = append(sum.Skipped, FileOutcome{Name: name, Status: "skipped", Reason: cls.Reason})
		metrics.FileProcessed("derive", "skipped")
		metrics.ObserveStage("derive", "skipped", e.now().Sub(start))
		return
	}

	ectx := expand.Context{
		SourceFile: name,
		Now:        e.now(),
		OnDegrade: func(reason string) {
			e.logf("pipeline: %s: degraded to generic record: %s", name, reason)
		},
	}

	outcome, err := e.deriveRecords(name, data, cls, ectx)
	if errors.Is(err, errNoRecords) {
		// Parseable but empty: nothing to load is a skip, not a failure.
		e.logf("pipeline: skip %s: %v", name, err)
		sum.Skipped = append(sum.Skipped, FileOutcome{Name: name, Status: "skipped", Reason: err.Error()})
		metrics.FileProcessed("derive", "skipped")
		metrics.ObserveStage("derive", "skipped", e.now().Sub(start))
		return
	}
	if err != nil {
		e.fileFailed(sum, name, "derive", err, start)
		return
	}

	sum.Derived = append(sum.Derived, outcome)
	metrics.FileProcessed("derive", "ok")
	metrics.RecordsEmitted(cls.Dataset.String(), outcome.Records)
	metrics.ObserveStage("derive", "ok", e.now().Sub(start))
	e.logf("pipeline: derived %s: %d records (%s)", name, outcome.Records, cls.Dataset)
}

func (e *Engine) fileFailed(sum *Summary, name, stage string, err error, start time.Time) {
	e.logf("pipeline: %s failed on %s: %v", stage, name, err)
	sum.Failed = append(sum.Failed, FileOutcome{Name: name, Status: "failed", Reason: truncate(err.Error(), 200)})
	metrics.FileProcessed(stage, "failed")
	metrics.ObserveStage(stage, "failed", e.now().Sub(start))
}

// deriveRecords produces and writes the artifacts for one classified input.
func (e *Engine) deriveRecords(name string, data []byte, cls classify.Classification, ectx expand.Context) (FileOutcome, error) {
	base := strings.TrimSuffix(name, path.Ext(name))

	if cls.Format == classify.FormatTabular {
		return e.deriveTabular(name, base, data, ectx)
	}

	res, err := parsejson.ReadStructured(data, func(line int, lineErr error) {
		e.logf("pipeline: %s: bad line %d skipped: %v", name, line, lineErr)
	})
	if err != nil {
		// Structured miss: the content is delimited text with a structured
		// extension. Hand it to the tabular cascade.
		e.logf("pipeline: %s: not structured, falling back to tabular reader", name)
		return e.deriveTabular(name, base, data, ectx)
	}
	if res.SkippedLines > 0 {
		e.logf("pipeline: %s: skipped %d unparseable lines", name, res.SkippedLines)
	}

	switch cls.Dataset {
	case classify.DatasetProcurementRelease:
		return e.deriveProcurement(base, res.Docs, ectx)
	case classify.DatasetWeatherTimeseries:
		var recs []*records.Record
		for _, doc := range res.Docs {
			if err := expand.Weather(doc, ectx, collect(&recs)); err != nil {
				return FileOutcome{}, err
			}
		}
		return e.writeExpanded(base, recs)
	case classify.DatasetSeismicNational, classify.DatasetSeismicGlobal:
		var recs []*records.Record
		if err := expand.Features(res.Docs, ectx, collect(&recs)); err != nil {
			return FileOutcome{}, err
		}
		return e.writeExpanded(base, recs)
	default:
		var recs []*records.Record
		if err := expand.Generic(res.Docs, ectx, collect(&recs)); err != nil {
			return FileOutcome{}, err
		}
		return e.writeExpanded(base, recs)
	}
}

func collect(recs *[]*records.Record) expand.Emit {
	return func(r *records.Record) error {
		*recs = append(*recs, r)
		return nil
	}
}

func (e *Engine) deriveTabular(name, base string, data []byte, ectx expand.Context) (FileOutcome, error) {
	table := parsecsv.ReadTableWith(data, e.Parser, func(strategy string, err error) {
		e.logf("pipeline: %s: %s reader miss: %v", name, strategy, err)
	})
	if table.SkippedRows > 0 {
		e.logf("pipeline: %s: lenient reader dropped %d malformed rows", name, table.SkippedRows)
	}

	var recs []*records.Record
	if err := expand.Tabular(table.Columns, table.Rows, ectx, collect(&recs)); err != nil {
		return FileOutcome{}, err
	}
	if len(recs) == 0 {
		return FileOutcome{}, fmt.Errorf("%w (strategy %s)", errNoRecords, table.Strategy)
	}

	artifact := base + "_cleancsv.csv"
	if err := writeCSV(filepath.Join(e.ProcessedDir, artifact), recs); err != nil {
		return FileOutcome{}, err
	}
	return FileOutcome{Name: name, Status: "derived", Records: len(recs)}, nil
}

func (e *Engine) writeExpanded(base string, recs []*records.Record) (FileOutcome, error) {
	if len(recs) == 0 {
		return FileOutcome{}, fmt.Errorf("%w from expansion", errNoRecords)
	}
	artifact := base + "_expanded.json"
	if err := writeNDJSON(filepath.Join(e.ProcessedDir, artifact), recs); err != nil {
		return FileOutcome{}, err
	}
	return FileOutcome{Name: base, Status: "derived", Records: len(recs)}, nil
}

// deriveProcurement writes the release-level and item-level streams as two
// separate artifacts, never interleaved.
func (e *Engine) deriveProcurement(base string, docs []map[string]any, ectx expand.Context) (FileOutcome, error) {
	var rels, items []*records.Record
	if err := expand.Procurement(docs, ectx, collect(&rels), collect(&items)); err != nil {
		return FileOutcome{}, err
	}
	if len(rels) == 0 {
		return FileOutcome{}, fmt.Errorf("%w (release stream)", errNoRecords)
	}

	if err := writeNDJSON(filepath.Join(e.ProcessedDir, base+"_releases_expanded.json"), rels); err != nil {
		return FileOutcome{}, err
	}
	n := len(rels)
	if len(items) > 0 {
		if err := writeNDJSON(filepath.Join(e.ProcessedDir, base+"_items_expanded.json"), items); err != nil {
			return FileOutcome{}, err
		}
		n += len(items)
	}
	return FileOutcome{Name: base, Status: "derived", Records: n}, nil
}

// loadPhase evaluates every artifact in ProcessedDir against the Load Gate
// and loads the accepted ones. The artifact set is read once, before any
// load starts.
func (e *Engine) loadPhase(ctx context.Context, sum *Summary) {
	names, err := enumerate(e.ProcessedDir)
	if err != nil {
		// Derivation wrote this directory moments ago; treat failure to
		// read it back as a load failure for the run, not a fatal abort.
		e.logf("pipeline: enumerate %s: %v", e.ProcessedDir, err)
		sum.Failed = append(sum.Failed, FileOutcome{Name: e.ProcessedDir, Status: "failed", Reason: err.Error()})
		return
	}

	artifacts := make(map[string]bool, len(names))
	for _, n := range names {
		artifacts[n] = true
	}

	for _, name := range names {
		if strings.Contains(name, "_bqload") {
			// Load-stage leftovers from earlier tooling, never candidates.
			continue
		}
		e.loadArtifact(ctx, name, artifacts, sum)
	}
}

func (e *Engine) loadArtifact(ctx context.Context, name string, artifacts map[string]bool, sum *Summary) {
	start := e.now()
	full := filepath.Join(e.ProcessedDir, name)

	sample, err := readHead(full, e.sampleSize())
	if err != nil {
		e.fileFailed(sum, name, "load", err, start)
		return
	}

	dec := loadgate.Evaluate(name, artifacts, sample)
	switch dec.Verdict {
	case loadgate.Accepted:
	case loadgate.RejectedInvalid:
		e.logf("pipeline: reject %s: %s", name, dec.Reason)
		sum.Rejected = append(sum.Rejected, FileOutcome{Name: name, Status: dec.Verdict.String(), Reason: dec.Reason})
		metrics.FileProcessed("load", "rejected")
		return
	default:
		e.logf("pipeline: skip %s: %s", name, dec.Reason)
		sum.Skipped = append(sum.Skipped, FileOutcome{Name: name, Status: dec.Verdict.String(), Reason: dec.Reason})
		metrics.FileProcessed("load", "skipped")
		return
	}

	format := warehouse.FormatNDJSON
	if strings.HasSuffix(strings.ToLower(name), ".csv") {
		format = warehouse.FormatCSV
	}
	table := loadgate.TableName(name)

	rows, err := e.Loader.Load(ctx, warehouse.Job{Path: full, Table: table, Format: format})
	if err != nil {
		e.fileFailed(sum, name, "load", err, start)
		return
	}

	sum.Loaded = append(sum.Loaded, FileOutcome{Name: name, Status: "loaded", Table: table, Rows: rows})
	metrics.FileProcessed("load", "ok")
	metrics.RowsLoaded(table, rows)
	metrics.ObserveStage("load", "ok", e.now().Sub(start))
	e.logf("pipeline: loaded %s into %s (%d rows)", name, table, rows)

	e.uploadProcessed(ctx, name, full)
}

// uploadProcessed mirrors a loaded artifact to the processed store.
// Best-effort: an upload problem is logged, not a load failure.
func (e *Engine) uploadProcessed(ctx context.Context, name, full string) {
	if e.ProcessedStore == nil {
		return
	}
	f, err := os.Open(full)
	if err != nil {
		e.logf("pipeline: upload %s: %v", name, err)
		return
	}
	defer f.Close()
	if err := e.ProcessedStore.Put(ctx, name, f); err != nil {
		e.logf("pipeline: upload %s: %v", name, err)
	}
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	m, err := io.ReadFull(f, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	return buf[:m], err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
