// Package expand reshapes one parsed document into zero or more flat output
// records. Three sources get dedicated treatment (weather time-series
// unzipping, seismic feature extraction, procurement release explosion);
// everything else goes through the generic flattening path.
//
// Expanders degrade gracefully: a structural mismatch falls back to emitting
// the flattened document and is reported through OnDegrade, never as an
// error. Errors only propagate from the emit callback itself.
package expand

import (
	"time"

	"lakeload/internal/flatten"
	"lakeload/internal/sanitize"
	"lakeload/pkg/records"
)

// Emit receives one finished record. Returning an error aborts the
// expansion; nothing else does.
type Emit func(*records.Record) error

// Context carries per-file expansion state.
type Context struct {
	// SourceFile is the logical name of the raw input, injected into every
	// output record.
	SourceFile string
	// Now is the processing timestamp, stored in UTC.
	Now time.Time
	// OnDegrade, when non-nil, observes structural-mismatch fallbacks.
	OnDegrade func(reason string)
}

func (c Context) degrade(reason string) {
	if c.OnDegrade != nil {
		c.OnDegrade(reason)
	}
}

// finish sanitizes column names, derives the content identifier, and injects
// the bookkeeping fields.
//
// Sanitized-name collisions resolve last-write-wins (Record.Set keeps the
// first position, replaces the value). The identifier is computed before the
// injected fields are added so it reflects content only.
func finish(ctx Context, r *records.Record) *records.Record {
	clean := records.New(r.Len() + 3)
	for _, c := range r.Columns() {
		v, _ := r.Get(c)
		clean.Set(sanitize.Column(c), v)
	}

	id := records.Identify(clean)
	clean.Set("source_file", ctx.SourceFile)
	clean.Set("processed_at", ctx.Now.UTC().Format(time.RFC3339))
	clean.Set("record_id", id)
	return clean
}

// Generic is the no-dataset-knowledge path: one record per document, nested
// objects flattened, lists serialized.
func Generic(docs []map[string]any, ctx Context, emit Emit) error {
	for _, doc := range docs {
		if err := emit(finish(ctx, flatten.Flatten(doc))); err != nil {
			return err
		}
	}
	return nil
}
