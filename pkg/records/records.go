// Package records defines the flat output record produced by the expanders
// and the deterministic content identifier used for downstream dedupe.
package records

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Record is a single flat output row: sanitized column names mapped to scalar
// values, with column order preserved.
//
// Column order matters: it fixes CSV output order and the value order the
// content identifier hashes over. Set is last-write-wins on the value but
// keeps the column's original position, so a duplicate sanitized name never
// produces two columns.
type Record struct {
	cols []string
	vals map[string]any
}

// New returns an empty Record with capacity for n columns.
func New(n int) *Record {
	return &Record{
		cols: make([]string, 0, n),
		vals: make(map[string]any, n),
	}
}

// Set stores v under col. If col already exists its value is replaced
// (last-write-wins) and its position is unchanged.
func (r *Record) Set(col string, v any) {
	if _, ok := r.vals[col]; !ok {
		r.cols = append(r.cols, col)
	}
	r.vals[col] = v
}

// Get returns the value stored under col.
func (r *Record) Get(col string) (any, bool) {
	v, ok := r.vals[col]
	return v, ok
}

// Columns returns the column names in insertion order.
// The returned slice is owned by the Record; callers must not mutate it.
func (r *Record) Columns() []string { return r.cols }

// Len returns the number of columns.
func (r *Record) Len() int { return len(r.cols) }

// Values returns the values aligned with Columns().
func (r *Record) Values() []any {
	out := make([]any, len(r.cols))
	for i, c := range r.cols {
		out[i] = r.vals[c]
	}
	return out
}

// MarshalJSON writes the record as a JSON object with keys in column order.
// encoding/json would sort map keys, which loses the source column order and
// makes NDJSON output harder to eyeball against the input.
func (r *Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, c := range r.cols {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		v, err := json.Marshal(r.vals[c])
		if err != nil {
			return nil, err
		}
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// AppendCanonicalValue writes a stable textual form of v to b.
//
// Canonicalization rules:
//   - nil encodes as a single NUL byte so missing differs from empty string.
//   - json.Number keeps its source text (no float round-trip).
//   - time.Time encodes as RFC3339Nano in UTC.
//   - floats use the shortest representation that round-trips.
func AppendCanonicalValue(b *strings.Builder, v any, trimSpace bool) {
	switch t := v.(type) {
	case nil:
		b.WriteByte('\x00')

	case string:
		if trimSpace && hasEdgeSpace(t) {
			t = strings.TrimSpace(t)
		}
		b.WriteString(t)

	case []byte:
		s := string(t)
		if trimSpace && hasEdgeSpace(s) {
			s = strings.TrimSpace(s)
		}
		b.WriteString(s)

	case json.Number:
		b.WriteString(t.String())

	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}

	case int:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int32:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case uint64:
		b.WriteString(strconv.FormatUint(t, 10))

	case float32:
		b.WriteString(strconv.FormatFloat(float64(t), 'g', -1, 32))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))

	case time.Time:
		tt := t
		if !tt.IsZero() {
			tt = tt.UTC()
		}
		b.WriteString(tt.Format(time.RFC3339Nano))

	default:
		// Fallback: stable-ish representation via JSON.
		enc, err := json.Marshal(t)
		if err != nil {
			b.WriteString("?")
			return
		}
		b.Write(enc)
	}
}

func hasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return s[0] == ' ' || s[len(s)-1] == ' ' || s[0] == '\t' || s[len(s)-1] == '\t'
}
