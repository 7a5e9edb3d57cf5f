// Package json turns a byte stream believed to be JSON into a parsed document
// set, distinguishing a single object, an array of objects, and
// newline-delimited records. Content that turns out to be delimited text is a
// definitive miss, reported as data so the caller can fall back to the
// tabular reader.
package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Subkind identifies the structural shape detected in the payload.
type Subkind int

const (
	SubkindObject Subkind = iota
	SubkindArray
	SubkindLines
)

func (s Subkind) String() string {
	switch s {
	case SubkindObject:
		return "object"
	case SubkindArray:
		return "array"
	default:
		return "lines"
	}
}

// Result is a parsed structured payload.
type Result struct {
	Subkind Subkind
	// Docs holds one map per logical row. For SubkindObject it has exactly
	// one element; for a GeoJSON-like envelope it holds the features.
	Docs []map[string]any
	// SkippedLines counts NDJSON lines that failed both the strict and the
	// permissive parse. Bad lines never abort the file.
	SkippedLines int
}

// ErrNotStructured is the definitive miss: the payload does not start like
// JSON and the caller should hand it to the tabular reader.
var ErrNotStructured = errors.New("content is not structured")

// ReadStructured parses data expected to be JSON-like.
//
// The first non-space character decides the path: '{' or '[' goes through a
// full-document parse (with an envelope unwrap for objects carrying a
// "features" list); anything else is ErrNotStructured. When the full parse
// fails the payload is retried line by line as newline-delimited records.
//
// onBadLine, when non-nil, observes each skipped NDJSON line.
func ReadStructured(data []byte, onBadLine func(line int, err error)) (*Result, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	first := trimmed[0]
	if first != '{' && first != '[' {
		return nil, ErrNotStructured
	}

	if res, err := readDocument(trimmed); err == nil {
		return res, nil
	}

	// Full parse failed: likely newline-delimited records.
	return readLines(trimmed, onBadLine), nil
}

func readDocument(data []byte) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	// Trailing content means this was not a single document (NDJSON with an
	// object per line also starts with '{').
	if dec.More() {
		return nil, fmt.Errorf("trailing content after document")
	}

	switch v := root.(type) {
	case map[string]any:
		// GeoJSON-like envelope: the record set is the features list.
		if feats, ok := v["features"].([]any); ok {
			return &Result{Subkind: SubkindObject, Docs: objectsOf(feats)}, nil
		}
		return &Result{Subkind: SubkindObject, Docs: []map[string]any{v}}, nil

	case []any:
		return &Result{Subkind: SubkindArray, Docs: objectsOf(v)}, nil

	default:
		return nil, fmt.Errorf("unsupported root %T", root)
	}
}

// objectsOf keeps the object elements of a list, wrapping bare scalars so a
// mixed array still yields one row per element.
func objectsOf(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		switch t := it.(type) {
		case nil:
			continue
		case map[string]any:
			out = append(out, t)
		default:
			out = append(out, map[string]any{"value": t})
		}
	}
	return out
}

func readLines(data []byte, onBadLine func(line int, err error)) *Result {
	res := &Result{Subkind: SubkindLines}

	for i, ln := range bytes.Split(data, []byte{'\n'}) {
		ln = bytes.TrimSpace(ln)
		if len(ln) == 0 {
			continue
		}

		obj, err := parseLine(ln)
		if err != nil {
			res.SkippedLines++
			if onBadLine != nil {
				onBadLine(i+1, err)
			}
			continue
		}
		res.Docs = append(res.Docs, obj)
	}

	return res
}

// parseLine tries strict JSON first, then a permissive retry that tolerates
// single-quoted pseudo-JSON (literal-structure dumps seen in some feeds).
func parseLine(ln []byte) (map[string]any, error) {
	var obj map[string]any

	dec := json.NewDecoder(bytes.NewReader(ln))
	dec.UseNumber()
	if err := dec.Decode(&obj); err == nil {
		return obj, nil
	}

	relaxed := strings.ReplaceAll(string(ln), "'", `"`)
	dec = json.NewDecoder(strings.NewReader(relaxed))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("line is not a JSON object: %w", err)
	}
	return obj, nil
}
