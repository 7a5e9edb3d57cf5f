// Package flatten collapses nested JSON-like documents into single-level
// key paths for the generic (non dataset-specific) transform path.
package flatten

import (
	"encoding/json"
	"sort"

	"lakeload/pkg/records"
)

// Flatten recursively collapses obj into a flat record.
//
//   - Nested objects recurse with "<prefix><key>_".
//   - Lists are serialized to a compact JSON string under the joined key.
//   - Scalars are stored directly.
//
// Keys at each nesting level are visited in sorted order so the output column
// order (and therefore the record identifier) is deterministic even though
// map iteration is not. Inputs are data interchange documents; no cycle
// handling is needed.
func Flatten(obj map[string]any) *records.Record {
	r := records.New(len(obj))
	flattenInto(r, obj, "")
	return r
}

// FlattenInto flattens obj into an existing record under prefix.
func FlattenInto(r *records.Record, obj map[string]any, prefix string) {
	flattenInto(r, obj, prefix)
}

func flattenInto(r *records.Record, obj map[string]any, prefix string) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		joined := prefix + k
		switch v := obj[k].(type) {
		case map[string]any:
			flattenInto(r, v, joined+"_")
		case []any:
			r.Set(joined, serializeList(v))
		default:
			r.Set(joined, v)
		}
	}
}

func serializeList(v []any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
