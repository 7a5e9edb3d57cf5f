package expand

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// CoerceArray resolves the {native array, JSON-string array, absent} union
// seen in feed payloads: some producers emit coordinates and hourly series as
// real arrays, others as the same array serialized into a string.
//
// It returns the element slice and whether a usable array was found. Any
// other shape (missing key, scalar, unparsable string) is "absent".
func CoerceArray(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true

	case string:
		s := strings.TrimSpace(t)
		if !strings.HasPrefix(s, "[") {
			return nil, false
		}
		dec := json.NewDecoder(bytes.NewReader([]byte(s)))
		dec.UseNumber()
		var arr []any
		if err := dec.Decode(&arr); err != nil {
			return nil, false
		}
		return arr, true

	default:
		return nil, false
	}
}

// toFloat extracts a numeric value from the scalar shapes JSON parsing
// produces.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// stringOf renders an identifier-ish scalar to its textual form.
// Returns "" for nil, empty, and non-scalar values.
func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

// isScalar reports whether v is a carry-forward value (not an object or
// list).
func isScalar(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return false
	default:
		return true
	}
}
