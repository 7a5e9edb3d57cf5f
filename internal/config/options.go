package config

// Options is a free-form bag of per-stage knobs decoded from the pipeline
// config JSON. Accessors are forgiving: a missing or mistyped value yields
// the caller's default rather than an error, keeping stage setup code flat.
type Options map[string]any

// Bool returns the boolean under key, or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the integer under key, or def. JSON numbers decode as float64;
// both are accepted.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

// String returns the string under key, or def.
func (o Options) String(key string, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Rune returns the first rune of the string under key, or def.
func (o Options) Rune(key string, def rune) rune {
	s := o.String(key, "")
	if s == "" {
		return def
	}
	return []rune(s)[0]
}

// StringMap returns the string map under key, or an empty map.
func (o Options) StringMap(key string) map[string]string {
	out := map[string]string{}
	switch m := o[key].(type) {
	case map[string]string:
		for k, v := range m {
			out[k] = v
		}
	case map[string]any:
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}
	return out
}

// Any returns the raw value under key, or nil.
func (o Options) Any(key string) any { return o[key] }
