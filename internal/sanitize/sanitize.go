// Package sanitize maps arbitrary source field names onto the identifier
// alphabet the warehouse accepts.
package sanitize

import "strings"

// Column converts a raw field name to a warehouse-safe identifier.
//
// Steps, in order: strip a BOM artifact, trim, lowercase, map separator
// punctuation to underscores (parens and quotes are removed outright), drop
// anything left outside [a-z0-9_], collapse underscore runs, trim edge
// underscores, prefix "col_" when the result starts with a digit, and fall
// back to "unnamed" when nothing survives.
//
// Column is total and deterministic, and idempotent:
// Column(Column(x)) == Column(x).
func Column(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch r {
		case '.', ';', ' ', '-', '/', ',':
			b.WriteByte('_')
		case '(', ')', '"', '\'':
			// removed rather than replaced
		default:
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
				b.WriteRune(r)
			}
		}
	}

	out := collapseUnderscores(b.String())
	out = strings.Trim(out, "_")

	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "col_" + out
	}
	if out == "" {
		return "unnamed"
	}
	return out
}

// Columns sanitizes a header slice in place-order, without dedup: collision
// resolution is the record layer's job (last-write-wins).
func Columns(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Column(n)
	}
	return out
}

func collapseUnderscores(s string) string {
	if !strings.Contains(s, "__") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prev := false
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
