package records

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Separator placed between field values in the canonical hash input.
// ASCII Unit Separator cannot appear in well-formed field values, so it keeps
// ("ab","c") distinct from ("a","bc").
const hashSeparator = "\x1f"

// Identify computes the deterministic content identifier for a record.
//
// The hash covers the record's values joined in column order at the moment the
// columns are fixed. It must run BEFORE the injected bookkeeping fields
// (source file, processing timestamp, record id) are added, otherwise the
// identifier would depend on the run rather than the content.
//
// Two structurally identical rows in the same file produce the same
// identifier. That is the dedupe signal downstream loaders rely on; it is not
// a global uniqueness guarantee.
func Identify(r *Record) string {
	vals := make([]any, 0, r.Len())
	for _, c := range r.cols {
		vals = append(vals, r.vals[c])
	}
	return identifyValues(vals)
}

// identifyValues hashes an explicit value sequence in order.
func identifyValues(vals []any) string {
	var b strings.Builder
	b.Grow(len(vals) * 16)

	for i, v := range vals {
		if i > 0 {
			b.WriteString(hashSeparator)
		}
		AppendCanonicalValue(&b, v, true)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
