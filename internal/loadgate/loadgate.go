// Package loadgate decides which derived artifacts are safe and canonical to
// load into the warehouse. The rules are deterministic and recomputed every
// run over the full artifact set; nothing is persisted.
package loadgate

import (
	"fmt"
	"regexp"
	"strings"

	parsecsv "lakeload/internal/parser/csv"
	"lakeload/internal/sanitize"
)

// Verdict is the outcome for one candidate artifact.
type Verdict int

const (
	Accepted Verdict = iota
	SkippedKnownBad
	SkippedSuperseded
	RejectedInvalid
	Failed
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case SkippedKnownBad:
		return "skipped-known-bad"
	case SkippedSuperseded:
		return "skipped-superseded"
	case RejectedInvalid:
		return "rejected-invalid"
	default:
		return "failed"
	}
}

// Decision pairs a verdict with its human-readable reason. Reasons are
// always set for non-accepted verdicts; skips are never silent.
type Decision struct {
	Verdict Verdict
	Reason  string
}

func accept() Decision                        { return Decision{Verdict: Accepted} }
func skip(v Verdict, reason string) Decision  { return Decision{Verdict: v, Reason: reason} }

// Known-corrupt derivation suffixes. These artifact variants are produced by
// repair paths that are known not to yield loadable output.
var knownBadSuffixes = []struct {
	suffix string
	reason string
}{
	{"_clean.json", "corrupt repair variant (_clean.json)"},
	{"_cleanjson.json", "invalid-field repair variant (_cleanjson.json)"},
	{"_cleanbin.json", "duplicate binary variant (_cleanbin.json)"},
}

// Source families whose delimiter-fixed CSV variants never actually repaired
// the structural problem.
var brokenDelimiterPrefixes = []string{"mies_", "mremh_"}

// Evaluate runs the skip rules for one candidate, first match wins.
//
// artifacts is the set of derived file names present for this run (the
// candidate included); sample holds the candidate's leading bytes and is only
// consulted for tabular candidates.
func Evaluate(name string, artifacts map[string]bool, sample []byte) Decision {
	lower := strings.ToLower(name)

	// 1. Known-corrupt derivation paths.
	for _, kb := range knownBadSuffixes {
		if strings.HasSuffix(lower, kb.suffix) {
			return skip(SkippedKnownBad, kb.reason)
		}
	}

	// 2. Broken-delimiter source families: the _cleancsv fix does not help.
	if strings.HasSuffix(lower, "_cleancsv.csv") {
		for _, prefix := range brokenDelimiterPrefixes {
			if strings.Contains(lower, prefix) {
				return skip(SkippedKnownBad, fmt.Sprintf("broken-delimiter source family (%s)", strings.TrimSuffix(prefix, "_")))
			}
		}

		// 3. Duplicate variant superseded by its canonical sibling. The
		// suffix matched on lower, so trim by length to survive odd casing.
		canonical := name[:len(name)-len("_cleancsv.csv")] + "_clean.csv"
		if artifacts[canonical] {
			return skip(SkippedSuperseded, fmt.Sprintf("superseded by %s", canonical))
		}
	}

	// 4. Tabular candidates must survive structural validation.
	if strings.HasSuffix(lower, ".csv") {
		if ok, reason := parsecsv.Validate(sample); !ok {
			return skip(RejectedInvalid, reason)
		}
	}

	return accept()
}

var (
	timestampSuffixRe = regexp.MustCompile(`_\d{8,}`)
	// items is deliberately absent: item-level procurement artifacts keep
	// their _items marker so the release and item streams land in distinct
	// tables under truncate-and-reload.
	stageSuffixRe = regexp.MustCompile(`_(clean|expanded|releases|cleancsv|cleanbin|bqload).*`)
	extensionRe   = regexp.MustCompile(`\.\w+$`)
)

// TableName derives the destination table for an accepted artifact.
//
// It strips the timestamp-looking numeric suffix, the pipeline-stage
// suffixes, and the extension, then sanitizes. The result is stable across
// re-runs of the same logical dataset so repeated loads hit the same table.
func TableName(name string) string {
	base := name
	base = timestampSuffixRe.ReplaceAllString(base, "")
	base = stageSuffixRe.ReplaceAllString(base, "")
	base = extensionRe.ReplaceAllString(base, "")
	return sanitize.Column(base)
}
