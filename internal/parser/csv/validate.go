package csv

import (
	"bytes"
	"fmt"
)

// Validate runs the pre-load structural check on a content sample.
//
// A sample is unrecoverable when its first line carries more than ten
// semicolons and no comma at all (a known broken-delimiter signature), or
// when the best-effort parse of the sample still yields a single column.
// The returned reason is empty only when ok is true.
func Validate(sampleBytes []byte) (ok bool, reason string) {
	first := sampleBytes
	if i := bytes.IndexByte(sampleBytes, '\n'); i >= 0 {
		first = sampleBytes[:i]
	}

	semis := bytes.Count(first, []byte{';'})
	commas := bytes.Count(first, []byte{','})
	if semis > 10 && commas == 0 {
		return false, fmt.Sprintf("malformed first line: %d semicolons, no commas", semis)
	}

	t, err := readLenient(sampleBytes, guessDelimiter(sample(sampleBytes, sampleSize)))
	if err != nil {
		return false, fmt.Sprintf("sample parse failed: %v", err)
	}
	if len(t.Columns) <= 1 {
		return false, "only one column detected (wrong delimiter)"
	}
	return true, ""
}
