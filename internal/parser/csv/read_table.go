// Package csv turns a byte stream believed to be delimited text into a
// rectangular record set, maximizing recovered columns through an ordered
// list of fallback strategies. Failure of a strategy is data, not a signal:
// each strategy returns a result-or-miss and the caller tries the next one.
package csv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"lakeload/internal/config"
)

// Table is a parsed rectangular record set.
type Table struct {
	// Columns holds the raw header names. When the manual fallback produced
	// the table they are positional (col_0, col_1, ...).
	Columns []string
	// Rows are the data rows, aligned to Columns where the source allowed it.
	Rows [][]string
	// Strategy names the fallback that produced this table.
	Strategy string
	// SkippedRows counts malformed rows dropped by the lenient engine.
	SkippedRows int
}

// sampleSize bounds the bytes inspected for delimiter guessing.
const sampleSize = 4096

type strategy struct {
	name string
	read func(data []byte) (*Table, error)
}

// ReadTable parses data with no known delimiter or encoding.
//
// Strategies run in order and the first success wins, where success means a
// clean parse that recovered more than one column: a one-column result is
// evidence of a wrong delimiter guess and is treated as a miss. The final
// manual strategy always succeeds, so ReadTable never fails and never
// panics, whatever the input.
//
// onErr, when non-nil, observes each strategy miss.
func ReadTable(data []byte, onErr func(strategy string, err error)) *Table {
	return ReadTableWith(data, nil, onErr)
}

// ReadTableWith is ReadTable with run-level reader knobs applied:
// "delimiter" forces the delimiter and skips the guess, "sample_size"
// bounds the bytes inspected when guessing. A nil or empty opt behaves
// like ReadTable.
func ReadTableWith(data []byte, opt config.Options, onErr func(strategy string, err error)) *Table {
	n := opt.Int("sample_size", sampleSize)
	delim := opt.Rune("delimiter", 0)
	if delim == 0 {
		delim = guessDelimiter(sample(data, n))
	}

	strategies := []strategy{
		{"utf8", func(b []byte) (*Table, error) { return readStrict(b, delim) }},
		{"latin1", func(b []byte) (*Table, error) { return readLatin1(b, delim) }},
		{"lenient", func(b []byte) (*Table, error) { return readLenient(b, delim) }},
		{"sniff", func(b []byte) (*Table, error) { return readLenient(b, sniffDelimiter(sample(b, n))) }},
	}

	for _, s := range strategies {
		t, err := s.read(data)
		if err == nil && len(t.Columns) > 1 {
			t.Strategy = s.name
			return t
		}
		if err == nil {
			err = errSingleColumn
		}
		if onErr != nil {
			onErr(s.name, err)
		}
	}

	t := readManual(data)
	t.Strategy = "manual"
	return t
}

var errSingleColumn = errors.New("single column detected (wrong delimiter)")

// guessDelimiter compares punctuation counts on a content sample.
// Semicolon wins only when strictly more frequent than comma.
func guessDelimiter(sample []byte) rune {
	if bytes.Count(sample, []byte{';'}) > bytes.Count(sample, []byte{','}) {
		return ';'
	}
	return ','
}

// sniffDelimiter picks the candidate whose per-line count is nonzero and most
// consistent across the sample, preferring the longest consistent run.
func sniffDelimiter(sample []byte) rune {
	lines := bytes.Split(sample, []byte{'\n'})
	if len(lines) > 1 {
		// Drop a possibly truncated trailing line.
		lines = lines[:len(lines)-1]
	}

	best := byte(',')
	bestRun := 0
	for _, cand := range []byte{',', ';', '\t', '|'} {
		run := 0
		want := -1
		for _, ln := range lines {
			n := bytes.Count(ln, []byte{cand})
			if n == 0 || (want >= 0 && n != want) {
				break
			}
			want = n
			run++
		}
		if run > bestRun {
			bestRun = run
			best = cand
		}
	}
	return rune(best)
}

func readStrict(data []byte, delim rune) (*Table, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("not valid UTF-8")
	}
	return readAll(data, delim, false, nil)
}

func readLatin1(data []byte, delim rune) (*Table, error) {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("latin-1 decode: %w", err)
	}
	return readAll(decoded, delim, false, nil)
}

// readLenient skips malformed rows instead of failing the whole read.
func readLenient(data []byte, delim rune) (*Table, error) {
	skipped := 0
	t, err := readAll(data, delim, true, &skipped)
	if err != nil {
		return nil, err
	}
	t.SkippedRows = skipped
	return t, nil
}

func readAll(data []byte, delim rune, lenient bool, skipped *int) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.ReuseRecord = false
	if lenient {
		r.LazyQuotes = true
		r.FieldsPerRecord = -1
	}

	hdr, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		columns[i] = strings.TrimSpace(h)
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if lenient {
				if skipped != nil {
					*skipped++
				}
				continue
			}
			return nil, fmt.Errorf("read row: %w", err)
		}
		if lenient && len(rec) != len(columns) {
			// Misaligned row under FieldsPerRecord=-1; drop it.
			if skipped != nil {
				*skipped++
			}
			continue
		}
		rows = append(rows, append([]string(nil), rec...))
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

// readManual is the last resort: split every line on comma and accept
// whatever column count the first line yields, naming columns positionally.
func readManual(data []byte) *Table {
	lines := splitLines(data)
	if len(lines) == 0 {
		return &Table{Columns: []string{"col_0"}}
	}

	first := strings.Split(lines[0], ",")
	columns := make([]string, len(first))
	for i := range first {
		columns[i] = fmt.Sprintf("col_%d", i)
	}

	rows := make([][]string, 0, len(lines))
	for _, ln := range lines {
		parts := strings.Split(ln, ",")
		row := make([]string, len(columns))
		for i := range row {
			if i < len(parts) {
				row[i] = parts[i]
			}
		}
		rows = append(rows, row)
	}

	return &Table{Columns: columns, Rows: rows}
}

func splitLines(data []byte) []string {
	var out []string
	for _, ln := range bytes.Split(data, []byte{'\n'}) {
		ln = bytes.TrimRight(ln, "\r")
		if len(ln) == 0 {
			continue
		}
		out = append(out, string(ln))
	}
	return out
}

func sample(data []byte, n int) []byte {
	if n <= 0 {
		n = sampleSize
	}
	if len(data) > n {
		return data[:n]
	}
	return data
}
