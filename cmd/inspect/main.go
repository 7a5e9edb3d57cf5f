// Command inspect reports how the pipeline would treat each file in a
// directory, without deriving or loading anything.
//
// It reads a bounded prefix of every file (the classifier's sample size),
// runs classification, and for recognized formats probes the matching
// reader: detected delimiter strategy and column count for tabular files,
// subkind and document count for structured ones. Output is one text line
// per file, convenient for eyeballing a fresh raw directory before a run.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"lakeload/internal/classify"
	"lakeload/internal/loadgate"
	parsecsv "lakeload/internal/parser/csv"
	parsejson "lakeload/internal/parser/json"
	"lakeload/internal/sanitize"
)

func main() {
	dir := flag.String("dir", "data/raw", "directory to inspect")
	full := flag.Bool("full", false, "parse whole files instead of the bounded sample")
	flag.Parse()

	entries, err := os.ReadDir(*dir)
	if err != nil {
		log.Fatalf("enumerate %s: %v", *dir, err)
	}

	var names []string
	for _, ent := range entries {
		if !ent.IsDir() {
			names = append(names, ent.Name())
		}
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tFORMAT\tDATASET\tTABLE\tDETAIL")
	for _, name := range names {
		fmt.Fprintln(w, inspectFile(*dir, name, *full))
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("%v", err)
	}
}

func inspectFile(dir, name string, full bool) string {
	data, err := readSample(filepath.Join(dir, name), full)
	if err != nil {
		return fmt.Sprintf("%s\terror\t-\t-\t%v", name, err)
	}

	head := data
	if len(head) > classify.SampleSize() {
		head = head[:classify.SampleSize()]
	}
	cls := classify.Classify(name, head)

	switch cls.Format {
	case classify.FormatTabular:
		t := parsecsv.ReadTable(data, nil)
		detail := fmt.Sprintf("strategy=%s columns=%d rows=%d", t.Strategy, len(t.Columns), len(t.Rows))
		if t.SkippedRows > 0 {
			detail += fmt.Sprintf(" skipped=%d", t.SkippedRows)
		}
		if full {
			// The column names the warehouse will see after sanitizing.
			detail += " cols=" + strings.Join(sanitize.Columns(t.Columns), ",")
		}
		return row(name, cls, detail)

	case classify.FormatStructured:
		res, err := parsejson.ReadStructured(data, nil)
		if err != nil {
			t := parsecsv.ReadTable(data, nil)
			return row(name, cls, fmt.Sprintf("structured miss, tabular fallback strategy=%s columns=%d", t.Strategy, len(t.Columns)))
		}
		detail := fmt.Sprintf("subkind=%s docs=%d", res.Subkind, len(res.Docs))
		if res.SkippedLines > 0 {
			detail += fmt.Sprintf(" bad_lines=%d", res.SkippedLines)
		}
		return row(name, cls, detail)

	default:
		return fmt.Sprintf("%s\tunknown\t-\t-\t%s", name, cls.Reason)
	}
}

func row(name string, cls classify.Classification, detail string) string {
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%s", name, cls.Format, cls.Dataset, loadgate.TableName(name), detail)
}

// readSample reads the classifier sample, or the whole file with -full.
func readSample(path string, full bool) ([]byte, error) {
	if full {
		return os.ReadFile(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, classify.SampleSize())
	n, err := f.Read(buf)
	if n == 0 && err != nil {
		return nil, err
	}
	return buf[:n], nil
}
