package warehouse

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// LocalTable is a derived artifact decoded into tabular form for the SQL
// backends. BigQuery reads artifacts natively; postgres/mssql/sqlite get
// this common decode so all three share one set of semantics: every column
// is text, a missing value is NULL.
type LocalTable struct {
	Columns []string
	Rows    [][]any
}

// ReadLocalTable decodes the artifact at path according to format.
//
// CSV artifacts carry their column set in the header row. NDJSON artifacts
// may vary keys per line; the column set is the union of keys in first-seen
// order, and absent keys become NULL.
func ReadLocalTable(path string, format Format) (*LocalTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch format {
	case FormatCSV:
		return readCSVTable(f)
	case FormatNDJSON:
		return readNDJSONTable(f)
	default:
		return nil, fmt.Errorf("warehouse: unknown artifact format %q", format)
	}
}

func readCSVTable(f *os.File) (*LocalTable, error) {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	recs, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv artifact: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("csv artifact has no header row")
	}

	t := &LocalTable{Columns: recs[0]}
	for _, rec := range recs[1:] {
		row := make([]any, len(t.Columns))
		for i := range t.Columns {
			if i < len(rec) {
				row[i] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func readNDJSONTable(f *os.File) (*LocalTable, error) {
	t := &LocalTable{}
	index := map[string]int{}

	var docs []map[string]any

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var doc map[string]any
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("read ndjson artifact line %d: %w", lineNo, err)
		}

		for _, k := range jsonKeys(line) {
			if _, ok := index[k]; !ok {
				index[k] = len(t.Columns)
				t.Columns = append(t.Columns, k)
			}
		}
		docs = append(docs, doc)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ndjson artifact: %w", err)
	}

	for _, doc := range docs {
		row := make([]any, len(t.Columns))
		for k, v := range doc {
			row[index[k]] = textValue(v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// jsonKeys extracts the top-level object keys of one NDJSON line in document
// order. Decoding into a map loses ordering, and column order matters for a
// stable table layout, so the keys are walked with the token API: after the
// opening brace every string token at the top level is a key, and its value
// is consumed wholesale with Decode.
func jsonKeys(line []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(line))

	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		k, ok := tok.(string)
		if !ok {
			return keys
		}
		keys = append(keys, k)

		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			return keys
		}
	}
	return keys
}

func textValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	}
}
