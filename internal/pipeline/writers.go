package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"lakeload/pkg/records"
)

// writeCSV materializes records as a comma-separated UTF-8 artifact with a
// header row. The column set is the first record's; tabular derivation
// guarantees every record shares it.
func writeCSV(path string, recs []*records.Record) error {
	if len(recs) == 0 {
		return fmt.Errorf("no records to write")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	cols := recs[0].Columns()
	if err := w.Write(cols); err != nil {
		_ = f.Close()
		return err
	}
	for _, r := range recs {
		row := make([]string, len(cols))
		for i, c := range cols {
			v, _ := r.Get(c)
			row[i] = fieldString(v)
		}
		if err := w.Write(row); err != nil {
			_ = f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// writeNDJSON materializes records one JSON object per line, no trailing
// newline after the last record.
func writeNDJSON(path string, recs []*records.Record) error {
	if len(recs) == 0 {
		return fmt.Errorf("no records to write")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(f)
	for i, r := range recs {
		if i > 0 {
			if err := bw.WriteByte('\n'); err != nil {
				_ = f.Close()
				return err
			}
		}
		b, err := json.Marshal(r)
		if err != nil {
			_ = f.Close()
			return err
		}
		if _, err := bw.Write(b); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func fieldString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	}
}
