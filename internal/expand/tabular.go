package expand

import "lakeload/pkg/records"

// Tabular converts parsed delimited rows into finished records. Short rows
// pad with nils so every record carries the full column set; long rows drop
// the overflow, matching what the lenient reader recovered.
func Tabular(columns []string, rows [][]string, ctx Context, emit Emit) error {
	for _, row := range rows {
		r := records.New(len(columns))
		for i, c := range columns {
			if i < len(row) {
				r.Set(c, row[i])
			} else {
				r.Set(c, nil)
			}
		}
		if err := emit(finish(ctx, r)); err != nil {
			return err
		}
	}
	return nil
}
