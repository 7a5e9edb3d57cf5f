// Package classify inspects a raw file's logical name and leading bytes to
// pick a reader and a dataset-specific expander. Classification is pure:
// the resolved kinds are passed downstream as data so later stages never
// re-inspect the file name.
package classify

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// Format selects which reader parses the payload.
type Format int

const (
	FormatUnknown Format = iota
	FormatTabular
	FormatStructured
)

func (f Format) String() string {
	switch f {
	case FormatTabular:
		return "tabular"
	case FormatStructured:
		return "structured"
	default:
		return "unknown"
	}
}

// DatasetKind is the closed tag that selects the expander and naming rules.
type DatasetKind int

const (
	DatasetGenericTabular DatasetKind = iota
	DatasetGenericStructured
	DatasetWeatherTimeseries
	DatasetSeismicNational
	DatasetSeismicGlobal
	DatasetProcurementRelease
)

func (k DatasetKind) String() string {
	switch k {
	case DatasetWeatherTimeseries:
		return "weather-timeseries"
	case DatasetSeismicNational:
		return "seismic-national"
	case DatasetSeismicGlobal:
		return "seismic-global"
	case DatasetProcurementRelease:
		return "procurement-release"
	case DatasetGenericTabular:
		return "generic-tabular"
	default:
		return "generic-structured"
	}
}

// Classification is the result of inspecting one raw file.
// When Format is FormatUnknown, Reason explains why so callers can log the
// skip; files are never silently dropped.
type Classification struct {
	Format  Format
	Dataset DatasetKind
	Reason  string
}

// Source name tags recognized by rule 1. These come from the upstream fetch
// naming convention <dataset-tag>_<timestamp>.<ext>.
var datasetTags = []struct {
	tag  string
	kind DatasetKind
}{
	{"api_clima", DatasetWeatherTimeseries},
	{"api_sismos_usgs", DatasetSeismicGlobal},
	{"api_sismos", DatasetSeismicNational}, // after usgs: substring overlap
	{"catalogo", DatasetProcurementRelease},
	{"releases", DatasetProcurementRelease},
}

// sampleBytes is how much of the head a caller should pass in; Classify
// tolerates shorter (or nil) heads.
const sampleBytes = 4096

// SampleSize returns the recommended head size for Classify.
func SampleSize() int { return sampleBytes }

// Classify picks the reader format and dataset kind for one file. Rule order,
// first match wins:
//
//  1. A known API tag in the name fixes the dataset kind regardless of
//     extension; those sources are all structured payloads.
//  2. Tabular extensions (.csv, .xlsx, .xls).
//  3. Structured extensions (.json, .ndjson, .bin): probe the head; if it does
//     not look like JSON, a comma-heavy first line falls back to tabular,
//     otherwise the file is unknown.
//
// Classify never errors; an unclassifiable file comes back as FormatUnknown
// with a human-readable reason.
func Classify(name string, head []byte) Classification {
	lower := strings.ToLower(filepath.Base(name))

	for _, dt := range datasetTags {
		if strings.Contains(lower, dt.tag) {
			return Classification{Format: FormatStructured, Dataset: dt.kind}
		}
	}

	switch ext(lower) {
	case ".csv", ".xlsx", ".xls":
		return Classification{Format: FormatTabular, Dataset: DatasetGenericTabular}

	case ".json", ".ndjson", ".bin":
		return probeStructured(lower, head)

	default:
		return Classification{
			Format: FormatUnknown,
			Reason: fmt.Sprintf("unsupported extension %q", ext(lower)),
		}
	}
}

func probeStructured(name string, head []byte) Classification {
	trimmed := bytes.TrimLeft(head, " \t\r\n\ufeff")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return Classification{Format: FormatStructured, Dataset: DatasetGenericStructured}
	}

	// Content disguised as structured data is often delimited text with the
	// wrong extension. A comma-heavy first line is enough evidence.
	if firstLineCommas(head) > 2 {
		return Classification{Format: FormatTabular, Dataset: DatasetGenericTabular}
	}

	return Classification{
		Format: FormatUnknown,
		Reason: fmt.Sprintf("%s: neither JSON-like nor delimited text", name),
	}
}

func firstLineCommas(head []byte) int {
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	return bytes.Count(line, []byte{','})
}

func ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
