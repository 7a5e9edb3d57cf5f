// Package config defines the pipeline configuration decoded from JSON and
// its validation. The core transform stages take no global state; everything
// they need is threaded down from here as parameters.
package config

import (
	"fmt"
	"os"
)

// Pipeline is the full run configuration.
type Pipeline struct {
	// Job is the logical job name used in metrics tags.
	Job string `json:"job"`

	// Mode selects the deployment shape: "gcp" loads into BigQuery via the
	// configured GCP project, "local" loads into the configured local
	// warehouse backend.
	Mode string `json:"mode"`

	// RawDir and ProcessedDir are the local staging directories for raw
	// inputs and derived artifacts.
	RawDir       string `json:"raw_dir"`
	ProcessedDir string `json:"processed_dir"`

	// GCP holds the cloud-side settings, used when Mode is "gcp" and for
	// object-store staging in either mode.
	GCP GCPConfig `json:"gcp"`

	// Warehouse selects the local-mode backend.
	Warehouse WarehouseConfig `json:"warehouse"`

	// Sources drive cmd/fetch: named static blobs and API endpoints.
	Sources []Source `json:"sources"`

	// Parser carries free-form reader knobs (delimiter override, sample
	// size) applied uniformly to this run.
	Parser Options `json:"parser"`
}

// GCPConfig is the cloud boundary configuration.
type GCPConfig struct {
	ProjectID       string `json:"project_id"`
	DatasetID       string `json:"dataset_id"`
	CredentialsFile string `json:"credentials"`
	RawBucket       string `json:"bucket_raw"`
	ProcessedBucket string `json:"bucket_processed"`
}

// WarehouseConfig selects and configures the local-mode warehouse backend.
type WarehouseConfig struct {
	// Kind is a registered backend kind: "postgres", "mssql", or "sqlite".
	Kind string `json:"kind"`
	// DSN may reference environment variables (${PGPASSWORD} etc); they are
	// expanded at use.
	DSN string `json:"dsn"`
}

// ExpandedDSN returns the DSN with environment references resolved.
func (w WarehouseConfig) ExpandedDSN() string { return os.ExpandEnv(w.DSN) }

// Source is one upstream dataset for cmd/fetch.
type Source struct {
	// Name becomes the dataset tag prefix of the downloaded file name.
	Name string `json:"name"`
	// URL is set for API sources fetched over HTTP.
	URL string `json:"url"`
	// Blob is set for static files copied from the raw bucket.
	Blob string `json:"blob"`
	// Page is set for portal sources: the page is scraped for dataset
	// links and every discovered URL is downloaded.
	Page string `json:"page"`
	// Selector narrows the link discovery on a portal page. Defaults to
	// every anchor.
	Selector string `json:"selector"`
}

// Severity levels for validation issues.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue is one validation finding, addressed by config path.
type Issue struct {
	Severity string
	Path     string
	Message  string
}

// ValidatePipeline checks p for problems. Errors make the config unusable;
// warnings flag suspicious but runnable settings.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	errf := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, a...)})
	}
	warnf := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, a...)})
	}

	switch p.Mode {
	case "gcp":
		if p.GCP.ProjectID == "" {
			errf("gcp.project_id", "required when mode is gcp")
		}
		if p.GCP.DatasetID == "" {
			errf("gcp.dataset_id", "required when mode is gcp")
		}
	case "local":
		if p.Warehouse.Kind == "" {
			errf("warehouse.kind", "required when mode is local")
		}
		if p.Warehouse.DSN == "" {
			errf("warehouse.dsn", "required when mode is local")
		}
	case "":
		errf("mode", "must be set (gcp or local)")
	default:
		errf("mode", "unknown mode %q (want gcp or local)", p.Mode)
	}

	if p.RawDir == "" {
		errf("raw_dir", "must be set")
	}
	if p.ProcessedDir == "" {
		errf("processed_dir", "must be set")
	}

	if p.Job == "" {
		warnf("job", "empty job name; metrics will use the default tag")
	}
	for i, s := range p.Sources {
		if s.Name == "" {
			errf(fmt.Sprintf("sources[%d].name", i), "must be set")
		}
		set := 0
		for _, v := range []string{s.URL, s.Blob, s.Page} {
			if v != "" {
				set++
			}
		}
		if set == 0 {
			errf(fmt.Sprintf("sources[%d]", i), "one of url, blob, or page must be set")
		}
		if set > 1 {
			warnf(fmt.Sprintf("sources[%d]", i), "multiple of url, blob, and page set; url wins over page over blob")
		}
		if s.Selector != "" && s.Page == "" {
			warnf(fmt.Sprintf("sources[%d].selector", i), "selector has no effect without page")
		}
	}

	return issues
}
