// Package warehouse abstracts the load destination behind a small Loader
// interface with pluggable backends. The "bigquery" backend serves gcp mode;
// "postgres", "mssql" and "sqlite" serve local mode with the same truncate-
// and-reload semantics so a run against any backend converges to the same
// table contents.
package warehouse

import (
	"context"
	"fmt"
	"sync"
)

// Format identifies the serialization of a derived artifact handed to Load.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatNDJSON Format = "ndjson"
)

// Job is one table load: read the artifact at Path and replace the contents
// of Table with it.
type Job struct {
	// Path is the local path of the derived artifact.
	Path string
	// Table is the destination table name, already sanitized.
	Table string
	// Format tells the backend how to read Path.
	Format Format
}

// Loader is a backend-agnostic warehouse destination.
//
// Loads replace the destination table (truncate-and-reload); a rerun over
// the same artifact is idempotent.
type Loader interface {
	// EnsureDataset creates the target dataset/schema if it does not exist.
	EnsureDataset(ctx context.Context) error

	// Load executes one load job and returns the number of rows loaded.
	Load(ctx context.Context, job Job) (int64, error)

	// Close releases backend resources. Call once at shutdown.
	Close()
}

// Config is the minimal configuration needed to construct a Loader.
//
// Kind selects the registered backend. DSN is used by SQL backends; the
// GCP fields by the bigquery backend.
type Config struct {
	Kind string
	DSN  string

	ProjectID       string
	DatasetID       string
	CredentialsFile string
}

type factory func(ctx context.Context, cfg Config) (Loader, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend factory under a kind (e.g. "postgres").
// Call from an init() function in a backend package. Registering an empty
// kind, a nil factory, or a duplicate kind panics; ambiguous backend
// selection is a programming error, not a runtime condition.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("warehouse: Register called with empty kind")
	}
	if f == nil {
		panic("warehouse: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("warehouse: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Loader using the registered backend factory.
func New(ctx context.Context, cfg Config) (Loader, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("warehouse: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported warehouse kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, for error messages and the
// config validator.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
