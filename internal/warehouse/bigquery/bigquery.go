// Package bigquery implements warehouse.Loader on top of BigQuery load
// jobs. Artifacts are streamed from disk through a ReaderSource with schema
// autodetection; every load runs WriteTruncate so reprocessing a file
// replaces the table instead of appending duplicates.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"lakeload/internal/warehouse"
)

func init() {
	warehouse.Register("bigquery", New)
}

// Loader implements warehouse.Loader for BigQuery.
type Loader struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset

	// waitTimeout bounds Job.Wait per load.
	waitTimeout time.Duration
}

// New constructs a BigQuery loader for cfg.ProjectID/cfg.DatasetID. When
// cfg.CredentialsFile is empty the client falls back to application default
// credentials.
func New(ctx context.Context, cfg warehouse.Config) (warehouse.Loader, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("bigquery: project id is required")
	}
	if cfg.DatasetID == "" {
		return nil, fmt.Errorf("bigquery: dataset id is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery: create client: %w", err)
	}

	return &Loader{
		client:      client,
		dataset:     client.Dataset(cfg.DatasetID),
		waitTimeout: 10 * time.Minute,
	}, nil
}

// EnsureDataset creates the dataset if it does not exist.
func (l *Loader) EnsureDataset(ctx context.Context) error {
	_, err := l.dataset.Metadata(ctx)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("bigquery: dataset metadata: %w", err)
	}
	if err := l.dataset.Create(ctx, &bigquery.DatasetMetadata{}); err != nil {
		return fmt.Errorf("bigquery: create dataset: %w", err)
	}
	return nil
}

// Load runs one load job for the artifact and returns the output row count.
func (l *Loader) Load(ctx context.Context, job warehouse.Job) (int64, error) {
	f, err := os.Open(job.Path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	source := bigquery.NewReaderSource(f)
	source.AutoDetect = true
	switch job.Format {
	case warehouse.FormatCSV:
		source.SourceFormat = bigquery.CSV
		source.SkipLeadingRows = 1
		source.AllowQuotedNewlines = true
	case warehouse.FormatNDJSON:
		source.SourceFormat = bigquery.JSON
	default:
		return 0, fmt.Errorf("bigquery: unsupported artifact format %q", job.Format)
	}

	loader := l.dataset.Table(job.Table).LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateIfNeeded

	bqJob, err := loader.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("bigquery: submit load for %s: %w", job.Table, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.waitTimeout)
	defer cancel()

	status, err := bqJob.Wait(waitCtx)
	if err != nil {
		return 0, fmt.Errorf("bigquery: load %s: %w", job.Table, err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("bigquery: load %s failed: %w", job.Table, err)
	}

	if stats, ok := status.Statistics.Details.(*bigquery.LoadStatistics); ok {
		return stats.OutputRows, nil
	}
	return 0, nil
}

// Close closes the underlying client.
func (l *Loader) Close() { _ = l.client.Close() }

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

var _ warehouse.Loader = (*Loader)(nil)
