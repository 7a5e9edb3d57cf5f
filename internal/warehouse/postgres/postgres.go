// Package postgres implements warehouse.Loader for PostgreSQL.
//
// Tables are recreated on every load (DROP + CREATE with TEXT columns) and
// rows bulk-inserted with COPY, mirroring the truncate-and-reload semantics
// of the BigQuery backend.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lakeload/internal/warehouse"
)

func init() {
	warehouse.Register("postgres", New)
}

// Loader implements warehouse.Loader backed by a pgx pool.
type Loader struct {
	pool *pgxpool.Pool
}

// New connects to the DSN and validates connectivity.
func New(ctx context.Context, cfg warehouse.Config) (warehouse.Loader, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Loader{pool: pool}, nil
}

// EnsureDataset is a no-op: the target database is the dataset, and it must
// already exist for the DSN to connect.
func (l *Loader) EnsureDataset(ctx context.Context) error { return nil }

// Load recreates the table from the artifact and returns the row count.
func (l *Loader) Load(ctx context.Context, job warehouse.Job) (int64, error) {
	tab, err := warehouse.ReadLocalTable(job.Path, job.Format)
	if err != nil {
		return 0, err
	}
	if len(tab.Columns) == 0 {
		return 0, fmt.Errorf("postgres: artifact %s has no columns", job.Path)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	table := pgIdent(job.Table)
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return 0, fmt.Errorf("postgres: drop %s: %w", job.Table, err)
	}
	if _, err := tx.Exec(ctx, createTableSQL(job.Table, tab.Columns)); err != nil {
		return 0, fmt.Errorf("postgres: create %s: %w", job.Table, err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{job.Table}, tab.Columns, pgx.CopyFromRows(tab.Rows))
	if err != nil {
		return 0, fmt.Errorf("postgres: copy into %s: %w", job.Table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the connection pool.
func (l *Loader) Close() { l.pool.Close() }

// createTableSQL builds the DDL for a load target: every column TEXT, no
// constraints. Pure so the shape is testable without a database.
func createTableSQL(table string, columns []string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(pgIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
		b.WriteString(" TEXT")
	}
	b.WriteString(")")
	return b.String()
}

func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ warehouse.Loader = (*Loader)(nil)
