// Package sqlite implements warehouse.Loader for SQLite via the pure-Go
// modernc.org driver. Useful for local runs and tests: no warehouse
// infrastructure, one file on disk, identical reload semantics.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"lakeload/internal/warehouse"
)

func init() {
	warehouse.Register("sqlite", New)
}

// Loader implements warehouse.Loader on database/sql with the "sqlite"
// driver.
type Loader struct {
	db *sql.DB
}

// New opens the database file named by the DSN and validates connectivity.
func New(ctx context.Context, cfg warehouse.Config) (warehouse.Loader, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Loader{db: db}, nil
}

// EnsureDataset is a no-op: opening the DSN creates the database file.
func (l *Loader) EnsureDataset(ctx context.Context) error { return nil }

// Load recreates the table from the artifact and returns the row count.
func (l *Loader) Load(ctx context.Context, job warehouse.Job) (int64, error) {
	tab, err := warehouse.ReadLocalTable(job.Path, job.Format)
	if err != nil {
		return 0, err
	}
	if len(tab.Columns) == 0 {
		return 0, fmt.Errorf("sqlite: artifact %s has no columns", job.Path)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(job.Table)); err != nil {
		return 0, fmt.Errorf("sqlite: drop %s: %w", job.Table, err)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(job.Table, tab.Columns)); err != nil {
		return 0, fmt.Errorf("sqlite: create %s: %w", job.Table, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(job.Table, len(tab.Columns)))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var n int64
	for _, row := range tab.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("sqlite: insert into %s: %w", job.Table, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database handle.
func (l *Loader) Close() { _ = l.db.Close() }

func createTableSQL(table string, columns []string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(quoteIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(c))
		b.WriteString(" TEXT")
	}
	b.WriteString(")")
	return b.String()
}

func insertSQL(table string, ncols int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(quoteIdent(table))
	b.WriteString(" VALUES (")
	for i := 0; i < ncols; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
	}
	b.WriteString(")")
	return b.String()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ warehouse.Loader = (*Loader)(nil)
