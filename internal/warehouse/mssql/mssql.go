// Package mssql implements warehouse.Loader for Microsoft SQL Server via
// database/sql. Identifier quoting uses brackets and placeholders are
// @p1..@pN, the sqlserver driver convention; otherwise semantics match the
// other SQL backends precisely: drop, recreate with NVARCHAR(MAX) columns,
// insert every row.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"lakeload/internal/warehouse"
)

func init() {
	warehouse.Register("mssql", New)
}

// Loader implements warehouse.Loader on database/sql with the "sqlserver"
// driver.
type Loader struct {
	db *sql.DB
}

// New connects to the DSN and validates connectivity.
func New(ctx context.Context, cfg warehouse.Config) (warehouse.Loader, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Loader{db: db}, nil
}

// EnsureDataset is a no-op: the target database comes from the DSN.
func (l *Loader) EnsureDataset(ctx context.Context) error { return nil }

// Load recreates the table from the artifact and returns the row count.
func (l *Loader) Load(ctx context.Context, job warehouse.Job) (int64, error) {
	tab, err := warehouse.ReadLocalTable(job.Path, job.Format)
	if err != nil {
		return 0, err
	}
	if len(tab.Columns) == 0 {
		return 0, fmt.Errorf("mssql: artifact %s has no columns", job.Path)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	drop := fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s",
		strings.ReplaceAll(job.Table, "'", "''"), bracketIdent(job.Table))
	if _, err := tx.ExecContext(ctx, drop); err != nil {
		return 0, fmt.Errorf("mssql: drop %s: %w", job.Table, err)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(job.Table, tab.Columns)); err != nil {
		return 0, fmt.Errorf("mssql: create %s: %w", job.Table, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(job.Table, tab.Columns))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var n int64
	for _, row := range tab.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("mssql: insert into %s: %w", job.Table, err)
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
	b.WriteString(bracketIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(bracketIdent(c))
		b.WriteString(" NVARCHAR(MAX)")
	}
	b.WriteString(")")
	return b.String()
}

func insertSQL(table string, columns []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(bracketIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(bracketIdent(c))
	}
	b.WriteString(") VALUES (")
	for i := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "@p%d", i+1)
	}
	b.WriteString(")")
	return b.String()
}

func bracketIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

var _ warehouse.Loader = (*Loader)(nil)
