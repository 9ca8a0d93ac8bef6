// Package runlog records ingestion run outcomes in an operational Postgres
// table. The ledger is best-effort bookkeeping: a recording failure never
// fails the run it describes.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Entry is one ingestion run outcome.
type Entry struct {
	RunID       uuid.UUID
	Blob        string
	RowsLoaded  int
	RowsDropped int
	Status      string
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Run statuses recorded in the ledger.
const (
	StatusLoaded = "loaded"
	StatusEmpty  = "empty"
	StatusFailed = "failed"
)

// Recorder persists run entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// PostgresRecorder writes run entries to the ingest_runs table.
type PostgresRecorder struct {
	db *sql.DB
}

// Open connects to Postgres and ensures the ledger table exists.
func Open(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open run ledger: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping run ledger: %w", err)
	}

	ddl := `
		CREATE TABLE IF NOT EXISTS ingest_runs (
			run_id       UUID PRIMARY KEY,
			blob_name    TEXT NOT NULL,
			rows_loaded  INTEGER NOT NULL,
			rows_dropped INTEGER NOT NULL,
			status       TEXT NOT NULL,
			error        TEXT NOT NULL DEFAULT '',
			started_at   TIMESTAMPTZ NOT NULL,
			finished_at  TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ingest_runs table: %w", err)
	}
	return &PostgresRecorder{db: db}, nil
}

// Record inserts one run entry.
func (r *PostgresRecorder) Record(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO ingest_runs (
			run_id, blob_name, rows_loaded, rows_dropped,
			status, error, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.RunID, e.Blob, e.RowsLoaded, e.RowsDropped,
		e.Status, e.Error, e.StartedAt, e.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", e.RunID, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (r *PostgresRecorder) Close() error {
	return r.db.Close()
}
