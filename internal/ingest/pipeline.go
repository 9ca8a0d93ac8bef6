package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"sales-analytics/internal/blob"
	"sales-analytics/internal/metrics"
	"sales-analytics/internal/runlog"
	"sales-analytics/internal/warehouse"
)

// Appender is the warehouse write surface the pipeline needs.
type Appender interface {
	// Append bulk-inserts rows append-only and returns the table's new
	// total row count.
	Append(ctx context.Context, rows []warehouse.SalesRow) (uint64, error)
}

// Pipeline orchestrates one ingestion run: fetch, parse, validate,
// normalize, append. Clients are injected so the run stays testable and
// free of process-exit side effects; the caller owns exit-code mapping.
type Pipeline struct {
	Blobs   blob.Store
	Store   Appender
	Runs    runlog.Recorder   // optional
	Metrics *metrics.Registry // optional
}

// RunResult reports what a single ingestion run did.
type RunResult struct {
	RunID     uuid.UUID
	Blob      string
	Stats     NormalizeStats
	Skipped   bool // true when the normalized batch was empty and no write happened
	TableRows uint64
	Duration  time.Duration
}

// Run executes one ingestion run for a single named blob.
//
// A missing blob, a structurally malformed file, a schema error, or a write
// failure is terminal for the run; there are no retries. Individual
// malformed rows are dropped by normalization, not surfaced as errors.
// Re-running the same blob appends duplicate rows.
func (p *Pipeline) Run(ctx context.Context, blobName string) (*RunResult, error) {
	result := &RunResult{
		RunID: uuid.New(),
		Blob:  blobName,
	}
	started := time.Now()

	log.Info().
		Str("run_id", result.RunID.String()).
		Str("blob", blobName).
		Msg("Starting ingestion run")

	rows, err := p.load(ctx, blobName, result)
	result.Duration = time.Since(started)

	if err != nil {
		p.countRun(func(r *metrics.Registry) { r.RunsFailed.Inc() })
		p.record(ctx, result, started, runlog.StatusFailed, err)
		return result, err
	}

	if p.Metrics != nil {
		p.Metrics.RowsIngested.Add(float64(result.Stats.Kept))
		p.Metrics.RowsDropped.Add(float64(result.Stats.Dropped()))
	}

	if result.Skipped {
		log.Warn().
			Str("run_id", result.RunID.String()).
			Str("blob", blobName).
			Msg("No valid rows after normalization; skipping load")
		p.countRun(func(r *metrics.Registry) { r.RunsEmpty.Inc() })
		p.record(ctx, result, started, runlog.StatusEmpty, nil)
		return result, nil
	}

	log.Info().
		Str("run_id", result.RunID.String()).
		Int("rows_loaded", len(rows)).
		Uint64("table_rows", result.TableRows).
		Dur("duration", result.Duration).
		Msg("Load complete")
	p.countRun(func(r *metrics.Registry) { r.RunsLoaded.Inc() })
	p.record(ctx, result, started, runlog.StatusLoaded, nil)
	return result, nil
}

func (p *Pipeline) load(ctx context.Context, blobName string, result *RunResult) ([]warehouse.SalesRow, error) {
	data, err := p.Blobs.Fetch(ctx, blobName)
	if err != nil {
		return nil, err
	}

	batch, err := ParseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", blobName, err)
	}

	if err := ValidateColumns(batch.Columns); err != nil {
		return nil, err
	}

	rows, stats, err := Normalize(batch)
	if err != nil {
		return nil, err
	}
	result.Stats = stats

	if len(rows) == 0 {
		result.Skipped = true
		return nil, nil
	}

	total, err := p.Store.Append(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to append %d rows: %w", len(rows), err)
	}
	result.TableRows = total
	return rows, nil
}

func (p *Pipeline) countRun(inc func(*metrics.Registry)) {
	if p.Metrics != nil {
		inc(p.Metrics)
	}
}

// record writes the run outcome to the ledger. Ledger failures are logged
// and swallowed so bookkeeping never changes a run's result.
func (p *Pipeline) record(ctx context.Context, result *RunResult, started time.Time, status string, runErr error) {
	if p.Runs == nil {
		return
	}
	entry := runlog.Entry{
		RunID:       result.RunID,
		Blob:        result.Blob,
		RowsLoaded:  result.Stats.Kept,
		RowsDropped: result.Stats.Dropped(),
		Status:      status,
		StartedAt:   started.UTC(),
		FinishedAt:  started.Add(result.Duration).UTC(),
	}
	if runErr != nil {
		entry.Error = runErr.Error()
		entry.RowsLoaded = 0
	}
	if err := p.Runs.Record(ctx, entry); err != nil {
		log.Warn().Err(err).Str("run_id", result.RunID.String()).Msg("Failed to record run ledger entry")
	}
}
