// Package warehouse provides the ClickHouse-backed sales warehouse.
// The daily_sales table is append-only: ingestion runs bulk-insert rows and
// the read side aggregates over the full table on every query.
package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// SalesRow is the canonical, type-coerced record persisted in daily_sales.
// Total is derived once at normalization time and never recomputed.
type SalesRow struct {
	StoreID   string    `ch:"store_id"`
	Timestamp time.Time `ch:"timestamp"`
	Product   string    `ch:"product"`
	Quantity  int64     `ch:"quantity"`
	Price     float64   `ch:"price"`
	Total     float64   `ch:"total"`
}

// StoreSummary is a per-store aggregate computed fresh per request.
type StoreSummary struct {
	StoreID  string
	RowCount uint64
	Revenue  float64
}

// ProductRow is a per-product aggregate for a single store.
type ProductRow struct {
	Product string
	Revenue float64
	Qty     int64
}

// Config holds ClickHouse connection configuration
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Table    string
	Debug    bool
}

// DefaultConfig returns default development configuration
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "sales_analytics",
		Username: "default",
		Password: "",
		Table:    "daily_sales",
	}
}

// Store implements the sales warehouse on ClickHouse
type Store struct {
	conn  clickhouse.Conn
	cfg   *Config
	table string
}

// NewStore creates a new ClickHouse sales store
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = "daily_sales"
	}
	return &Store{conn: conn, cfg: cfg, table: table}, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureTable creates the sales table if it does not exist yet.
// MergeTree with no deduplication: re-ingesting the same blob appends
// duplicate rows, which is the documented behavior.
func (s *Store) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			store_id  String,
			timestamp DateTime64(3, 'UTC'),
			product   String,
			quantity  Int64,
			price     Float64,
			total     Float64
		) ENGINE = MergeTree
		ORDER BY (store_id, timestamp)
	`, s.table)
	if err := s.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// Append bulk-inserts rows using a prepared batch and returns the table's
// new total row count. An empty batch is a no-op and leaves the count
// unchanged. Writes are append-only: never overwrite, never upsert.
func (s *Store) Append(ctx context.Context, rows []SalesRow) (uint64, error) {
	if len(rows) == 0 {
		return s.TotalRows(ctx)
	}

	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf(`
		INSERT INTO %s (store_id, timestamp, product, quantity, price, total)
	`, s.table))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, row := range rows {
		if err := batch.Append(
			row.StoreID, row.Timestamp, row.Product,
			row.Quantity, row.Price, row.Total,
		); err != nil {
			return 0, fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}
	return s.TotalRows(ctx)
}

// TotalRows returns the current row count of the sales table
func (s *Store) TotalRows(ctx context.Context) (uint64, error) {
	row := s.conn.QueryRow(ctx, fmt.Sprintf(`SELECT count() FROM %s`, s.table))
	var count uint64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return count, nil
}

// StoreSummaries aggregates the full table by store_id, ordered by revenue
// descending. Ties keep the engine's ordering.
func (s *Store) StoreSummaries(ctx context.Context) ([]StoreSummary, error) {
	query := fmt.Sprintf(`
		SELECT store_id,
		       count() AS row_count,
		       sum(quantity * price) AS revenue
		FROM %s
		GROUP BY store_id
		ORDER BY revenue DESC
	`, s.table)

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query store summaries: %w", err)
	}
	defer rows.Close()

	var summaries []StoreSummary
	for rows.Next() {
		var summary StoreSummary
		var revenue *float64
		if err := rows.Scan(&summary.StoreID, &summary.RowCount, &revenue); err != nil {
			return nil, fmt.Errorf("failed to scan store summary: %w", err)
		}
		summary.Revenue = coalesceRevenue(revenue)
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// TopProducts filters rows to a single store, aggregates by product, and
// returns the top groups by revenue. Parameters travel out-of-band via
// named bindings, never interpolated into the query text.
func (s *Store) TopProducts(ctx context.Context, storeID string, limit int) ([]ProductRow, error) {
	query := fmt.Sprintf(`
		SELECT product,
		       sum(quantity) AS qty,
		       sum(quantity * price) AS revenue
		FROM %s
		WHERE store_id = {store_id:String}
		GROUP BY product
		ORDER BY revenue DESC
		LIMIT {limit:UInt64}
	`, s.table)

	rows, err := s.conn.Query(ctx, query,
		clickhouse.Named("store_id", storeID),
		clickhouse.Named("limit", uint64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query top products: %w", err)
	}
	defer rows.Close()

	var products []ProductRow
	for rows.Next() {
		var product ProductRow
		var revenue *float64
		if err := rows.Scan(&product.Product, &product.Qty, &revenue); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		product.Revenue = coalesceRevenue(revenue)
		products = append(products, product)
	}
	return products, rows.Err()
}

// coalesceRevenue maps an absent aggregate to 0.0. Impossible under the
// table schema, handled anyway.
func coalesceRevenue(v *float64) float64 {
	if v == nil {
		return 0.0
	}
	return *v
}
