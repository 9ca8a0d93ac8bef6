// salesctl - Sales Analytics Pipeline
//
// Usage:
//   salesctl load <blob_name>
//   salesctl serve [--port 8080]
//   salesctl report
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"sales-analytics/api"
	"sales-analytics/internal/blob"
	"sales-analytics/internal/ingest"
	"sales-analytics/internal/metrics"
	"sales-analytics/internal/query"
	"sales-analytics/internal/runlog"
	"sales-analytics/internal/warehouse"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// loadBlobStore is what the load command needs from object storage.
type loadBlobStore interface {
	blob.Store
	Bucket() string
}

// loadSalesStore is what the load command needs from the warehouse.
type loadSalesStore interface {
	ingest.Appender
	EnsureTable(ctx context.Context) error
	Close() error
}

// Openers are injected into the app so command actions stay testable
// without real S3 or ClickHouse connections.
type blobOpener func(c *cli.Context) (loadBlobStore, error)
type storeOpener func(c *cli.Context) (loadSalesStore, error)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	app := newApp(openS3Blobs, openWarehouse)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(openBlobs blobOpener, openStore storeOpener) *cli.App {
	return &cli.App{
		Name:    "salesctl",
		Usage:   "Sales analytics pipeline - CSV ingestion and revenue aggregation API",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "bucket",
				Usage:   "S3 bucket holding raw sales extracts",
				EnvVars: []string{"SALES_BUCKET"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-host",
				Value:   "localhost",
				Usage:   "ClickHouse host",
				EnvVars: []string{"CLICKHOUSE_HOST"},
			},
			&cli.IntFlag{
				Name:    "clickhouse-port",
				Value:   9000,
				Usage:   "ClickHouse native port",
				EnvVars: []string{"CLICKHOUSE_PORT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-database",
				Value:   "sales_analytics",
				Usage:   "ClickHouse database",
				EnvVars: []string{"CLICKHOUSE_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-table",
				Value:   "daily_sales",
				Usage:   "Sales table name",
				EnvVars: []string{"CLICKHOUSE_TABLE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-user",
				Value:   "default",
				Usage:   "ClickHouse user",
				EnvVars: []string{"CLICKHOUSE_USER"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-password",
				Value:   "",
				Usage:   "ClickHouse password",
				EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "runlog-dsn",
				Usage:   "Optional Postgres DSN for the ingest run ledger",
				EnvVars: []string{"SALES_RUNLOG_DSN"},
			},
		},

		Commands: []*cli.Command{
			loadCommand(openBlobs, openStore),
			serveCommand(),
			reportCommand(),
		},
	}
}

func openS3Blobs(c *cli.Context) (loadBlobStore, error) {
	blobs, err := blob.NewS3Store(c.Context, c.String("bucket"))
	if err != nil {
		return nil, err
	}
	return blobs, nil
}

func openWarehouse(c *cli.Context) (loadSalesStore, error) {
	store, err := warehouse.NewStore(warehouseConfig(c))
	if err != nil {
		return nil, err
	}
	return store, nil
}

func warehouseConfig(c *cli.Context) *warehouse.Config {
	return &warehouse.Config{
		Host:     c.String("clickhouse-host"),
		Port:     c.Int("clickhouse-port"),
		Database: c.String("clickhouse-database"),
		Table:    c.String("clickhouse-table"),
		Username: c.String("clickhouse-user"),
		Password: c.String("clickhouse-password"),
	}
}

// =============================================================================
// LOAD COMMAND
// =============================================================================

func loadCommand(openBlobs blobOpener, openStore storeOpener) *cli.Command {
	return &cli.Command{
		Name:      "load",
		Usage:     "Ingest one CSV blob from the bucket into the warehouse",
		ArgsUsage: "<blob_name>",
		Action: func(c *cli.Context) error {
			return runLoad(c, openBlobs, openStore)
		},
	}
}

func runLoad(c *cli.Context, openBlobs blobOpener, openStore storeOpener) error {
	if c.NArg() < 1 {
		cli.ShowSubcommandHelp(c)
		return cli.Exit("Usage: salesctl load <blob_name>\nExample: salesctl load sample_sales.csv", 2)
	}
	blobName := c.Args().First()
	ctx := c.Context

	blobs, err := openBlobs(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("blob store: %v", err), 1)
	}

	store, err := openStore(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("warehouse: %v", err), 1)
	}
	defer store.Close()

	if err := store.EnsureTable(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("warehouse: %v", err), 1)
	}

	pipeline := &ingest.Pipeline{
		Blobs:   blobs,
		Store:   store,
		Metrics: metrics.NewRegistry(),
	}

	if dsn := c.String("runlog-dsn"); dsn != "" {
		recorder, err := runlog.Open(ctx, dsn)
		if err != nil {
			// The ledger is bookkeeping; a broken ledger does not block a load.
			log.Warn().Err(err).Msg("Run ledger unavailable; continuing without it")
		} else {
			defer recorder.Close()
			pipeline.Runs = recorder
		}
	}

	result, err := pipeline.Run(ctx, blobName)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return cli.Exit(fmt.Sprintf("File not found: s3://%s/%s", blobs.Bucket(), blobName), 1)
		}
		return cli.Exit(fmt.Sprintf("ingestion failed: %v", err), 1)
	}

	if result.Skipped {
		fmt.Fprintf(c.App.Writer, "No valid rows in %s; nothing loaded (run %s)\n", blobName, result.RunID)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "Loaded %d rows from %s (dropped %d); table now has %d rows (run %s)\n",
		result.Stats.Kept, blobName, result.Stats.Dropped(), result.TableRows, result.RunID)
	return nil
}

// =============================================================================
// SERVE COMMAND
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the sales aggregation HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP listen port",
				EnvVars: []string{"PORT"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	store, err := warehouse.NewStore(warehouseConfig(c))
	if err != nil {
		return cli.Exit(fmt.Sprintf("warehouse: %v", err), 1)
	}
	defer store.Close()

	if err := store.Ping(c.Context); err != nil {
		log.Warn().Err(err).Msg("Warehouse not reachable at startup")
	}

	cfg := api.DefaultConfig()
	cfg.Port = c.Int("port")

	server := api.NewServer(query.NewService(store), metrics.NewRegistry(), cfg)
	if err := server.StartWithGracefulShutdown(); err != nil {
		return cli.Exit(fmt.Sprintf("server: %v", err), 1)
	}
	return nil
}

// =============================================================================
// REPORT COMMAND
// =============================================================================

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:   "report",
		Usage:  "Print the per-store revenue summary",
		Action: runReport,
	}
}

func runReport(c *cli.Context) error {
	store, err := warehouse.NewStore(warehouseConfig(c))
	if err != nil {
		return cli.Exit(fmt.Sprintf("warehouse: %v", err), 1)
	}
	defer store.Close()

	summaries, err := query.NewService(store).StoreSummaries(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("summary query failed: %v", err), 1)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(c.App.Writer, "No sales data.")
		return nil
	}

	fmt.Fprintf(c.App.Writer, "%-20s %10s %14s\n", "STORE", "ROWS", "REVENUE")
	for _, s := range summaries {
		fmt.Fprintf(c.App.Writer, "%-20s %10d %14s\n",
			s.StoreID, s.RowCount, decimal.NewFromFloat(s.Revenue).StringFixed(2))
	}
	return nil
}
