package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"sales-analytics/internal/warehouse"
)

// timestampLayouts are tried in order when parsing the timestamp column.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

// NormalizeStats counts what happened to a batch during normalization.
type NormalizeStats struct {
	Input            int
	Kept             int
	DroppedMissing   int
	DroppedTimestamp int
}

// Dropped returns the total number of rows excluded from the batch.
func (s NormalizeStats) Dropped() int {
	return s.DroppedMissing + s.DroppedTimestamp
}

// Normalize transforms a raw batch into canonical sales rows.
//
// Per-field policy, applied in order:
//   - a missing (empty) store_id, price, quantity, or timestamp drops the
//     row; missing product is tolerated and kept as-is
//   - store_id and product stay strings
//   - quantity parses numerically and truncates to integer, 0 on failure
//   - price parses as float, 0.0 on failure
//   - an unparseable timestamp drops the row; it is never defaulted
//   - total = quantity * price for every surviving row
//
// The asymmetry between quantity/price (default) and timestamp (drop) is a
// stated policy, not an accident. Dropping every row is success with an
// empty batch, not an error.
func Normalize(batch RawBatch) ([]warehouse.SalesRow, NormalizeStats, error) {
	stats := NormalizeStats{Input: len(batch.Records)}

	if err := ValidateColumns(batch.Columns); err != nil {
		return nil, stats, err
	}

	rows := make([]warehouse.SalesRow, 0, len(batch.Records))
	for _, record := range batch.Records {
		if isMissing(record["store_id"]) || isMissing(record["price"]) ||
			isMissing(record["quantity"]) || isMissing(record["timestamp"]) {
			stats.DroppedMissing++
			continue
		}

		ts, ok := parseTimestamp(record["timestamp"])
		if !ok {
			stats.DroppedTimestamp++
			continue
		}

		quantity := parseQuantity(record["quantity"])
		price := parsePrice(record["price"])

		rows = append(rows, warehouse.SalesRow{
			StoreID:   record["store_id"],
			Timestamp: ts,
			Product:   record["product"],
			Quantity:  quantity,
			Price:     price,
			Total:     float64(quantity) * price,
		})
	}
	stats.Kept = len(rows)

	log.Info().
		Int("input_rows", stats.Input).
		Int("kept_rows", stats.Kept).
		Int("dropped_rows", stats.Dropped()).
		Msg("Normalized batch")

	return rows, stats, nil
}

// isMissing reports whether a field value is absent. Only the empty string
// counts: an empty CSV field is the sole missing-value representation in
// the extracts, so whitespace-only values are present and fall through to
// the per-field parsers.
func isMissing(v string) bool {
	return v == ""
}

// parseQuantity parses a numeric string and truncates toward zero.
// Unparseable values coerce to 0.
func parseQuantity(v string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(f)
}

// parsePrice parses a float. Unparseable values coerce to 0.0.
func parsePrice(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0.0
	}
	return f
}

// parseTimestamp parses the timestamp column into a UTC instant.
func parseTimestamp(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
