package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var salesColumns = []string{"store_id", "timestamp", "product", "quantity", "price"}

func record(storeID, ts, product, quantity, price string) map[string]string {
	return map[string]string{
		"store_id":  storeID,
		"timestamp": ts,
		"product":   product,
		"quantity":  quantity,
		"price":     price,
	}
}

func TestNormalizeHappyPath(t *testing.T) {
	batch := RawBatch{
		Columns: salesColumns,
		Records: []map[string]string{
			record("A", "2024-03-01T10:00:00Z", "widget", "2", "10"),
		},
	}

	rows, stats, err := Normalize(batch)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "A", row.StoreID)
	assert.Equal(t, "widget", row.Product)
	assert.Equal(t, int64(2), row.Quantity)
	assert.Equal(t, 10.0, row.Price)
	assert.Equal(t, 20.0, row.Total)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), row.Timestamp)
	assert.Equal(t, time.UTC, row.Timestamp.Location())
	assert.Equal(t, NormalizeStats{Input: 1, Kept: 1}, stats)
}

func TestNormalizeMissingColumnsFails(t *testing.T) {
	batch := RawBatch{
		Columns: []string{"store_id", "product"},
		Records: []map[string]string{{"store_id": "A", "product": "x"}},
	}
	_, _, err := Normalize(batch)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"timestamp", "quantity", "price"}, schemaErr.Missing)
}

func TestNormalizeDropsRowsWithMissingEssentials(t *testing.T) {
	tests := []struct {
		name string
		rec  map[string]string
	}{
		{"missing store_id", record("", "2024-03-01", "x", "1", "2")},
		{"missing timestamp", record("A", "", "x", "1", "2")},
		{"missing quantity", record("A", "2024-03-01", "x", "", "2")},
		{"missing price", record("A", "2024-03-01", "x", "1", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, stats, err := Normalize(RawBatch{Columns: salesColumns, Records: []map[string]string{tt.rec}})
			require.NoError(t, err)
			assert.Empty(t, rows)
			assert.Equal(t, 1, stats.DroppedMissing)
		})
	}
}

func TestNormalizeWhitespaceValuesAreNotMissing(t *testing.T) {
	// A whitespace-only essential is a present value, not a missing one:
	// the row survives the missing-field drop and each field goes through
	// its own coercion instead (store_id kept verbatim, quantity and price
	// coerce to zero, an unparseable timestamp still drops the row).
	rows, stats, err := Normalize(RawBatch{
		Columns: salesColumns,
		Records: []map[string]string{record(" ", "2024-03-01", "x", " ", " ")},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, " ", rows[0].StoreID)
	assert.Equal(t, int64(0), rows[0].Quantity)
	assert.Equal(t, 0.0, rows[0].Price)
	assert.Zero(t, stats.DroppedMissing)

	rows, stats, err = Normalize(RawBatch{
		Columns: salesColumns,
		Records: []map[string]string{record("A", "   ", "x", "1", "2")},
	})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 1, stats.DroppedTimestamp)
}

func TestNormalizeMissingProductTolerated(t *testing.T) {
	batch := RawBatch{
		Columns: salesColumns,
		Records: []map[string]string{record("A", "2024-03-01", "", "1", "2")},
	}
	rows, _, err := Normalize(batch)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Product)
}

func TestNormalizeQuantityCoercion(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{"3", 3},
		{"3.9", 3}, // truncated, not rounded
		{"-2", -2},
		{"abc", 0},
		{"NaN", 0},
		{"Inf", 0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rows, _, err := Normalize(RawBatch{
				Columns: salesColumns,
				Records: []map[string]string{record("A", "2024-03-01", "x", tt.raw, "2")},
			})
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.want, rows[0].Quantity)
		})
	}
}

func TestNormalizePriceCoercion(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"9.99", 9.99},
		{"0", 0.0},
		{"not-a-price", 0.0},
		{"NaN", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rows, _, err := Normalize(RawBatch{
				Columns: salesColumns,
				Records: []map[string]string{record("A", "2024-03-01", "x", "1", tt.raw)},
			})
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.want, rows[0].Price)
		})
	}
}

func TestNormalizeBadTimestampDropsRow(t *testing.T) {
	// Unlike quantity and price, a bad timestamp drops the row instead of
	// defaulting it.
	batch := RawBatch{
		Columns: salesColumns,
		Records: []map[string]string{
			record("A", "yesterday-ish", "x", "1", "2"),
			record("B", "2024-03-01 15:04:05", "y", "1", "2"),
		},
	}
	rows, stats, err := Normalize(batch)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "B", rows[0].StoreID)
	assert.Equal(t, 1, stats.DroppedTimestamp)
}

func TestNormalizeTimestampLayouts(t *testing.T) {
	for _, raw := range []string{
		"2024-03-01T10:00:00Z",
		"2024-03-01T10:00:00+02:00",
		"2024-03-01 10:00:00",
		"2024-03-01",
		"2024/03/01",
	} {
		t.Run(raw, func(t *testing.T) {
			rows, _, err := Normalize(RawBatch{
				Columns: salesColumns,
				Records: []map[string]string{record("A", raw, "x", "1", "2")},
			})
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, time.UTC, rows[0].Timestamp.Location())
		})
	}
}

func TestNormalizeTotalIsQuantityTimesPrice(t *testing.T) {
	batch := RawBatch{
		Columns: salesColumns,
		Records: []map[string]string{
			record("A", "2024-03-01", "x", "2", "10.1"),
			record("A", "2024-03-01", "y", "bad", "10.1"), // quantity -> 0
			record("A", "2024-03-01", "z", "3", "bad"),    // price -> 0.0
		},
	}
	rows, _, err := Normalize(batch)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, float64(row.Quantity)*row.Price, row.Total)
	}
}

func TestNormalizeEmptyBatch(t *testing.T) {
	rows, stats, err := Normalize(RawBatch{Columns: salesColumns})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 0, stats.Input)
}

func TestNormalizeAllRowsDroppedIsNotAnError(t *testing.T) {
	batch := RawBatch{
		Columns: salesColumns,
		Records: []map[string]string{
			record("", "2024-03-01", "x", "1", "2"),
			record("A", "garbage", "x", "1", "2"),
		},
	}
	rows, stats, err := Normalize(batch)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 2, stats.Dropped())
}
