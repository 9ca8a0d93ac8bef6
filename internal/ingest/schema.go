// Package ingest implements the write path: CSV parsing, schema validation,
// row normalization, and the run orchestration that appends clean batches
// to the warehouse.
package ingest

import (
	"fmt"
	"strings"
)

// RequiredColumns are the columns every incoming sales extract must carry.
var RequiredColumns = []string{"store_id", "timestamp", "product", "quantity", "price"}

// SchemaError reports required columns entirely absent from a batch.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ValidateColumns checks that every required column is present. It validates
// column presence only; missing values inside a present column are the
// normalizer's concern.
func ValidateColumns(columns []string) error {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	var missing []string
	for _, c := range RequiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}
