package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// RawBatch is a parsed extract before any validation or coercion: the header
// columns plus one textual field mapping per row. An empty string value is
// treated as a missing value downstream.
type RawBatch struct {
	Columns []string
	Records []map[string]string
}

// ParseCSV parses delimited tabular text into a RawBatch. The first record
// is the header. Structurally malformed input (no header, ragged rows) is a
// fatal error for the ingestion run.
func ParseCSV(data []byte) (RawBatch, error) {
	r := csv.NewReader(bytes.NewReader(data))

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return RawBatch{}, fmt.Errorf("empty file: no header row")
		}
		return RawBatch{}, fmt.Errorf("failed to parse csv header: %w", err)
	}

	rows, err := r.ReadAll()
	if err != nil {
		return RawBatch{}, fmt.Errorf("failed to parse csv rows: %w", err)
	}

	batch := RawBatch{
		Columns: header,
		Records: make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		record := make(map[string]string, len(header))
		for i, col := range header {
			record[col] = row[i]
		}
		batch.Records = append(batch.Records, record)
	}
	return batch, nil
}
