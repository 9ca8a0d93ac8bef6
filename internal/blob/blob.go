// Package blob abstracts raw object storage for ingestion sources.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested blob does not exist.
var ErrNotFound = errors.New("blob not found")

// Store fetches raw bytes by blob name.
type Store interface {
	// Fetch retrieves the full contents of the named blob.
	// Returns an error wrapping ErrNotFound if the blob does not exist.
	Fetch(ctx context.Context, name string) ([]byte, error)
}
