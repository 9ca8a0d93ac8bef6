// Package query implements the read path: parameterized revenue
// aggregations over the sales warehouse, with the empty-result policy the
// API surfaces as not-found.
package query

import (
	"context"
	"errors"
	"fmt"

	"sales-analytics/internal/warehouse"
)

// Limit bounds for the top-products operation.
const (
	MinLimit     = 1
	MaxLimit     = 50
	DefaultLimit = 5
)

// ErrInvalidLimit is returned before any query executes when the requested
// limit falls outside [MinLimit, MaxLimit].
var ErrInvalidLimit = fmt.Errorf("limit must be between %d and %d", MinLimit, MaxLimit)

// ErrMissingStoreID is returned when the required store_id input is empty.
var ErrMissingStoreID = errors.New("store_id is required")

// NoDataError signals that a store has no rows. An unknown store and a
// store with no data are indistinguishable and surface identically.
type NoDataError struct {
	StoreID string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data for store_id=%s", e.StoreID)
}

// SalesReader is the warehouse read surface the service aggregates over.
type SalesReader interface {
	StoreSummaries(ctx context.Context) ([]warehouse.StoreSummary, error)
	TopProducts(ctx context.Context, storeID string, limit int) ([]warehouse.ProductRow, error)
}

// Service executes the two aggregation reads. It is stateless and
// request-scoped: every call re-runs the aggregation against the full
// table, with no caching and no shared mutable state.
type Service struct {
	reader SalesReader
}

// NewService creates an aggregation query service over the given reader.
func NewService(reader SalesReader) *Service {
	return &Service{reader: reader}
}

// StoreSummaries returns per-store row counts and revenue, ordered by
// revenue descending. All stores come back in one response; an empty table
// yields an empty list.
func (s *Service) StoreSummaries(ctx context.Context) ([]warehouse.StoreSummary, error) {
	summaries, err := s.reader.StoreSummaries(ctx)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []warehouse.StoreSummary{}
	}
	return summaries, nil
}

// TopProducts returns the highest-revenue products for one store, at most
// limit groups. Inputs are validated before any query executes. An empty
// result is a *NoDataError, never an empty list.
func (s *Service) TopProducts(ctx context.Context, storeID string, limit int) ([]warehouse.ProductRow, error) {
	if storeID == "" {
		return nil, ErrMissingStoreID
	}
	if limit < MinLimit || limit > MaxLimit {
		return nil, ErrInvalidLimit
	}

	products, err := s.reader.TopProducts(ctx, storeID, limit)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, &NoDataError{StoreID: storeID}
	}
	return products, nil
}
