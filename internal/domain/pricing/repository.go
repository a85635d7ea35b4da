package pricing

import (
	"context"

	"provision/internal/core/id"
)

// Repository defines persistence for locked period prices.
type Repository interface {
	// BulkInsert writes the price snapshot for a period. Fails with a
	// conflict when any (period, item) row already exists; snapshots are
	// never rewritten.
	BulkInsert(ctx context.Context, prices []*ItemPrice) error

	// Get returns the locked price of one item for one period.
	Get(ctx context.Context, periodID, itemID id.ID) (*ItemPrice, error)

	// ListByPeriod returns the full snapshot of a period.
	ListByPeriod(ctx context.Context, periodID id.ID) ([]*ItemPrice, error)

	// ExistsForPeriod reports whether a snapshot exists.
	ExistsForPeriod(ctx context.Context, periodID id.ID) (bool, error)
}
