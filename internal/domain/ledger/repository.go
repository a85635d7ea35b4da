package ledger

import (
	"context"

	"provision/internal/core/id"
	"provision/internal/core/types"
)

// Repository defines persistence for ledger rows.
//
// GetForUpdate and Upsert are called inside the posting transaction; the
// implementation must lock the row (SELECT ... FOR UPDATE) so concurrent
// postings serialize on the same position.
type Repository interface {
	// Get returns the current position, or a not-found error when the
	// item has never moved at the location.
	Get(ctx context.Context, locationID, itemID id.ID) (*LocationStock, error)

	// GetForUpdate returns the position with a row lock.
	GetForUpdate(ctx context.Context, locationID, itemID id.ID) (*LocationStock, error)

	// Upsert inserts or updates a position.
	Upsert(ctx context.Context, stock *LocationStock) error

	// ListByLocation returns all positions at a location (including zero on-hand).
	ListByLocation(ctx context.Context, locationID id.ID) ([]*LocationStock, error)

	// LocationValue returns SUM(on_hand * wac) for a location, money precision.
	LocationValue(ctx context.Context, locationID id.ID) (types.Money, error)

	// SetLevels updates the min/max advisory levels for a position.
	SetLevels(ctx context.Context, locationID, itemID id.ID, minQty, maxQty *types.Quantity) error
}
