package reconciliation

import (
	"context"

	"provision/internal/core/id"
)

// Repository stores SAVED reconciliation snapshots. COMPUTED rows are
// never written; a saved row replaces any earlier snapshot for the same
// period and location.
type Repository interface {
	// GetSaved returns the persisted snapshot, not-found when the pair
	// has never been saved.
	GetSaved(ctx context.Context, periodID, locationID id.ID) (*Reconciliation, error)

	// Save upserts a snapshot keyed by (period_id, location_id).
	Save(ctx context.Context, rec *Reconciliation) error

	// ListSavedByPeriod returns all snapshots of a period.
	ListSavedByPeriod(ctx context.Context, periodID id.ID) ([]*Reconciliation, error)
}
