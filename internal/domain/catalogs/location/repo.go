package location

import (
	"context"

	"provision/internal/core/id"
	"provision/internal/domain"
)

// Repository defines the interface for Location persistence.
type Repository interface {
	domain.CatalogRepository[*Location]

	// ListActive retrieves all active locations.
	ListActive(ctx context.Context) ([]*Location, error)

	// SetActive activates or deactivates a location.
	SetActive(ctx context.Context, id id.ID, active bool) error
}
