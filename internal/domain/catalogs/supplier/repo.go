package supplier

import (
	"context"

	"provision/internal/core/id"
	"provision/internal/domain"
)

// Repository defines the interface for Supplier persistence.
type Repository interface {
	domain.CatalogRepository[*Supplier]

	// SetActive activates or deactivates a supplier.
	SetActive(ctx context.Context, id id.ID, active bool) error
}
