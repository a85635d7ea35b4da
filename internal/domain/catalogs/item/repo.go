package item

import (
	"context"

	"provision/internal/core/id"
	"provision/internal/domain"
)

// Repository defines the interface for Item persistence.
type Repository interface {
	domain.CatalogRepository[*Item]

	// ListActive retrieves all active items.
	ListActive(ctx context.Context) ([]*Item, error)

	// ListByCategory retrieves items in a category.
	ListByCategory(ctx context.Context, category string, filter domain.ListFilter) (domain.ListResult[*Item], error)

	// SetActive activates or deactivates an item.
	SetActive(ctx context.Context, id id.ID, active bool) error
}
