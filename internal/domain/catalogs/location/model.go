// Package location provides the Location catalog.
// Locations are the physical sites (kitchens, stores, warehouses) that hold stock.
package location

import (
	"context"

	"provision/internal/core/apperror"
	"provision/internal/core/entity"
)

// LocationType defines the kind of site.
type LocationType string

const (
	TypeKitchen   LocationType = "kitchen"
	TypeStore     LocationType = "store"
	TypeCentral   LocationType = "central"
	TypeWarehouse LocationType = "warehouse"
)

// Location represents a physical site that holds stock.
type Location struct {
	entity.Catalog

	// Type defines the site category
	Type LocationType `db:"type" json:"type"`

	// Address is the physical address
	Address *string `db:"address" json:"address,omitempty"`

	// IsActive indicates if the location is operational.
	// Locations are deactivated, never deleted: the stock ledger references them.
	IsActive bool `db:"is_active" json:"isActive"`
}

// NewLocation creates a new Location with required fields.
func NewLocation(code, name string, locType LocationType) *Location {
	return &Location{
		Catalog:  entity.NewCatalog(code, name),
		Type:     locType,
		IsActive: true,
	}
}

// Validate implements entity.Validatable interface.
func (l *Location) Validate(ctx context.Context) error {
	if err := l.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !isValidLocationType(l.Type) {
		return apperror.NewValidation("invalid location type").
			WithDetail("field", "type").
			WithDetail("value", string(l.Type))
	}

	return nil
}

// CanHoldStock returns true if the location can participate in stock movements.
func (l *Location) CanHoldStock() bool {
	return l.IsActive
}

func isValidLocationType(t LocationType) bool {
	switch t {
	case TypeKitchen, TypeStore, TypeCentral, TypeWarehouse:
		return true
	}
	return false
}
