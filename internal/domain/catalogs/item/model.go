// Package item provides the Item catalog.
// Items are the food and consumable products tracked by the stock ledger.
package item

import (
	"context"

	"github.com/shopspring/decimal"

	"provision/internal/core/apperror"
	"provision/internal/core/entity"
)

// Unit is the unit of measure an item is counted in.
type Unit string

const (
	UnitKG    Unit = "kg"
	UnitLitre Unit = "ltr"
	UnitEach  Unit = "each"
	UnitCase  Unit = "case"
	UnitTray  Unit = "tray"
)

// Item represents a product tracked by the stock ledger.
type Item struct {
	entity.Catalog

	// Unit is the unit of measure
	Unit Unit `db:"unit" json:"unit"`

	// Category groups items for reporting (e.g. "dairy", "dry goods")
	Category string `db:"category" json:"category"`

	// ReferencePrice is the current agreed supplier price per unit.
	// It is snapshotted into period prices when a period opens.
	ReferencePrice decimal.Decimal `db:"reference_price" json:"referencePrice"`

	// Description is a detailed description
	Description *string `db:"description" json:"description,omitempty"`

	// IsActive indicates the item can appear on new documents
	IsActive bool `db:"is_active" json:"isActive"`
}

// NewItem creates a new Item with required fields.
func NewItem(code, name string, unit Unit, referencePrice decimal.Decimal) *Item {
	return &Item{
		Catalog:        entity.NewCatalog(code, name),
		Unit:           unit,
		ReferencePrice: referencePrice,
		IsActive:       true,
	}
}

// Validate implements entity.Validatable interface.
func (i *Item) Validate(ctx context.Context) error {
	if err := i.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !isValidUnit(i.Unit) {
		return apperror.NewValidation("invalid unit of measure").
			WithDetail("field", "unit").
			WithDetail("value", string(i.Unit))
	}

	if i.ReferencePrice.IsNegative() {
		return apperror.NewValidation("reference price cannot be negative").
			WithDetail("field", "referencePrice")
	}

	return nil
}

func isValidUnit(u Unit) bool {
	switch u {
	case UnitKG, UnitLitre, UnitEach, UnitCase, UnitTray:
		return true
	}
	return false
}
