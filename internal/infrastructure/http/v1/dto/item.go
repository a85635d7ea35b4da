package dto

import (
	"github.com/shopspring/decimal"

	"provision/internal/domain/catalogs/item"
)

// CreateItemRequest for creating items.
type CreateItemRequest struct {
	Code           string          `json:"code"`
	Name           string          `json:"name" binding:"required"`
	Unit           string          `json:"unit" binding:"required,oneof=kg ltr each case tray"`
	Category       string          `json:"category"`
	ReferencePrice decimal.Decimal `json:"referencePrice"`
	Description    *string         `json:"description"`
}

// ToItem maps the request onto a new domain entity.
func (r CreateItemRequest) ToItem() *item.Item {
	it := item.NewItem(r.Code, r.Name, item.Unit(r.Unit), r.ReferencePrice)
	it.Category = r.Category
	it.Description = r.Description
	return it
}

// UpdateItemRequest for updating items.
type UpdateItemRequest struct {
	Name           *string          `json:"name"`
	Unit           *string          `json:"unit"`
	Category       *string          `json:"category"`
	ReferencePrice *decimal.Decimal `json:"referencePrice"`
	Description    *string          `json:"description"`
	Version        int              `json:"version" binding:"required,min=1"`
}

// Apply merges non-nil fields onto the existing entity.
func (r UpdateItemRequest) Apply(existing *item.Item) *item.Item {
	if r.Name != nil {
		existing.Name = *r.Name
	}
	if r.Unit != nil {
		existing.Unit = item.Unit(*r.Unit)
	}
	if r.Category != nil {
		existing.Category = *r.Category
	}
	if r.ReferencePrice != nil {
		existing.ReferencePrice = *r.ReferencePrice
	}
	if r.Description != nil {
		existing.Description = r.Description
	}
	existing.Version = r.Version
	return existing
}

// ItemResponse is the public view of an item.
type ItemResponse struct {
	CatalogResponse
	Unit           string          `json:"unit"`
	Category       string          `json:"category,omitempty"`
	ReferencePrice decimal.Decimal `json:"referencePrice"`
	Description    *string         `json:"description,omitempty"`
	IsActive       bool            `json:"isActive"`
}

// FromItem creates ItemResponse from the domain entity.
func FromItem(i *item.Item) ItemResponse {
	return ItemResponse{
		CatalogResponse: FromCatalog(i.Catalog),
		Unit:            string(i.Unit),
		Category:        i.Category,
		ReferencePrice:  i.ReferencePrice,
		Description:     i.Description,
		IsActive:        i.IsActive,
	}
}
