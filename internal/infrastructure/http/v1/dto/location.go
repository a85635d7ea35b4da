package dto

import (
	"provision/internal/domain/catalogs/location"
)

// CreateLocationRequest for creating locations.
type CreateLocationRequest struct {
	Code    string  `json:"code"`
	Name    string  `json:"name" binding:"required"`
	Type    string  `json:"type" binding:"required,oneof=kitchen store central warehouse"`
	Address *string `json:"address"`
}

// ToLocation maps the request onto a new domain entity.
func (r CreateLocationRequest) ToLocation() *location.Location {
	loc := location.NewLocation(r.Code, r.Name, location.LocationType(r.Type))
	loc.Address = r.Address
	return loc
}

// UpdateLocationRequest for updating locations.
type UpdateLocationRequest struct {
	Name    *string `json:"name"`
	Type    *string `json:"type"`
	Address *string `json:"address"`
	Version int     `json:"version" binding:"required,min=1"`
}

// Apply merges non-nil fields onto the existing entity.
func (r UpdateLocationRequest) Apply(existing *location.Location) *location.Location {
	if r.Name != nil {
		existing.Name = *r.Name
	}
	if r.Type != nil {
		existing.Type = location.LocationType(*r.Type)
	}
	if r.Address != nil {
		existing.Address = r.Address
	}
	existing.Version = r.Version
	return existing
}

// LocationResponse is the public view of a location.
type LocationResponse struct {
	CatalogResponse
	Type     string  `json:"type"`
	Address  *string `json:"address,omitempty"`
	IsActive bool    `json:"isActive"`
}

// FromLocation creates LocationResponse from the domain entity.
func FromLocation(l *location.Location) LocationResponse {
	return LocationResponse{
		CatalogResponse: FromCatalog(l.Catalog),
		Type:            string(l.Type),
		Address:         l.Address,
		IsActive:        l.IsActive,
	}
}
