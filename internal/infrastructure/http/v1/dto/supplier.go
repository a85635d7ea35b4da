package dto

import (
	"provision/internal/domain/catalogs/supplier"
)

// CreateSupplierRequest for creating suppliers.
type CreateSupplierRequest struct {
	Code        string  `json:"code"`
	Name        string  `json:"name" binding:"required"`
	ContactName *string `json:"contactName"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
}

// ToSupplier maps the request onto a new domain entity.
func (r CreateSupplierRequest) ToSupplier() *supplier.Supplier {
	sup := supplier.NewSupplier(r.Code, r.Name)
	sup.ContactName = r.ContactName
	sup.Email = r.Email
	sup.Phone = r.Phone
	sup.Address = r.Address
	return sup
}

// UpdateSupplierRequest for updating suppliers.
type UpdateSupplierRequest struct {
	Name        *string `json:"name"`
	ContactName *string `json:"contactName"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	Version     int     `json:"version" binding:"required,min=1"`
}

// Apply merges non-nil fields onto the existing entity.
func (r UpdateSupplierRequest) Apply(existing *supplier.Supplier) *supplier.Supplier {
	if r.Name != nil {
		existing.Name = *r.Name
	}
	if r.ContactName != nil {
		existing.ContactName = r.ContactName
	}
	if r.Email != nil {
		existing.Email = r.Email
	}
	if r.Phone != nil {
		existing.Phone = r.Phone
	}
	if r.Address != nil {
		existing.Address = r.Address
	}
	existing.Version = r.Version
	return existing
}

// SupplierResponse is the public view of a supplier.
type SupplierResponse struct {
	CatalogResponse
	ContactName *string `json:"contactName,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Address     *string `json:"address,omitempty"`
	IsActive    bool    `json:"isActive"`
}

// FromSupplier creates SupplierResponse from the domain entity.
func FromSupplier(s *supplier.Supplier) SupplierResponse {
	return SupplierResponse{
		CatalogResponse: FromCatalog(s.Catalog),
		ContactName:     s.ContactName,
		Email:           s.Email,
		Phone:           s.Phone,
		Address:         s.Address,
		IsActive:        s.IsActive,
	}
}
