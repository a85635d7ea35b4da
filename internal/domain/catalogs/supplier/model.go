// Package supplier provides the Supplier catalog.
package supplier

import (
	"context"
	"regexp"

	"provision/internal/core/apperror"
	"provision/internal/core/entity"
)

// Supplier represents a vendor that delivers goods.
type Supplier struct {
	entity.Catalog

	// ContactName is the primary contact person
	ContactName *string `db:"contact_name" json:"contactName,omitempty"`

	// Email for NCR correspondence
	Email *string `db:"email" json:"email,omitempty"`

	// Phone number
	Phone *string `db:"phone" json:"phone,omitempty"`

	// Address is the supplier address
	Address *string `db:"address" json:"address,omitempty"`

	// IsActive indicates the supplier can appear on new deliveries
	IsActive bool `db:"is_active" json:"isActive"`
}

// NewSupplier creates a new Supplier with required fields.
func NewSupplier(code, name string) *Supplier {
	return &Supplier{
		Catalog:  entity.NewCatalog(code, name),
		IsActive: true,
	}
}

// Validate implements entity.Validatable interface.
func (s *Supplier) Validate(ctx context.Context) error {
	if err := s.Catalog.Validate(ctx); err != nil {
		return err
	}

	if s.Email != nil && *s.Email != "" && !isValidEmail(*s.Email) {
		return apperror.NewValidation("invalid email format").
			WithDetail("field", "email").
			WithDetail("value", *s.Email)
	}

	return nil
}

func isValidEmail(email string) bool {
	return regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`).MatchString(email)
}
