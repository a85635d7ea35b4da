package delivery

import (
	"context"
	"time"

	"provision/internal/core/id"
	"provision/internal/core/types"
	"provision/internal/domain"
)

// Repository defines operations for delivery documents.
type Repository interface {
	Create(ctx context.Context, doc *Delivery) error
	GetByID(ctx context.Context, docID id.ID) (*Delivery, error)
	GetByNumber(ctx context.Context, number string) (*Delivery, error)

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Delivery], error)

	// SumByPeriodLocation totals posted delivery amounts for reconciliation.
	SumByPeriodLocation(ctx context.Context, periodID, locationID id.ID) (types.Money, error)
}

// ListFilter for filtering deliveries.
type ListFilter struct {
	domain.ListFilter

	LocationID  *id.ID
	SupplierID  *id.ID
	PeriodID    *id.ID
	HasVariance *bool
	DateFrom    *time.Time
	DateTo      *time.Time
}
