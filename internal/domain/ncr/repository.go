package ncr

import (
	"context"

	"provision/internal/core/id"
	"provision/internal/core/types"
	"provision/internal/domain"
)

// Repository defines persistence for NCRs.
type Repository interface {
	Create(ctx context.Context, report *NCR) error
	GetByID(ctx context.Context, reportID id.ID) (*NCR, error)
	GetForUpdate(ctx context.Context, reportID id.ID) (*NCR, error)
	Update(ctx context.Context, report *NCR) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*NCR], error)

	// CountOpenByPeriod returns the number of reports still awaiting a
	// supplier outcome (OPEN or SENT) in a period.
	CountOpenByPeriod(ctx context.Context, periodID id.ID) (int, error)

	// SumResolvedByPeriodLocation totals report values per financial impact
	// for one period and location (feeds reconciliation). CREDITED counts
	// as a credit and REJECTED as a loss even before formal resolution.
	SumResolvedByPeriodLocation(ctx context.Context, periodID, locationID id.ID, impact FinancialImpact) (types.Money, error)
}

// ListFilter for filtering reports.
type ListFilter struct {
	domain.ListFilter

	LocationID *id.ID
	PeriodID   *id.ID
	SupplierID *id.ID
	DeliveryID *id.ID
	Status     *Status
	Type       *Type
}
