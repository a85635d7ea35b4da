package issue

import (
	"context"
	"time"

	"provision/internal/core/id"
	"provision/internal/core/types"
	"provision/internal/domain"
)

// Repository defines operations for issue documents.
type Repository interface {
	Create(ctx context.Context, doc *Issue) error
	GetByID(ctx context.Context, docID id.ID) (*Issue, error)

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Issue], error)

	// SumByPeriodLocation totals posted issue values for reconciliation.
	SumByPeriodLocation(ctx context.Context, periodID, locationID id.ID) (types.Money, error)
}

// ListFilter for filtering issues.
type ListFilter struct {
	domain.ListFilter

	LocationID *id.ID
	PeriodID   *id.ID
	CostCentre *CostCentre
	DateFrom   *time.Time
	DateTo     *time.Time
}
