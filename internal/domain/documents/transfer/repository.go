package transfer

import (
	"context"
	"time"

	"provision/internal/core/id"
	"provision/internal/core/types"
	"provision/internal/domain"
)

// Repository defines operations for transfer documents.
type Repository interface {
	Create(ctx context.Context, doc *Transfer) error
	GetByID(ctx context.Context, docID id.ID) (*Transfer, error)

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Transfer], error)

	// ClaimForApproval atomically moves a PENDING_APPROVAL transfer to
	// APPROVED (compare-and-swap on status). Returns false when the row
	// was not in PENDING_APPROVAL, which is how a second concurrent
	// approval loses the race.
	ClaimForApproval(ctx context.Context, docID, approvedBy id.ID, approvedAt time.Time) (bool, error)

	// MarkCompleted stamps the stock movement time and sets COMPLETED.
	MarkCompleted(ctx context.Context, docID id.ID, transferredAt time.Time) error

	// Reconciliation sums over completed transfers.
	SumInByPeriodLocation(ctx context.Context, periodID, locationID id.ID) (types.Money, error)
	SumOutByPeriodLocation(ctx context.Context, periodID, locationID id.ID) (types.Money, error)
}

// ListFilter for filtering transfers.
type ListFilter struct {
	domain.ListFilter

	FromLocationID *id.ID
	ToLocationID   *id.ID
	PeriodID       *id.ID
	Status         *Status
	DateFrom       *time.Time
	DateTo         *time.Time
}
