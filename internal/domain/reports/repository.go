package reports

import (
	"context"

	"provision/internal/core/id"
)

// Repository defines report data access.
type Repository interface {
	// Stock
	GetStockOnHand(ctx context.Context, filter StockOnHandFilter) (*StockOnHandReport, error)
	GetPeriodMovement(ctx context.Context, filter PeriodMovementFilter) (*PeriodMovementReport, error)

	// Reconciliation
	GetReconciliationReport(ctx context.Context, periodID id.ID, locationID *id.ID) (*ReconciliationReport, error)

	// Document journal
	GetDocumentJournal(ctx context.Context, filter DocumentJournalFilter) (*DocumentJournal, error)
	GetDocumentTypeSummary(ctx context.Context, filter DocumentJournalFilter) ([]DocumentTypeSummary, error)
}
