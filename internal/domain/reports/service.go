package reports

import (
	"context"
	"fmt"
	"time"

	"provision/internal/core/apperror"
	appctx "provision/internal/core/context"
	"provision/internal/core/id"
)

// Service provides report generation operations.
type Service struct {
	repo Repository
}

// NewService creates a new reports service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetStockOnHand generates the stock on hand report.
func (s *Service) GetStockOnHand(ctx context.Context, filter StockOnHandFilter) (*StockOnHandReport, error) {
	var err error
	if filter.LocationIDs, err = scopeLocations(ctx, filter.LocationIDs); err != nil {
		return nil, err
	}

	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}

	report, err := s.repo.GetStockOnHand(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get stock on hand report: %w", err)
	}
	if report.AsOf.IsZero() {
		report.AsOf = time.Now()
	}
	return report, nil
}

// GetPeriodMovement generates the period movement summary.
func (s *Service) GetPeriodMovement(ctx context.Context, filter PeriodMovementFilter) (*PeriodMovementReport, error) {
	if id.IsNil(filter.PeriodID) {
		return nil, apperror.NewValidation("periodId is required")
	}

	var err error
	if filter.LocationIDs, err = scopeLocations(ctx, filter.LocationIDs); err != nil {
		return nil, err
	}

	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}

	report, err := s.repo.GetPeriodMovement(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get period movement report: %w", err)
	}
	return report, nil
}

// GetReconciliationReport returns the reconciliation of a period with
// grand totals, across all locations or narrowed to one. Supervisor and
// admin only.
func (s *Service) GetReconciliationReport(ctx context.Context, periodID id.ID, locationID *id.ID) (*ReconciliationReport, error) {
	if !appctx.HasRole(ctx, appctx.RoleSupervisor) {
		return nil, apperror.NewForbidden("reconciliation report requires the supervisor role")
	}

	report, err := s.repo.GetReconciliationReport(ctx, periodID, locationID)
	if err != nil {
		return nil, fmt.Errorf("get reconciliation report: %w", err)
	}
	return report, nil
}

// GetDocumentJournal returns the document journal.
func (s *Service) GetDocumentJournal(ctx context.Context, filter DocumentJournalFilter) (*DocumentJournal, error) {
	var err error
	if filter.LocationIDs, err = scopeLocations(ctx, filter.LocationIDs); err != nil {
		return nil, err
	}

	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}
	if filter.SortBy == "" {
		filter.SortBy = "date"
	}
	if filter.SortOrder == "" {
		filter.SortOrder = "desc"
	}

	journal, err := s.repo.GetDocumentJournal(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get document journal: %w", err)
	}

	// Summary only on the first page
	if filter.Offset == 0 {
		summary, err := s.repo.GetDocumentTypeSummary(ctx, filter)
		if err == nil {
			journal.Summary = summary
		}
	}

	return journal, nil
}

// scopeLocations narrows a requested location filter to the caller's
// grants. Admins see everything; other roles get their granted set when
// no filter was given, and every requested location is access-checked.
func scopeLocations(ctx context.Context, requested []id.ID) ([]id.ID, error) {
	user := appctx.GetUser(ctx)
	if user == nil {
		return nil, apperror.NewUnauthorized("missing user context")
	}
	if user.Role == appctx.RoleAdmin {
		return requested, nil
	}

	if len(requested) == 0 {
		granted := make([]id.ID, 0, len(user.LocationIDs))
		for _, raw := range user.LocationIDs {
			locID, err := id.Parse(raw)
			if err != nil {
				continue
			}
			granted = append(granted, locID)
		}
		return granted, nil
	}

	for _, locID := range requested {
		if !appctx.HasLocationAccess(ctx, locID.String()) {
			return nil, apperror.NewLocationAccessDenied(locID.String())
		}
	}
	return requested, nil
}
