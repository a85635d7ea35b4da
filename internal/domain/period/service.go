package period

import (
	"context"
	"fmt"
	"time"

	"provision/internal/core/apperror"
	appctx "provision/internal/core/context"
	"provision/internal/core/id"
	"provision/internal/core/tx"
	"provision/internal/domain/catalogs/location"
	"provision/internal/domain/pricing"
	"provision/pkg/logger"
)

// Service provides period lifecycle operations: open, location sign-off,
// current-period lookup. Closing belongs to the reconciliation service.
type Service struct {
	repo      Repository
	locations location.Repository
	pricing   *pricing.Service
	txManager tx.Manager
}

// NewService creates a new period service.
func NewService(repo Repository, locations location.Repository, pricingSvc *pricing.Service, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		locations: locations,
		pricing:   pricingSvc,
		txManager: txManager,
	}
}

// Open creates a new OPEN period, seeds the per-location readiness rows and
// locks the period prices from the item reference prices. Fails with a
// conflict when another period is still open.
func (s *Service) Open(ctx context.Context, name string, start, end time.Time) (*Period, error) {
	p := NewPeriod(name, start, end)
	if err := p.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if existing, err := s.repo.CurrentOpen(ctx); err == nil {
			return apperror.NewConflict("another period is still open").
				WithDetail("openPeriod", existing.Name)
		} else if !apperror.IsNotFound(err) {
			return fmt.Errorf("check open period: %w", err)
		}

		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create period: %w", err)
		}

		active, err := s.locations.ListActive(ctx)
		if err != nil {
			return fmt.Errorf("list active locations: %w", err)
		}
		rows := make([]*PeriodLocation, 0, len(active))
		for _, loc := range active {
			rows = append(rows, &PeriodLocation{
				PeriodID:   p.ID,
				LocationID: loc.ID,
				Status:     LocationNotReady,
			})
		}
		if len(rows) > 0 {
			if err := s.repo.CreateLocations(ctx, rows); err != nil {
				return fmt.Errorf("create period locations: %w", err)
			}
		}

		if err := s.pricing.LockPrices(ctx, p.ID); err != nil {
			return fmt.Errorf("lock period prices: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "period opened",
		"period_id", p.ID,
		"name", p.Name,
		"start", p.StartDate.Format("2006-01-02"),
		"end", p.EndDate.Format("2006-01-02"),
	)

	return p, nil
}

// CurrentOpen returns the single OPEN period.
func (s *Service) CurrentOpen(ctx context.Context) (*Period, error) {
	p, err := s.repo.CurrentOpen(ctx)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("open period", "current")
		}
		return nil, err
	}
	return p, nil
}

// GetByID retrieves a period.
func (s *Service) GetByID(ctx context.Context, periodID id.ID) (*Period, error) {
	return s.repo.GetByID(ctx, periodID)
}

// List returns periods, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Period, error) {
	if limit <= 0 {
		limit = 24
	}
	return s.repo.List(ctx, limit, offset)
}

// Locations returns the readiness rows of a period.
func (s *Service) Locations(ctx context.Context, periodID id.ID) ([]*PeriodLocation, error) {
	return s.repo.ListLocations(ctx, periodID)
}

// MarkReady signs a location off for the period. Idempotent: marking an
// already READY location keeps the original sign-off untouched.
func (s *Service) MarkReady(ctx context.Context, periodID, locationID id.ID) error {
	user := appctx.GetUser(ctx)
	if user == nil {
		return apperror.NewUnauthorized("missing user context")
	}
	if !appctx.HasLocationAccess(ctx, locationID.String()) {
		return apperror.NewLocationAccessDenied(locationID.String())
	}
	readyBy, err := id.Parse(user.UserID)
	if err != nil {
		return apperror.NewUnauthorized("malformed user id")
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, periodID)
		if err != nil {
			return err
		}
		if !p.IsOpen() {
			return apperror.NewPeriodClosed(p.Name)
		}

		row, err := s.repo.GetLocation(ctx, periodID, locationID)
		if err != nil {
			return err
		}
		if row.IsReady() {
			return nil
		}

		if err := s.repo.MarkLocationReady(ctx, periodID, locationID, readyBy, time.Now()); err != nil {
			return fmt.Errorf("mark location ready: %w", err)
		}

		logger.Info(ctx, "location marked ready",
			"period_id", periodID,
			"location_id", locationID,
			"user_id", user.UserID,
		)
		return nil
	})
}
