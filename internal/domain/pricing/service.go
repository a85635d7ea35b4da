package pricing

import (
	"context"
	"fmt"
	"time"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/core/types"
	"provision/internal/domain/catalogs/item"
	"provision/pkg/logger"
)

// Service provides price locking and variance checks.
type Service struct {
	repo  Repository
	items item.Repository
}

// NewService creates a new pricing service.
func NewService(repo Repository, items item.Repository) *Service {
	return &Service{repo: repo, items: items}
}

// LockPrices snapshots the reference price of every active item for the
// period. Called inside the period-open transaction; refuses to run twice.
func (s *Service) LockPrices(ctx context.Context, periodID id.ID) error {
	exists, err := s.repo.ExistsForPeriod(ctx, periodID)
	if err != nil {
		return fmt.Errorf("check price snapshot: %w", err)
	}
	if exists {
		return apperror.NewConflict("period prices are already locked").
			WithDetail("periodId", periodID.String())
	}

	active, err := s.items.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active items: %w", err)
	}

	now := time.Now()
	prices := make([]*ItemPrice, 0, len(active))
	for _, it := range active {
		prices = append(prices, &ItemPrice{
			PeriodID:      periodID,
			ItemID:        it.ID,
			ExpectedPrice: types.RoundUnitCost(it.ReferencePrice),
			LockedAt:      now,
		})
	}

	if len(prices) > 0 {
		if err := s.repo.BulkInsert(ctx, prices); err != nil {
			return fmt.Errorf("insert price snapshot: %w", err)
		}
	}

	logger.Info(ctx, "period prices locked", "period_id", periodID, "items", len(prices))
	return nil
}

// ExpectedPrice returns the locked price of an item for a period.
func (s *Service) ExpectedPrice(ctx context.Context, periodID, itemID id.ID) (*ItemPrice, error) {
	price, err := s.repo.Get(ctx, periodID, itemID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("period price", itemID.String())
		}
		return nil, err
	}
	return price, nil
}

// ListByPeriod returns the full price snapshot of a period.
func (s *Service) ListByPeriod(ctx context.Context, periodID id.ID) ([]*ItemPrice, error) {
	return s.repo.ListByPeriod(ctx, periodID)
}

// CheckVariance compares the actual delivered price against the locked
// expected price. Detection only; recording an NCR is the caller's business.
func (s *Service) CheckVariance(ctx context.Context, periodID, itemID id.ID, actualPrice types.Money) (VarianceResult, error) {
	price, err := s.ExpectedPrice(ctx, periodID, itemID)
	if err != nil {
		return VarianceResult{}, err
	}
	return Compare(price.ExpectedPrice, actualPrice), nil
}

// Compare computes the variance of actual against expected.
func Compare(expected, actual types.Money) VarianceResult {
	variance := actual.Sub(expected)
	return VarianceResult{
		ExpectedPrice: expected,
		ActualPrice:   actual,
		Variance:      variance,
		VariancePct:   types.PercentOf(variance, expected),
	}
}
