package item

import (
	"context"
	"fmt"
	"time"

	"provision/internal/core/id"
	"provision/internal/core/tx"
	"provision/internal/domain"
	"provision/pkg/numerator"
)

// Service provides business logic for the Item catalog.
type Service struct {
	*domain.CatalogService[*Item]
	repo      Repository
	numerator *numerator.Service
}

// NewService creates a new Item service.
func NewService(repo Repository, txManager tx.Manager, num *numerator.Service) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Item]{
		Repo:       repo,
		TxManager:  txManager,
		Numerator:  num,
		EntityName: "item",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		numerator:      num,
	}

	base.Hooks().On(domain.BeforeCreate, svc.prepareForCreate)

	return svc
}

// prepareForCreate handles code generation.
func (s *Service) prepareForCreate(ctx context.Context, it *Item) error {
	if it.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("ITM"), nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		it.Code = code
	}
	return nil
}

// ListActive retrieves all active items.
func (s *Service) ListActive(ctx context.Context) ([]*Item, error) {
	return s.repo.ListActive(ctx)
}

// ListByCategory retrieves items in a category.
func (s *Service) ListByCategory(ctx context.Context, category string, filter domain.ListFilter) (domain.ListResult[*Item], error) {
	return s.repo.ListByCategory(ctx, category, filter)
}

// SetActive activates or deactivates an item.
func (s *Service) SetActive(ctx context.Context, itemID id.ID, active bool) error {
	if _, err := s.GetByID(ctx, itemID); err != nil {
		return err
	}
	return s.repo.SetActive(ctx, itemID, active)
}
