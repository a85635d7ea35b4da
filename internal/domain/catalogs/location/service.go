package location

import (
	"context"
	"fmt"
	"time"

	"provision/internal/core/id"
	"provision/internal/core/tx"
	"provision/internal/domain"
	"provision/pkg/numerator"
)

// Service provides business logic for the Location catalog.
// Uses composition with domain.CatalogService for common CRUD operations.
type Service struct {
	*domain.CatalogService[*Location]
	repo      Repository
	numerator *numerator.Service
}

// NewService creates a new Location service.
func NewService(repo Repository, txManager tx.Manager, num *numerator.Service) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Location]{
		Repo:       repo,
		TxManager:  txManager,
		Numerator:  num,
		EntityName: "location",
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
func (s *Service) prepareForCreate(ctx context.Context, loc *Location) error {
	if loc.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("LOC"), nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		loc.Code = code
	}
	return nil
}

// ListActive retrieves all active locations.
func (s *Service) ListActive(ctx context.Context) ([]*Location, error) {
	return s.repo.ListActive(ctx)
}

// SetActive activates or deactivates a location.
func (s *Service) SetActive(ctx context.Context, locID id.ID, active bool) error {
	if _, err := s.GetByID(ctx, locID); err != nil {
		return err
	}
	return s.repo.SetActive(ctx, locID, active)
}
