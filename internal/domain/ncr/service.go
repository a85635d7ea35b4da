package ncr

import (
	"context"
	"fmt"
	"time"

	"provision/internal/core/apperror"
	appctx "provision/internal/core/context"
	"provision/internal/core/id"
	"provision/internal/core/tx"
	"provision/internal/domain"
	"provision/internal/domain/audit"
	"provision/pkg/logger"
	"provision/pkg/numerator"
)

// NumeratorStrategy: NCR numbers appear in supplier correspondence, so
// gaps are unwanted and numbering stays strict.
const NumeratorStrategy = numerator.StrategyStrict

// Service provides NCR operations.
type Service struct {
	repo      Repository
	numerator *numerator.Service
	txManager tx.Manager
	auditor   audit.Recorder
}

// NewService creates a new NCR service.
func NewService(repo Repository, num *numerator.Service, txManager tx.Manager, auditor audit.Recorder) *Service {
	return &Service{repo: repo, numerator: num, txManager: txManager, auditor: auditor}
}

// CreateManual records a manually raised report.
func (s *Service) CreateManual(ctx context.Context, report *NCR) error {
	report.Type = TypeManual
	report.AutoGenerated = false
	if report.Status == "" {
		report.Status = StatusOpen
	}
	if report.FinancialImpact == "" {
		report.FinancialImpact = ImpactNone
	}

	if err := report.Validate(ctx); err != nil {
		return err
	}
	if !appctx.HasLocationAccess(ctx, report.LocationID.String()) {
		return apperror.NewLocationAccessDenied(report.LocationID.String())
	}
	report.CreatedBy = appctx.GetUserID(ctx)

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.assignNumber(ctx, report); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, report); err != nil {
			return fmt.Errorf("create NCR: %w", err)
		}
		logger.Info(ctx, "NCR created", "id", report.ID, "number", report.Number, "type", report.Type)
		return nil
	})
}

// RecordVariance creates an auto-generated price variance report.
// Called inside the delivery posting transaction.
func (s *Service) RecordVariance(ctx context.Context, report *NCR) error {
	if err := report.Validate(ctx); err != nil {
		return err
	}
	report.CreatedBy = appctx.GetUserID(ctx)
	if err := s.assignNumber(ctx, report); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, report); err != nil {
		return fmt.Errorf("create variance NCR: %w", err)
	}
	return nil
}

func (s *Service) assignNumber(ctx context.Context, report *NCR) error {
	if report.Number != "" {
		return nil
	}
	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("NCR"),
		&numerator.Options{Strategy: NumeratorStrategy}, time.Now())
	if err != nil {
		return fmt.Errorf("generate NCR number: %w", err)
	}
	report.Number = number
	return nil
}

// GetByID retrieves a report.
func (s *Service) GetByID(ctx context.Context, reportID id.ID) (*NCR, error) {
	report, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("ncr", reportID.String())
		}
		return nil, err
	}
	return report, nil
}

// List retrieves reports with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*NCR], error) {
	return s.repo.List(ctx, filter)
}

// CountOpenByPeriod returns the number of reports still awaiting a
// supplier outcome (OPEN or SENT) in a period.
func (s *Service) CountOpenByPeriod(ctx context.Context, periodID id.ID) (int, error) {
	return s.repo.CountOpenByPeriod(ctx, periodID)
}

// UpdateStatusInput carries a status transition request.
type UpdateStatusInput struct {
	Status          Status
	FinancialImpact *FinancialImpact
	ResolutionNote  *string
}

// UpdateStatus moves a report along its lifecycle. RESOLVED is terminal and
// requires a financial impact; the resolver is recorded.
func (s *Service) UpdateStatus(ctx context.Context, reportID id.ID, input UpdateStatusInput) (*NCR, error) {
	var updated *NCR
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		report, err := s.repo.GetForUpdate(ctx, reportID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("ncr", reportID.String())
			}
			return err
		}

		if !CanTransition(report.Status, input.Status) {
			return apperror.NewInvalidStatus("ncr", string(report.Status), string(input.Status))
		}

		report.Status = input.Status
		if input.Status == StatusResolved {
			if input.FinancialImpact == nil {
				return apperror.NewValidation("financial impact is required to resolve an NCR").
					WithDetail("field", "financialImpact")
			}
			switch *input.FinancialImpact {
			case ImpactNone, ImpactCredit, ImpactLoss:
			default:
				return apperror.NewValidation("invalid financial impact").
					WithDetail("value", string(*input.FinancialImpact))
			}
			report.FinancialImpact = *input.FinancialImpact
			report.ResolutionNote = input.ResolutionNote
			now := time.Now()
			report.ResolvedAt = &now
			if uid, err := id.Parse(appctx.GetUserID(ctx)); err == nil {
				report.ResolvedBy = &uid
			}
		}
		report.Touch()

		if err := s.repo.Update(ctx, report); err != nil {
			return fmt.Errorf("update NCR: %w", err)
		}
		updated = report

		if report.Status == StatusResolved {
			if err := s.auditor.Record(ctx, audit.NewEntry(
				audit.ActionNCRResolved, "ncr", report.ID, appctx.GetUserID(ctx),
				map[string]any{
					"number":          report.Number,
					"financialImpact": string(report.FinancialImpact),
					"value":           report.Value.String(),
				},
			)); err != nil {
				return fmt.Errorf("audit NCR resolution: %w", err)
			}
		}

		logger.Info(ctx, "NCR status changed",
			"id", report.ID,
			"number", report.Number,
			"status", report.Status,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
