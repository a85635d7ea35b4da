package issue

import (
	"context"
	"fmt"
	"time"

	"provision/internal/core/apperror"
	appctx "provision/internal/core/context"
	"provision/internal/core/id"
	"provision/internal/core/tx"
	"provision/internal/core/types"
	"provision/internal/domain"
	"provision/internal/domain/audit"
	"provision/internal/domain/catalogs/item"
	"provision/internal/domain/catalogs/location"
	"provision/internal/domain/ledger"
	"provision/internal/domain/notification"
	"provision/internal/domain/period"
	"provision/pkg/logger"
	"provision/pkg/numerator"
)

// NumeratorStrategy for issue numbers.
const NumeratorStrategy = numerator.StrategyStrict

// Service provides issue posting and retrieval.
type Service struct {
	repo       Repository
	ledger     *ledger.Service
	periods    *period.Service
	locations  location.Repository
	items      item.Repository
	numerator  *numerator.Service
	txManager  tx.Manager
	auditor    audit.Recorder
	dispatcher *notification.Dispatcher
}

// NewService creates a new issue service.
func NewService(
	repo Repository,
	ledgerSvc *ledger.Service,
	periodSvc *period.Service,
	locations location.Repository,
	items item.Repository,
	num *numerator.Service,
	txManager tx.Manager,
	auditor audit.Recorder,
	dispatcher *notification.Dispatcher,
) *Service {
	return &Service{
		repo:       repo,
		ledger:     ledgerSvc,
		periods:    periodSvc,
		locations:  locations,
		items:      items,
		numerator:  num,
		txManager:  txManager,
		auditor:    auditor,
		dispatcher: dispatcher,
	}
}

// Post records an issue in one step. Every line is deducted at the current
// WAC inside one transaction; any shortage aborts the whole document with
// INSUFFICIENT_STOCK and no stock moves.
func (s *Service) Post(ctx context.Context, doc *Issue) (*Issue, error) {
	if !appctx.HasLocationAccess(ctx, doc.LocationID.String()) {
		return nil, apperror.NewLocationAccessDenied(doc.LocationID.String())
	}

	openPeriod, err := s.periods.CurrentOpen(ctx)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewPeriodClosed("no open period to post into")
		}
		return nil, err
	}
	doc.PeriodID = openPeriod.ID

	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}
	if _, err := s.locations.GetByID(ctx, doc.LocationID); err != nil {
		return nil, apperror.NewNotFound("location", doc.LocationID.String())
	}

	if doc.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("ISS"),
			&numerator.Options{Strategy: NumeratorStrategy}, time.Now())
		if err != nil {
			return nil, fmt.Errorf("generate number: %w", err)
		}
		doc.Number = number
	}
	doc.CreatedBy = appctx.GetUserID(ctx)

	var lowStock []*ledger.LocationStock
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		total := types.Zero()
		for i := range doc.Lines {
			line := &doc.Lines[i]

			stock, err := s.ledger.Deduct(ctx, doc.LocationID, line.ItemID, line.Quantity)
			if err != nil {
				return err
			}

			line.WACAtIssue = stock.WAC
			line.Value = types.RoundMoney(line.Quantity.Mul(stock.WAC))
			total = total.Add(line.Value)

			if stock.IsBelowMin() {
				lowStock = append(lowStock, stock)
			}
		}
		doc.TotalValue = types.RoundMoney(total)

		doc.MarkPosted()
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create issue: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save issue lines: %w", err)
		}

		return s.auditor.Record(ctx, audit.NewEntry(
			audit.ActionIssuePosted, "issue", doc.ID, appctx.GetUserID(ctx),
			map[string]any{
				"number":     doc.Number,
				"locationId": doc.LocationID.String(),
				"costCentre": string(doc.CostCentre),
				"totalValue": doc.TotalValue.String(),
				"lines":      len(doc.Lines),
			},
		))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "issue posted",
		"id", doc.ID,
		"number", doc.Number,
		"location_id", doc.LocationID,
		"total_value", doc.TotalValue.String(),
	)

	s.notifyLowStock(ctx, lowStock)

	return doc, nil
}

// notifyLowStock publishes stock_below_min for positions the issue drained.
func (s *Service) notifyLowStock(ctx context.Context, positions []*ledger.LocationStock) {
	for _, stock := range positions {
		locationCode, itemCode := "", ""
		if loc, err := s.locations.GetByID(ctx, stock.LocationID); err == nil {
			locationCode = loc.Code
		}
		if it, err := s.items.GetByID(ctx, stock.ItemID); err == nil {
			itemCode = it.Code
		}
		minQty := 0.0
		if stock.MinQty != nil {
			minQty = stock.MinQty.InexactFloat64()
		}
		s.dispatcher.Publish(ctx, notification.EventStockBelowMin, map[string]any{
			"location_code": locationCode,
			"item_code":     itemCode,
			"on_hand":       stock.OnHand.InexactFloat64(),
			"min_qty":       minQty,
		})
	}
}

// GetByID retrieves an issue with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Issue, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("issue", docID.String())
		}
		return nil, err
	}
	lines, err := s.repo.GetLines(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines
	return doc, nil
}

// List retrieves issues with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Issue], error) {
	return s.repo.List(ctx, filter)
}
