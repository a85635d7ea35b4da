package transfer

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

// NumeratorStrategy for transfer numbers.
const NumeratorStrategy = numerator.StrategyStrict

// Service provides the transfer state machine.
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

// NewService creates a new transfer service.
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

// Create records a transfer request. The source WAC is captured per line
// and availability checked, but no stock moves until approval.
func (s *Service) Create(ctx context.Context, doc *Transfer) (*Transfer, error) {
	if !appctx.HasLocationAccess(ctx, doc.FromLocationID.String()) {
		return nil, apperror.NewLocationAccessDenied(doc.FromLocationID.String())
	}

	openPeriod, err := s.periods.CurrentOpen(ctx)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewPeriodClosed("no open period to post into")
		}
		return nil, err
	}
	doc.PeriodID = openPeriod.ID
	doc.Status = StatusPendingApproval

	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.checkLocations(ctx, doc); err != nil {
		return nil, err
	}

	if doc.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("TRF"),
			&numerator.Options{Strategy: NumeratorStrategy}, time.Now())
		if err != nil {
			return nil, fmt.Errorf("generate number: %w", err)
		}
		doc.Number = number
	}
	doc.CreatedBy = appctx.GetUserID(ctx)

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		total := types.Zero()
		for i := range doc.Lines {
			line := &doc.Lines[i]

			stock, err := s.ledger.Position(ctx, doc.FromLocationID, line.ItemID)
			if err != nil {
				return err
			}
			if stock.OnHand.LessThan(line.Quantity) {
				return apperror.NewInsufficientStock(
					line.ItemID.String(), doc.FromLocationID.String(),
					line.Quantity, stock.OnHand,
				)
			}

			line.WACAtTransfer = stock.WAC
			line.Value = types.RoundMoney(line.Quantity.Mul(stock.WAC))
			total = total.Add(line.Value)
		}
		doc.TotalValue = types.RoundMoney(total)

		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create transfer: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save transfer lines: %w", err)
		}

		return s.auditor.Record(ctx, audit.NewEntry(
			audit.ActionTransferCreated, "transfer", doc.ID, appctx.GetUserID(ctx),
			map[string]any{
				"number":         doc.Number,
				"fromLocationId": doc.FromLocationID.String(),
				"toLocationId":   doc.ToLocationID.String(),
				"totalValue":     doc.TotalValue.String(),
				"lines":          len(doc.Lines),
			},
		))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer created",
		"id", doc.ID,
		"number", doc.Number,
		"status", doc.Status,
	)

	s.notifyPending(ctx, doc)

	return doc, nil
}

// Approve moves the stock. It runs serializable: the status flips
// PENDING_APPROVAL -> APPROVED by compare-and-swap (a concurrent approval
// loses with INVALID_STATUS), availability is re-validated per line against
// current stock, and on success both sides move at the captured WAC and the
// transfer completes. Any shortage rolls everything back, leaving the
// transfer PENDING_APPROVAL.
func (s *Service) Approve(ctx context.Context, docID id.ID) (*Transfer, error) {
	if !appctx.HasRole(ctx, appctx.RoleSupervisor) {
		return nil, apperror.NewForbidden("transfer approval requires supervisor role")
	}
	approver, err := id.Parse(appctx.GetUserID(ctx))
	if err != nil {
		return nil, apperror.NewUnauthorized("malformed user id")
	}

	var doc *Transfer
	var lowStock []*ledger.LocationStock
	err = s.txManager.RunSerializable(ctx, func(ctx context.Context) error {
		lowStock = lowStock[:0]
		var err error
		doc, err = s.GetByID(ctx, docID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		claimed, err := s.repo.ClaimForApproval(ctx, docID, approver, now)
		if err != nil {
			return fmt.Errorf("claim transfer: %w", err)
		}
		if !claimed {
			return apperror.NewInvalidStatus("transfer", string(doc.Status), string(StatusPendingApproval))
		}
		doc.Status = StatusApproved
		doc.ApprovedBy = &approver
		doc.ApprovedAt = &now

		// Re-validate and move. Stock may have been consumed since
		// creation; Deduct raises INSUFFICIENT_STOCK and aborts the tx.
		for _, line := range doc.Lines {
			stock, err := s.ledger.Deduct(ctx, doc.FromLocationID, line.ItemID, line.Quantity)
			if err != nil {
				return err
			}
			if stock.IsBelowMin() {
				lowStock = append(lowStock, stock)
			}
			if _, err := s.ledger.Receive(ctx, doc.ToLocationID, line.ItemID, line.Quantity, line.WACAtTransfer); err != nil {
				return err
			}
		}

		transferredAt := time.Now().UTC()
		if err := s.repo.MarkCompleted(ctx, docID, transferredAt); err != nil {
			return fmt.Errorf("complete transfer: %w", err)
		}
		doc.Status = StatusCompleted
		doc.TransferredAt = &transferredAt

		return s.auditor.Record(ctx, audit.NewEntry(
			audit.ActionTransferApproved, "transfer", doc.ID, appctx.GetUserID(ctx),
			map[string]any{
				"number":     doc.Number,
				"approvedBy": approver.String(),
				"totalValue": doc.TotalValue.String(),
			},
		))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer approved and completed",
		"id", doc.ID,
		"number", doc.Number,
		"approved_by", approver,
	)

	s.notifyLowStock(ctx, lowStock)

	return doc, nil
}

// notifyLowStock publishes stock_below_min for source positions the
// transfer drained.
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

func (s *Service) checkLocations(ctx context.Context, doc *Transfer) error {
	from, err := s.locations.GetByID(ctx, doc.FromLocationID)
	if err != nil {
		return apperror.NewNotFound("location", doc.FromLocationID.String())
	}
	to, err := s.locations.GetByID(ctx, doc.ToLocationID)
	if err != nil {
		return apperror.NewNotFound("location", doc.ToLocationID.String())
	}
	if !from.CanHoldStock() {
		return apperror.NewValidation("source location is inactive").
			WithDetail("locationId", doc.FromLocationID.String())
	}
	if !to.CanHoldStock() {
		return apperror.NewValidation("destination location is inactive").
			WithDetail("locationId", doc.ToLocationID.String())
	}
	return nil
}

func (s *Service) notifyPending(ctx context.Context, doc *Transfer) {
	fromCode, toCode := "", ""
	if loc, err := s.locations.GetByID(ctx, doc.FromLocationID); err == nil {
		fromCode = loc.Code
	}
	if loc, err := s.locations.GetByID(ctx, doc.ToLocationID); err == nil {
		toCode = loc.Code
	}
	s.dispatcher.Publish(ctx, notification.EventTransferPending, map[string]any{
		"number":           doc.Number,
		"location_code":    fromCode,
		"to_location_code": toCode,
		"value":            doc.TotalValue.InexactFloat64(),
	})
}

// GetByID retrieves a transfer with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Transfer, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("transfer", docID.String())
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

// List retrieves transfers with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Transfer], error) {
	return s.repo.List(ctx, filter)
}
