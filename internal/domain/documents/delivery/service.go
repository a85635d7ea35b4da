package delivery

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
	"provision/internal/domain/catalogs/item"
	"provision/internal/domain/catalogs/location"
	"provision/internal/domain/catalogs/supplier"
	"provision/internal/domain/ledger"
	"provision/internal/domain/ncr"
	"provision/internal/domain/notification"
	"provision/internal/domain/period"
	"provision/internal/domain/pricing"
	"provision/pkg/logger"
	"provision/pkg/numerator"
)

// NumeratorStrategy: deliveries are primary accounting documents, numbering
// stays strict.
const NumeratorStrategy = numerator.StrategyStrict

// PostResult is the outcome of posting a delivery.
type PostResult struct {
	Delivery *Delivery  `json:"delivery"`
	NCRs     []*ncr.NCR `json:"ncrs"`
}

// Service provides delivery posting and retrieval.
type Service struct {
	repo       Repository
	ledger     *ledger.Service
	pricing    *pricing.Service
	ncrs       *ncr.Service
	periods    *period.Service
	locations  location.Repository
	suppliers  supplier.Repository
	items      item.Repository
	numerator  *numerator.Service
	txManager  tx.Manager
	auditor    audit.Recorder
	dispatcher *notification.Dispatcher
}

// NewService creates a new delivery service.
func NewService(
	repo Repository,
	ledgerSvc *ledger.Service,
	pricingSvc *pricing.Service,
	ncrSvc *ncr.Service,
	periodSvc *period.Service,
	locations location.Repository,
	suppliers supplier.Repository,
	items item.Repository,
	num *numerator.Service,
	txManager tx.Manager,
	auditor audit.Recorder,
	dispatcher *notification.Dispatcher,
) *Service {
	return &Service{
		repo:       repo,
		ledger:     ledgerSvc,
		pricing:    pricingSvc,
		ncrs:       ncrSvc,
		periods:    periodSvc,
		locations:  locations,
		suppliers:  suppliers,
		items:      items,
		numerator:  num,
		txManager:  txManager,
		auditor:    auditor,
		dispatcher: dispatcher,
	}
}

// Post records a delivery in one step: the document is created and its
// stock and pricing effects applied atomically. Per varying line, one
// price variance NCR is raised inside the same transaction.
func (s *Service) Post(ctx context.Context, doc *Delivery) (*PostResult, error) {
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
	if err := s.checkMasterData(ctx, doc); err != nil {
		return nil, err
	}

	if doc.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("DEL"),
			&numerator.Options{Strategy: NumeratorStrategy}, time.Now())
		if err != nil {
			return nil, fmt.Errorf("generate number: %w", err)
		}
		doc.Number = number
	}
	doc.CreatedBy = appctx.GetUserID(ctx)

	var created []*ncr.NCR
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for i := range doc.Lines {
			line := &doc.Lines[i]

			locked, err := s.pricing.ExpectedPrice(ctx, openPeriod.ID, line.ItemID)
			if err != nil {
				return err
			}
			line.PeriodPrice = locked.ExpectedPrice
			line.Variance = line.UnitPrice.Sub(locked.ExpectedPrice)

			if _, err := s.ledger.Receive(ctx, doc.LocationID, line.ItemID, line.Quantity, line.UnitPrice); err != nil {
				return err
			}

			if !line.Variance.IsZero() {
				doc.HasVariance = true
				report := ncr.NewPriceVariance(
					doc.LocationID, openPeriod.ID, doc.SupplierID, line.ItemID, doc.ID, line.LineID,
					line.PeriodPrice, line.UnitPrice, line.Quantity,
				)
				if err := s.ncrs.RecordVariance(ctx, report); err != nil {
					return err
				}
				created = append(created, report)
			}
		}

		doc.MarkPosted()
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create delivery: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save delivery lines: %w", err)
		}

		return s.auditor.Record(ctx, audit.NewEntry(
			audit.ActionDeliveryPosted, "delivery", doc.ID, appctx.GetUserID(ctx),
			map[string]any{
				"number":      doc.Number,
				"locationId":  doc.LocationID.String(),
				"supplierId":  doc.SupplierID.String(),
				"totalAmount": doc.TotalAmount.String(),
				"hasVariance": doc.HasVariance,
				"lines":       len(doc.Lines),
			},
		))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "delivery posted",
		"id", doc.ID,
		"number", doc.Number,
		"location_id", doc.LocationID,
		"has_variance", doc.HasVariance,
		"ncrs", len(created),
	)

	s.notifyVariances(ctx, doc, created)

	return &PostResult{Delivery: doc, NCRs: created}, nil
}

// checkMasterData verifies location, supplier and items exist and are active.
func (s *Service) checkMasterData(ctx context.Context, doc *Delivery) error {
	loc, err := s.locations.GetByID(ctx, doc.LocationID)
	if err != nil {
		return apperror.NewNotFound("location", doc.LocationID.String())
	}
	if !loc.CanHoldStock() {
		return apperror.NewValidation("location is inactive").
			WithDetail("locationId", doc.LocationID.String())
	}

	sup, err := s.suppliers.GetByID(ctx, doc.SupplierID)
	if err != nil {
		return apperror.NewNotFound("supplier", doc.SupplierID.String())
	}
	if !sup.IsActive {
		return apperror.NewValidation("supplier is inactive").
			WithDetail("supplierId", doc.SupplierID.String())
	}

	for _, line := range doc.Lines {
		it, err := s.items.GetByID(ctx, line.ItemID)
		if err != nil {
			return apperror.NewNotFound("item", line.ItemID.String())
		}
		if !it.IsActive {
			return apperror.NewValidation("item is inactive").
				WithDetail("itemId", line.ItemID.String())
		}
	}
	return nil
}

// notifyVariances publishes the variance and NCR events after commit.
func (s *Service) notifyVariances(ctx context.Context, doc *Delivery, reports []*ncr.NCR) {
	if len(reports) == 0 {
		return
	}

	locationCode := ""
	if loc, err := s.locations.GetByID(ctx, doc.LocationID); err == nil {
		locationCode = loc.Code
	}
	supplierCode := ""
	if sup, err := s.suppliers.GetByID(ctx, doc.SupplierID); err == nil {
		supplierCode = sup.Code
	}

	for _, report := range reports {
		itemCode := ""
		if report.ItemID != nil {
			if it, err := s.items.GetByID(ctx, *report.ItemID); err == nil {
				itemCode = it.Code
			}
		}
		pct := pricing.Compare(*report.ExpectedPrice, *report.ActualPrice).VariancePct

		payload := map[string]any{
			"number":        doc.Number,
			"location_code": locationCode,
			"supplier_code": supplierCode,
			"item_code":     itemCode,
			"variance":      report.Variance.InexactFloat64(),
			"variance_pct":  pct.InexactFloat64(),
			"value":         report.Value.InexactFloat64(),
			"qty":           report.Quantity.InexactFloat64(),
		}
		s.dispatcher.Publish(ctx, notification.EventPriceVariance, payload)

		payload["number"] = report.Number
		s.dispatcher.Publish(ctx, notification.EventNCRCreated, payload)
	}
}

// GetByID retrieves a delivery with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Delivery, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("delivery", docID.String())
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

// List retrieves deliveries with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Delivery], error) {
	return s.repo.List(ctx, filter)
}
