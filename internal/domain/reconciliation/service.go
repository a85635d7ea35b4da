package reconciliation

import (
	"context"
	"fmt"
	"time"

	"provision/internal/core/apperror"
	appctx "provision/internal/core/context"
	"provision/internal/core/entity"
	"provision/internal/core/id"
	"provision/internal/core/tx"
	"provision/internal/domain/audit"
	"provision/internal/domain/documents/delivery"
	"provision/internal/domain/documents/issue"
	"provision/internal/domain/documents/transfer"
	"provision/internal/domain/ledger"
	"provision/internal/domain/ncr"
	"provision/internal/domain/notification"
	"provision/internal/domain/period"
	"provision/pkg/logger"
)

// Service computes per-location reconciliations and runs the period
// close. Reads are cheap: a SAVED snapshot wins, otherwise the figures
// are aggregated live from posted documents and the stock ledger.
type Service struct {
	repo       Repository
	periods    *period.Service
	periodRepo period.Repository
	deliveries delivery.Repository
	issues     issue.Repository
	transfers  transfer.Repository
	ledger     *ledger.Service
	ncrs       ncr.Repository
	txManager  tx.Manager
	auditor    audit.Recorder
	dispatcher *notification.Dispatcher
}

// ServiceConfig wires the reconciliation service dependencies.
type ServiceConfig struct {
	Repo       Repository
	Periods    *period.Service
	PeriodRepo period.Repository
	Deliveries delivery.Repository
	Issues     issue.Repository
	Transfers  transfer.Repository
	Ledger     *ledger.Service
	NCRs       ncr.Repository
	TxManager  tx.Manager
	Auditor    audit.Recorder
	Dispatcher *notification.Dispatcher
}

// NewService creates a new reconciliation service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:       cfg.Repo,
		periods:    cfg.Periods,
		periodRepo: cfg.PeriodRepo,
		deliveries: cfg.Deliveries,
		issues:     cfg.Issues,
		transfers:  cfg.Transfers,
		ledger:     cfg.Ledger,
		ncrs:       cfg.NCRs,
		txManager:  cfg.TxManager,
		auditor:    cfg.Auditor,
		dispatcher: cfg.Dispatcher,
	}
}

// Get returns the reconciliation for a period and location. A SAVED
// snapshot is returned as persisted; otherwise the figures are computed
// on the fly and the row is marked COMPUTED.
func (s *Service) Get(ctx context.Context, periodID, locationID id.ID) (*Reconciliation, error) {
	if !appctx.HasLocationAccess(ctx, locationID.String()) {
		return nil, apperror.NewLocationAccessDenied(locationID.String())
	}

	saved, err := s.repo.GetSaved(ctx, periodID, locationID)
	if err == nil {
		return saved, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	return s.compute(ctx, periodID, locationID, AdjustmentInput{})
}

// Save computes the reconciliation with the given manual adjustments
// and persists it as a SAVED snapshot. Saving again before the period
// closes replaces the earlier snapshot; a closed period refuses.
func (s *Service) Save(ctx context.Context, periodID, locationID id.ID, adj AdjustmentInput) (*Reconciliation, error) {
	user := appctx.GetUser(ctx)
	if user == nil {
		return nil, apperror.NewUnauthorized("missing user context")
	}
	if !appctx.HasRole(ctx, appctx.RoleSupervisor) {
		return nil, apperror.NewForbidden("saving a reconciliation requires the supervisor role")
	}
	if !appctx.HasLocationAccess(ctx, locationID.String()) {
		return nil, apperror.NewLocationAccessDenied(locationID.String())
	}
	if err := adj.Validate(); err != nil {
		return nil, err
	}
	savedBy, err := id.Parse(user.UserID)
	if err != nil {
		return nil, apperror.NewUnauthorized("malformed user id")
	}

	var rec *Reconciliation
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.periodRepo.GetByID(ctx, periodID)
		if err != nil {
			return err
		}
		if !p.IsOpen() {
			return apperror.NewPeriodClosed(p.Name)
		}

		rec, err = s.compute(ctx, periodID, locationID, adj)
		if err != nil {
			return err
		}

		now := time.Now()
		rec.Status = StatusSaved
		rec.SavedBy = &savedBy
		rec.SavedAt = &now
		if err := s.repo.Save(ctx, rec); err != nil {
			return fmt.Errorf("save reconciliation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "reconciliation saved",
		"period_id", periodID,
		"location_id", locationID,
		"consumption", rec.Consumption,
	)
	return rec, nil
}

// ListByPeriod returns the saved snapshots of a period.
func (s *Service) ListByPeriod(ctx context.Context, periodID id.ID) ([]*Reconciliation, error) {
	return s.repo.ListSavedByPeriod(ctx, periodID)
}

// CloseResult reports the outcome of a period close.
type CloseResult struct {
	Period          *period.Period    `json:"period"`
	NextPeriod      *period.Period    `json:"next_period"`
	Reconciliations []*Reconciliation `json:"reconciliations"`
	OpenNCRCount    int               `json:"open_ncr_count"`
	Warnings        []string          `json:"warnings,omitempty"`
}

// Close finalises a period. Requires the admin role and every location
// signed off as READY. Open NCRs do not block the close, they carry into
// the next period and are reported as a warning. In one transaction:
// every location gets a SAVED snapshot (existing saves are kept, the
// rest are computed), the period is marked CLOSED and the next monthly
// period is opened with freshly locked prices.
func (s *Service) Close(ctx context.Context, periodID id.ID) (*CloseResult, error) {
	user := appctx.GetUser(ctx)
	if user == nil {
		return nil, apperror.NewUnauthorized("missing user context")
	}
	if !appctx.HasRole(ctx, appctx.RoleAdmin) {
		return nil, apperror.NewForbidden("closing a period requires the admin role")
	}
	closedBy, err := id.Parse(user.UserID)
	if err != nil {
		return nil, apperror.NewUnauthorized("malformed user id")
	}

	result := &CloseResult{}
	err = s.txManager.RunSerializable(ctx, func(ctx context.Context) error {
		p, err := s.periodRepo.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if !p.IsOpen() {
			return apperror.NewInvalidStatus("period", string(p.Status), string(period.StatusOpen))
		}

		notReady, err := s.periodRepo.CountNotReady(ctx, periodID)
		if err != nil {
			return fmt.Errorf("count locations not ready: %w", err)
		}
		if notReady > 0 {
			return apperror.NewBusinessRule("PERIOD_NOT_READY",
				fmt.Sprintf("%d location(s) have not signed off", notReady))
		}

		openNCRs, err := s.ncrs.CountOpenByPeriod(ctx, periodID)
		if err != nil {
			return fmt.Errorf("count open ncrs: %w", err)
		}
		result.OpenNCRCount = openNCRs
		if openNCRs > 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%d open NCR(s) carry into the next period", openNCRs))
		}

		rows, err := s.periodRepo.ListLocations(ctx, periodID)
		if err != nil {
			return fmt.Errorf("list period locations: %w", err)
		}

		now := time.Now()
		for _, row := range rows {
			rec, err := s.repo.GetSaved(ctx, periodID, row.LocationID)
			if apperror.IsNotFound(err) {
				rec, err = s.compute(ctx, periodID, row.LocationID, AdjustmentInput{})
				if err != nil {
					return err
				}
				rec.Status = StatusSaved
				rec.SavedBy = &closedBy
				rec.SavedAt = &now
				if err := s.repo.Save(ctx, rec); err != nil {
					return fmt.Errorf("save reconciliation for location %s: %w", row.LocationID, err)
				}
			} else if err != nil {
				return err
			}
			result.Reconciliations = append(result.Reconciliations, rec)
		}

		if err := s.periodRepo.MarkClosed(ctx, periodID, closedBy, now); err != nil {
			return fmt.Errorf("mark period closed: %w", err)
		}
		p.Status = period.StatusClosed
		p.ClosedAt = &now
		p.ClosedBy = &closedBy
		result.Period = p

		nextName, nextStart, nextEnd := p.NextMonth()
		next, err := s.periods.Open(ctx, nextName, nextStart, nextEnd)
		if err != nil {
			return fmt.Errorf("open next period: %w", err)
		}
		result.NextPeriod = next

		if err := s.auditor.Record(ctx, audit.NewEntry(audit.ActionPeriodClosed, "period", periodID, user.UserID,
			map[string]any{
				"name":        p.Name,
				"next_period": next.Name,
				"open_ncrs":   openNCRs,
			})); err != nil {
			return fmt.Errorf("audit period close: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "period closed",
		"period_id", periodID,
		"name", result.Period.Name,
		"next_period", result.NextPeriod.Name,
		"open_ncrs", result.OpenNCRCount,
	)

	s.dispatcher.Publish(ctx, notification.EventPeriodClosed, map[string]any{
		"period_name": result.Period.Name,
	})

	return result, nil
}

// compute aggregates the live figures for one period and location.
// Opening stock is the prior period's saved closing stock, zero for the
// first period ever.
func (s *Service) compute(ctx context.Context, periodID, locationID id.ID, adj AdjustmentInput) (*Reconciliation, error) {
	rec := &Reconciliation{
		BaseEntity:    entity.NewBaseEntity(),
		PeriodID:      periodID,
		LocationID:    locationID,
		Adjustments:   adj.Adjustments,
		BackCharges:   adj.BackCharges,
		Credits:       adj.Credits,
		Condemnations: adj.Condemnations,
		Status:        StatusComputed,
	}

	prev, err := s.periodRepo.PreviousPeriod(ctx, periodID)
	switch {
	case err == nil:
		prior, err := s.repo.GetSaved(ctx, prev.ID, locationID)
		if err == nil {
			rec.OpeningStock = prior.ClosingStock
		} else if !apperror.IsNotFound(err) {
			return nil, err
		}
	case apperror.IsNotFound(err):
		// first period, opening stock stays zero
	default:
		return nil, fmt.Errorf("find previous period: %w", err)
	}

	if rec.Receipts, err = s.deliveries.SumByPeriodLocation(ctx, periodID, locationID); err != nil {
		return nil, fmt.Errorf("sum deliveries: %w", err)
	}
	if rec.Issues, err = s.issues.SumByPeriodLocation(ctx, periodID, locationID); err != nil {
		return nil, fmt.Errorf("sum issues: %w", err)
	}
	if rec.TransfersIn, err = s.transfers.SumInByPeriodLocation(ctx, periodID, locationID); err != nil {
		return nil, fmt.Errorf("sum transfers in: %w", err)
	}
	if rec.TransfersOut, err = s.transfers.SumOutByPeriodLocation(ctx, periodID, locationID); err != nil {
		return nil, fmt.Errorf("sum transfers out: %w", err)
	}
	if rec.NCRCredits, err = s.ncrs.SumResolvedByPeriodLocation(ctx, periodID, locationID, ncr.ImpactCredit); err != nil {
		return nil, fmt.Errorf("sum ncr credits: %w", err)
	}
	if rec.NCRLosses, err = s.ncrs.SumResolvedByPeriodLocation(ctx, periodID, locationID, ncr.ImpactLoss); err != nil {
		return nil, fmt.Errorf("sum ncr losses: %w", err)
	}
	if rec.ClosingStock, err = s.ledger.LocationValue(ctx, locationID); err != nil {
		return nil, fmt.Errorf("stock value: %w", err)
	}

	rec.Recalculate()
	return rec, nil
}
