package ledger

import (
	"context"
	"fmt"
	"time"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/core/types"
	"provision/pkg/logger"
)

// Service provides the ledger operations.
// Receive and Deduct are called during document posting, inside the caller's
// transaction; they never open transactions of their own.
type Service struct {
	repo Repository
}

// NewService creates a new ledger service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Receive adds qty units at unitPrice to a position and recomputes its WAC.
// The row is created lazily on first receipt.
func (s *Service) Receive(ctx context.Context, locationID, itemID id.ID, qty types.Quantity, unitPrice types.Money) (*LocationStock, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewValidation("receive quantity must be positive").
			WithDetail("item", itemID.String()).
			WithDetail("quantity", qty.String())
	}
	if unitPrice.IsNegative() {
		return nil, apperror.NewValidation("unit price cannot be negative").
			WithDetail("item", itemID.String())
	}

	stock, err := s.repo.GetForUpdate(ctx, locationID, itemID)
	if err != nil {
		if !apperror.IsNotFound(err) {
			return nil, fmt.Errorf("lock stock row: %w", err)
		}
		stock = &LocationStock{
			LocationID: locationID,
			ItemID:     itemID,
			OnHand:     types.Zero(),
			WAC:        types.Zero(),
		}
	}

	stock.WAC = RecomputeWAC(stock.OnHand, stock.WAC, qty, unitPrice)
	stock.OnHand = types.RoundQuantity(stock.OnHand.Add(qty))
	stock.UpdatedAt = time.Now()

	if err := s.repo.Upsert(ctx, stock); err != nil {
		return nil, fmt.Errorf("upsert stock row: %w", err)
	}

	logger.Debug(ctx, "stock received",
		"location_id", locationID,
		"item_id", itemID,
		"qty", qty.String(),
		"wac", stock.WAC.String(),
	)

	return stock, nil
}

// Deduct removes qty units from a position. The WAC is left untouched;
// issues consume value at the current average cost.
// Returns INSUFFICIENT_STOCK when the position cannot cover the quantity.
func (s *Service) Deduct(ctx context.Context, locationID, itemID id.ID, qty types.Quantity) (*LocationStock, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewValidation("deduct quantity must be positive").
			WithDetail("item", itemID.String()).
			WithDetail("quantity", qty.String())
	}

	stock, err := s.repo.GetForUpdate(ctx, locationID, itemID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewInsufficientStock(itemID.String(), locationID.String(), qty, types.Zero())
		}
		return nil, fmt.Errorf("lock stock row: %w", err)
	}

	if stock.OnHand.LessThan(qty) {
		return nil, apperror.NewInsufficientStock(itemID.String(), locationID.String(), qty, stock.OnHand)
	}

	stock.OnHand = types.RoundQuantity(stock.OnHand.Sub(qty))
	stock.UpdatedAt = time.Now()

	if err := s.repo.Upsert(ctx, stock); err != nil {
		return nil, fmt.Errorf("upsert stock row: %w", err)
	}

	logger.Debug(ctx, "stock deducted",
		"location_id", locationID,
		"item_id", itemID,
		"qty", qty.String(),
		"on_hand", stock.OnHand.String(),
	)

	return stock, nil
}

// ValueAt returns the value (on_hand * WAC) of one position.
// A never-moved position values at zero.
func (s *Service) ValueAt(ctx context.Context, locationID, itemID id.ID) (types.Money, error) {
	stock, err := s.repo.Get(ctx, locationID, itemID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return types.Zero(), nil
		}
		return types.Zero(), err
	}
	return stock.Value(), nil
}

// LocationValue returns the total stock value of a location.
func (s *Service) LocationValue(ctx context.Context, locationID id.ID) (types.Money, error) {
	return s.repo.LocationValue(ctx, locationID)
}

// StockAt returns all positions at a location.
func (s *Service) StockAt(ctx context.Context, locationID id.ID) ([]*LocationStock, error) {
	return s.repo.ListByLocation(ctx, locationID)
}

// Position returns the current row of one position, or an empty row when
// the item has never moved at the location.
func (s *Service) Position(ctx context.Context, locationID, itemID id.ID) (*LocationStock, error) {
	stock, err := s.repo.Get(ctx, locationID, itemID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return &LocationStock{
				LocationID: locationID,
				ItemID:     itemID,
				OnHand:     types.Zero(),
				WAC:        types.Zero(),
			}, nil
		}
		return nil, err
	}
	return stock, nil
}

// OnHand returns the current quantity of one position, zero when the item
// has never moved at the location.
func (s *Service) OnHand(ctx context.Context, locationID, itemID id.ID) (types.Quantity, error) {
	stock, err := s.repo.Get(ctx, locationID, itemID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return types.Zero(), nil
		}
		return types.Zero(), err
	}
	return stock.OnHand, nil
}

// SetLevels updates min/max levels for a position.
func (s *Service) SetLevels(ctx context.Context, locationID, itemID id.ID, minQty, maxQty *types.Quantity) error {
	if minQty != nil && minQty.IsNegative() {
		return apperror.NewValidation("min quantity cannot be negative")
	}
	if maxQty != nil && maxQty.IsNegative() {
		return apperror.NewValidation("max quantity cannot be negative")
	}
	return s.repo.SetLevels(ctx, locationID, itemID, minQty, maxQty)
}
