// Package ledger_repo provides the PostgreSQL implementation of the stock ledger.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/core/types"
	"provision/internal/domain/ledger"
	"provision/internal/infrastructure/storage/postgres"
)

const locationStockTable = "location_stock"

var stockColumns = []string{
	"location_id", "item_id", "on_hand", "wac",
	"min_qty", "max_qty", "last_counted_at", "updated_at",
}

var _ ledger.Repository = (*StockRepo)(nil)

// StockRepo implements ledger.Repository on the location_stock table.
// One row per (location, item); the table carries running on-hand and
// weighted average cost, not a movement journal.
type StockRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock ledger repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *StockRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Get returns the current position for location+item.
func (r *StockRepo) Get(ctx context.Context, locationID, itemID id.ID) (*ledger.LocationStock, error) {
	q := r.builder.Select(stockColumns...).
		From(locationStockTable).
		Where(squirrel.Eq{
			"location_id": locationID,
			"item_id":     itemID,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var stock ledger.LocationStock
	if err := pgxscan.Get(ctx, r.querier(ctx), &stock, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock", locationID.String()+"/"+itemID.String())
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}

	return &stock, nil
}

// GetForUpdate returns the position with a row lock. Concurrent postings
// against the same position queue here.
func (r *StockRepo) GetForUpdate(ctx context.Context, locationID, itemID id.ID) (*ledger.LocationStock, error) {
	sql := `
		SELECT location_id, item_id, on_hand, wac,
		       min_qty, max_qty, last_counted_at, updated_at
		FROM location_stock
		WHERE location_id = $1 AND item_id = $2
		FOR UPDATE
	`

	var stock ledger.LocationStock
	if err := pgxscan.Get(ctx, r.querier(ctx), &stock, sql, locationID, itemID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock", locationID.String()+"/"+itemID.String())
		}
		return nil, fmt.Errorf("get stock for update: %w", err)
	}

	return &stock, nil
}

// Upsert inserts or updates a position.
func (r *StockRepo) Upsert(ctx context.Context, stock *ledger.LocationStock) error {
	sql := `
		INSERT INTO location_stock
			(location_id, item_id, on_hand, wac, min_qty, max_qty, last_counted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (location_id, item_id) DO UPDATE SET
			on_hand = EXCLUDED.on_hand,
			wac = EXCLUDED.wac,
			min_qty = EXCLUDED.min_qty,
			max_qty = EXCLUDED.max_qty,
			last_counted_at = EXCLUDED.last_counted_at,
			updated_at = NOW()
	`

	_, err := r.querier(ctx).Exec(ctx, sql,
		stock.LocationID, stock.ItemID, stock.OnHand, stock.WAC,
		stock.MinQty, stock.MaxQty, stock.LastCountedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert stock: %w", err)
	}

	return nil
}

// ListByLocation returns all positions at a location.
func (r *StockRepo) ListByLocation(ctx context.Context, locationID id.ID) ([]*ledger.LocationStock, error) {
	q := r.builder.Select(stockColumns...).
		From(locationStockTable).
		Where(squirrel.Eq{"location_id": locationID}).
		OrderBy("item_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var stocks []*ledger.LocationStock
	if err := pgxscan.Select(ctx, r.querier(ctx), &stocks, sql, args...); err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}

	return stocks, nil
}

// LocationValue returns SUM(on_hand * wac) for a location.
func (r *StockRepo) LocationValue(ctx context.Context, locationID id.ID) (types.Money, error) {
	sql := `
		SELECT COALESCE(SUM(ROUND(on_hand * wac, 2)), 0)
		FROM location_stock
		WHERE location_id = $1
	`

	var value types.Money
	if err := r.querier(ctx).QueryRow(ctx, sql, locationID).Scan(&value); err != nil {
		return types.Zero(), fmt.Errorf("location value: %w", err)
	}

	return value, nil
}

// SetLevels updates the min/max advisory levels for a position.
func (r *StockRepo) SetLevels(ctx context.Context, locationID, itemID id.ID, minQty, maxQty *types.Quantity) error {
	sql := `
		INSERT INTO location_stock
			(location_id, item_id, on_hand, wac, min_qty, max_qty, updated_at)
		VALUES ($1, $2, 0, 0, $3, $4, NOW())
		ON CONFLICT (location_id, item_id) DO UPDATE SET
			min_qty = EXCLUDED.min_qty,
			max_qty = EXCLUDED.max_qty,
			updated_at = NOW()
	`

	if _, err := r.querier(ctx).Exec(ctx, sql, locationID, itemID, minQty, maxQty); err != nil {
		return fmt.Errorf("set levels: %w", err)
	}

	return nil
}
