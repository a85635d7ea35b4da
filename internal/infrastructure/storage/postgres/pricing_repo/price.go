// Package pricing_repo provides the PostgreSQL implementation of the
// period price snapshot store.
package pricing_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain/pricing"
	"provision/internal/infrastructure/storage/postgres"
)

const itemPricesTable = "item_prices"

var _ pricing.Repository = (*PriceRepo)(nil)

// PriceRepo implements pricing.Repository.
type PriceRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewPriceRepo creates a new price snapshot repository.
func NewPriceRepo(txManager *postgres.TxManager) *PriceRepo {
	return &PriceRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *PriceRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// BulkInsert writes the price snapshot for a period. The unique index on
// (period_id, item_id) rejects rewrites; snapshots are immutable.
func (r *PriceRepo) BulkInsert(ctx context.Context, prices []*pricing.ItemPrice) error {
	if len(prices) == 0 {
		return nil
	}

	// COPY inside the opening transaction; a snapshot spans every active item.
	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		columns := []string{"period_id", "item_id", "expected_price", "locked_at"}
		rows := make([][]any, 0, len(prices))
		for _, p := range prices {
			rows = append(rows, []any{p.PeriodID, p.ItemID, p.ExpectedPrice, p.LockedAt})
		}
		if _, err := inserter.CopyFromSlice(ctx, itemPricesTable, columns, rows); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return apperror.NewConflict("price snapshot already exists for period")
			}
			return fmt.Errorf("copy prices: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(itemPricesTable).
		Columns("period_id", "item_id", "expected_price", "locked_at")
	for _, p := range prices {
		q = q.Values(p.PeriodID, p.ItemID, p.ExpectedPrice, p.LockedAt)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewConflict("price snapshot already exists for period")
		}
		return fmt.Errorf("insert prices: %w", err)
	}

	return nil
}

// Get returns the locked price of one item for one period.
func (r *PriceRepo) Get(ctx context.Context, periodID, itemID id.ID) (*pricing.ItemPrice, error) {
	q := r.builder.
		Select("period_id", "item_id", "expected_price", "locked_at").
		From(itemPricesTable).
		Where(squirrel.Eq{
			"period_id": periodID,
			"item_id":   itemID,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var price pricing.ItemPrice
	if err := pgxscan.Get(ctx, r.querier(ctx), &price, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("item price", itemID.String())
		}
		return nil, fmt.Errorf("get price: %w", err)
	}

	return &price, nil
}

// ListByPeriod returns the full snapshot of a period.
func (r *PriceRepo) ListByPeriod(ctx context.Context, periodID id.ID) ([]*pricing.ItemPrice, error) {
	q := r.builder.
		Select("period_id", "item_id", "expected_price", "locked_at").
		From(itemPricesTable).
		Where(squirrel.Eq{"period_id": periodID}).
		OrderBy("item_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var prices []*pricing.ItemPrice
	if err := pgxscan.Select(ctx, r.querier(ctx), &prices, sql, args...); err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}

	return prices, nil
}

// ExistsForPeriod reports whether a snapshot exists.
func (r *PriceRepo) ExistsForPeriod(ctx context.Context, periodID id.ID) (bool, error) {
	sql := `SELECT EXISTS(SELECT 1 FROM item_prices WHERE period_id = $1)`

	var exists bool
	if err := r.querier(ctx).QueryRow(ctx, sql, periodID).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists for period: %w", err)
	}

	return exists, nil
}
