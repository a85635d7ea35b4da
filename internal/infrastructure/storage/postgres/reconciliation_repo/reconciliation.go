// Package reconciliation_repo provides the PostgreSQL implementation of
// reconciliation snapshot storage.
package reconciliation_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain/reconciliation"
	"provision/internal/infrastructure/storage/postgres"
)

const reconciliationsTable = "reconciliations"

var _ reconciliation.Repository = (*ReconciliationRepo)(nil)

// ReconciliationRepo implements reconciliation.Repository.
type ReconciliationRepo struct {
	txManager  *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewReconciliationRepo creates a new reconciliation repository.
func NewReconciliationRepo(txManager *postgres.TxManager) *ReconciliationRepo {
	return &ReconciliationRepo{
		txManager:  txManager,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[reconciliation.Reconciliation](),
	}
}

func (r *ReconciliationRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// GetSaved returns the saved snapshot for period+location.
func (r *ReconciliationRepo) GetSaved(ctx context.Context, periodID, locationID id.ID) (*reconciliation.Reconciliation, error) {
	q := r.builder.Select(r.selectCols...).
		From(reconciliationsTable).
		Where(squirrel.Eq{
			"period_id":   periodID,
			"location_id": locationID,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rec reconciliation.Reconciliation
	if err := pgxscan.Get(ctx, r.querier(ctx), &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("reconciliation", locationID.String())
		}
		return nil, fmt.Errorf("get reconciliation: %w", err)
	}

	return &rec, nil
}

// Save upserts a snapshot on (period_id, location_id). A re-save of the
// same location replaces the previous figures.
func (r *ReconciliationRepo) Save(ctx context.Context, rec *reconciliation.Reconciliation) error {
	data := postgres.StructToMap(rec)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.Insert(reconciliationsTable).SetMap(filteredData)

	updateCols := make([]string, 0, len(r.selectCols))
	for _, col := range r.selectCols {
		if col == "id" || col == "period_id" || col == "location_id" {
			continue
		}
		updateCols = append(updateCols, col+" = EXCLUDED."+col)
	}
	q = q.Suffix("ON CONFLICT (period_id, location_id) DO UPDATE SET " + strings.Join(updateCols, ", "))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("save reconciliation: %w", err)
	}

	return nil
}

// ListSavedByPeriod returns all saved snapshots of a period.
func (r *ReconciliationRepo) ListSavedByPeriod(ctx context.Context, periodID id.ID) ([]*reconciliation.Reconciliation, error) {
	q := r.builder.Select(r.selectCols...).
		From(reconciliationsTable).
		Where(squirrel.Eq{"period_id": periodID}).
		OrderBy("location_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var recs []*reconciliation.Reconciliation
	if err := pgxscan.Select(ctx, r.querier(ctx), &recs, sql, args...); err != nil {
		return nil, fmt.Errorf("list reconciliations: %w", err)
	}

	return recs, nil
}
