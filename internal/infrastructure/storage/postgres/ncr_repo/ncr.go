// Package ncr_repo provides the PostgreSQL implementation of NCR storage.
package ncr_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/core/types"
	"provision/internal/domain"
	"provision/internal/domain/ncr"
	"provision/internal/infrastructure/storage/postgres"
)

const ncrsTable = "ncrs"

var _ ncr.Repository = (*NCRRepo)(nil)

// NCRRepo implements ncr.Repository.
type NCRRepo struct {
	txManager  *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewNCRRepo creates a new NCR repository.
func NewNCRRepo(txManager *postgres.TxManager) *NCRRepo {
	return &NCRRepo{
		txManager:  txManager,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[ncr.NCR](),
	}
}

func (r *NCRRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts a report.
func (r *NCRRepo) Create(ctx context.Context, report *ncr.NCR) error {
	data := postgres.StructToMap(report)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.Insert(ncrsTable).SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate(ncrsTable, "number", report.Number)
		}
		return fmt.Errorf("insert ncr: %w", err)
	}

	return nil
}

// GetByID retrieves a report.
func (r *NCRRepo) GetByID(ctx context.Context, reportID id.ID) (*ncr.NCR, error) {
	return r.getOne(ctx, reportID, "")
}

// GetForUpdate retrieves a report with a row lock. Status transitions
// lock the row so concurrent updates serialize.
func (r *NCRRepo) GetForUpdate(ctx context.Context, reportID id.ID) (*ncr.NCR, error) {
	return r.getOne(ctx, reportID, "FOR UPDATE")
}

func (r *NCRRepo) getOne(ctx context.Context, reportID id.ID, suffix string) (*ncr.NCR, error) {
	q := r.builder.Select(r.selectCols...).
		From(ncrsTable).
		Where(squirrel.Eq{"id": reportID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var report ncr.NCR
	if err := pgxscan.Get(ctx, r.querier(ctx), &report, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ncr", reportID.String())
		}
		return nil, fmt.Errorf("get ncr: %w", err)
	}

	return &report, nil
}

// Update modifies a report with optimistic locking.
func (r *NCRRepo) Update(ctx context.Context, report *ncr.NCR) error {
	data := postgres.StructToMap(report)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if col == "id" || col == "created_at" || col == "created_by" || col == "version" {
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.Update(ncrsTable).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": report.ID}).
		Where(squirrel.Eq{"version": report.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update ncr: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(ncrsTable, report.ID)
	}

	return nil
}

// List retrieves reports with filtering.
func (r *NCRRepo) List(ctx context.Context, filter ncr.ListFilter) (domain.ListResult[*ncr.NCR], error) {
	result := domain.ListResult[*ncr.NCR]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.builder.Select(r.selectCols...).From(ncrsTable)

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *filter.LocationID})
	}
	if filter.PeriodID != nil {
		q = q.Where(squirrel.Eq{"period_id": *filter.PeriodID})
	}
	if filter.SupplierID != nil {
		q = q.Where(squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	if filter.DeliveryID != nil {
		q = q.Where(squirrel.Eq{"delivery_id": *filter.DeliveryID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"number": pattern},
			squirrel.ILike{"reason": pattern},
		})
	}

	countQ := r.builder.Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := r.querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	q = q.OrderBy("created_at DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.querier(ctx), &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("select: %w", err)
	}

	return result, nil
}

// CountOpenByPeriod returns the number of reports still awaiting a
// supplier outcome (OPEN or SENT) in a period. CREDITED and REJECTED
// reports already have their outcome and are not counted.
func (r *NCRRepo) CountOpenByPeriod(ctx context.Context, periodID id.ID) (int, error) {
	sql := `
		SELECT COUNT(*)
		FROM ncrs
		WHERE period_id = $1 AND status IN ($2, $3) AND deletion_mark = FALSE
	`

	var count int
	if err := r.querier(ctx).QueryRow(ctx, sql, periodID, ncr.StatusOpen, ncr.StatusSent).Scan(&count); err != nil {
		return 0, fmt.Errorf("count open: %w", err)
	}

	return count, nil
}

// SumResolvedByPeriodLocation totals report values per financial impact.
// A report counts as soon as its supplier outcome is known: CREDITED
// implies a credit and REJECTED implies a loss even before the report is
// formally resolved, RESOLVED reports count by their recorded impact.
func (r *NCRRepo) SumResolvedByPeriodLocation(ctx context.Context, periodID, locationID id.ID, impact ncr.FinancialImpact) (types.Money, error) {
	sql := `
		SELECT COALESCE(SUM(value), 0)
		FROM ncrs
		WHERE period_id = $1
		  AND location_id = $2
		  AND (status = $3 OR (status = $4 AND financial_impact = $5))
		  AND deletion_mark = FALSE
	`

	var total types.Money
	err := r.querier(ctx).QueryRow(ctx, sql,
		periodID, locationID, outcomeStatus(impact), ncr.StatusResolved, impact).Scan(&total)
	if err != nil {
		return types.Zero(), fmt.Errorf("sum resolved: %w", err)
	}

	return total, nil
}

// outcomeStatus maps a financial impact to the supplier-outcome status
// that implies it before resolution.
func outcomeStatus(impact ncr.FinancialImpact) ncr.Status {
	if impact == ncr.ImpactCredit {
		return ncr.StatusCredited
	}
	return ncr.StatusRejected
}
