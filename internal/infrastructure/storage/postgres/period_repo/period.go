// Package period_repo provides the PostgreSQL implementation of period storage.
package period_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain/period"
	"provision/internal/infrastructure/storage/postgres"
)

const (
	periodsTable         = "periods"
	periodLocationsTable = "period_locations"
)

var periodColumns = []string{
	"id", "name", "start_date", "end_date", "status",
	"closed_at", "closed_by", "created_at", "deletion_mark", "version",
}

var _ period.Repository = (*PeriodRepo)(nil)

// PeriodRepo implements period.Repository.
type PeriodRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewPeriodRepo creates a new period repository.
func NewPeriodRepo(txManager *postgres.TxManager) *PeriodRepo {
	return &PeriodRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *PeriodRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts a period. A partial unique index on status allows at
// most one OPEN row; the violation maps to a conflict error.
func (r *PeriodRepo) Create(ctx context.Context, p *period.Period) error {
	q := r.builder.Insert(periodsTable).
		Columns("id", "name", "start_date", "end_date", "status", "created_at", "deletion_mark", "version").
		Values(p.ID, p.Name, p.StartDate, p.EndDate, p.Status, p.CreatedAt, p.DeletionMark, p.Version)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewConflict("a period is already open")
		}
		return fmt.Errorf("insert period: %w", err)
	}

	return nil
}

// GetByID retrieves a period.
func (r *PeriodRepo) GetByID(ctx context.Context, periodID id.ID) (*period.Period, error) {
	return r.getOne(ctx, squirrel.Eq{"id": periodID}, periodID.String(), "")
}

// CurrentOpen returns the single OPEN period.
func (r *PeriodRepo) CurrentOpen(ctx context.Context) (*period.Period, error) {
	return r.getOne(ctx, squirrel.Eq{"status": period.StatusOpen}, "open", "")
}

// GetForUpdate retrieves a period with a row lock.
func (r *PeriodRepo) GetForUpdate(ctx context.Context, periodID id.ID) (*period.Period, error) {
	return r.getOne(ctx, squirrel.Eq{"id": periodID}, periodID.String(), "FOR UPDATE")
}

func (r *PeriodRepo) getOne(ctx context.Context, cond squirrel.Sqlizer, key, suffix string) (*period.Period, error) {
	q := r.builder.Select(periodColumns...).
		From(periodsTable).
		Where(cond)
	if suffix != "" {
		q = q.Suffix(suffix)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p period.Period
	if err := pgxscan.Get(ctx, r.querier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("period", key)
		}
		return nil, fmt.Errorf("get period: %w", err)
	}

	return &p, nil
}

// MarkClosed sets the period CLOSED. The status predicate rejects a
// second close of the same period.
func (r *PeriodRepo) MarkClosed(ctx context.Context, periodID, closedBy id.ID, closedAt time.Time) error {
	q := r.builder.Update(periodsTable).
		Set("status", period.StatusClosed).
		Set("closed_by", closedBy).
		Set("closed_at", closedAt).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": periodID}).
		Where(squirrel.Eq{"status": period.StatusOpen})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build close: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("close period: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConflict("period is not open")
	}

	return nil
}

// List returns periods ordered by start date descending.
func (r *PeriodRepo) List(ctx context.Context, limit, offset int) ([]*period.Period, error) {
	q := r.builder.Select(periodColumns...).
		From(periodsTable).
		OrderBy("start_date DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var periods []*period.Period
	if err := pgxscan.Select(ctx, r.querier(ctx), &periods, sql, args...); err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}

	return periods, nil
}

// PreviousPeriod returns the latest period starting before the given one.
func (r *PeriodRepo) PreviousPeriod(ctx context.Context, periodID id.ID) (*period.Period, error) {
	sql := `
		SELECT id, name, start_date, end_date, status,
		       closed_at, closed_by, created_at, deletion_mark, version
		FROM periods
		WHERE start_date < (SELECT start_date FROM periods WHERE id = $1)
		ORDER BY start_date DESC
		LIMIT 1
	`

	var p period.Period
	if err := pgxscan.Get(ctx, r.querier(ctx), &p, sql, periodID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("period", "previous of "+periodID.String())
		}
		return nil, fmt.Errorf("previous period: %w", err)
	}

	return &p, nil
}

// CreateLocations inserts the NOT_READY rows for a new period.
func (r *PeriodRepo) CreateLocations(ctx context.Context, rows []*period.PeriodLocation) error {
	if len(rows) == 0 {
		return nil
	}

	q := r.builder.Insert(periodLocationsTable).
		Columns("period_id", "location_id", "status")
	for _, row := range rows {
		q = q.Values(row.PeriodID, row.LocationID, row.Status)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert period locations: %w", err)
	}

	return nil
}

// GetLocation returns one readiness row.
func (r *PeriodRepo) GetLocation(ctx context.Context, periodID, locationID id.ID) (*period.PeriodLocation, error) {
	q := r.builder.
		Select("period_id", "location_id", "status", "ready_by", "ready_at").
		From(periodLocationsTable).
		Where(squirrel.Eq{
			"period_id":   periodID,
			"location_id": locationID,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row period.PeriodLocation
	if err := pgxscan.Get(ctx, r.querier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("period location", locationID.String())
		}
		return nil, fmt.Errorf("get period location: %w", err)
	}

	return &row, nil
}

// MarkLocationReady flips a row to READY. The status predicate makes a
// second call a no-op, keeping the first ready_by/ready_at.
func (r *PeriodRepo) MarkLocationReady(ctx context.Context, periodID, locationID, readyBy id.ID, readyAt time.Time) error {
	q := r.builder.Update(periodLocationsTable).
		Set("status", period.LocationReady).
		Set("ready_by", readyBy).
		Set("ready_at", readyAt).
		Where(squirrel.Eq{
			"period_id":   periodID,
			"location_id": locationID,
			"status":      period.LocationNotReady,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build mark ready: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("mark location ready: %w", err)
	}

	return nil
}

// ListLocations returns all readiness rows of a period.
func (r *PeriodRepo) ListLocations(ctx context.Context, periodID id.ID) ([]*period.PeriodLocation, error) {
	q := r.builder.
		Select("period_id", "location_id", "status", "ready_by", "ready_at").
		From(periodLocationsTable).
		Where(squirrel.Eq{"period_id": periodID}).
		OrderBy("location_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []*period.PeriodLocation
	if err := pgxscan.Select(ctx, r.querier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list period locations: %w", err)
	}

	return rows, nil
}

// CountNotReady returns how many locations have not signed off.
func (r *PeriodRepo) CountNotReady(ctx context.Context, periodID id.ID) (int, error) {
	sql := `
		SELECT COUNT(*)
		FROM period_locations
		WHERE period_id = $1 AND status = $2
	`

	var count int
	if err := r.querier(ctx).QueryRow(ctx, sql, periodID, period.LocationNotReady).Scan(&count); err != nil {
		return 0, fmt.Errorf("count not ready: %w", err)
	}

	return count, nil
}
