package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain/catalogs/location"
	"provision/internal/infrastructure/storage/postgres"
)

const locationTable = "cat_locations"

// Compile-time check.
var _ location.Repository = (*LocationRepo)(nil)

// LocationRepo implements location.Repository.
type LocationRepo struct {
	*BaseCatalogRepo[*location.Location]
}

// NewLocationRepo creates a new location repository.
func NewLocationRepo(txManager *postgres.TxManager) *LocationRepo {
	return &LocationRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			locationTable,
			postgres.ExtractDBColumns[location.Location](),
			func() *location.Location { return &location.Location{} },
		),
	}
}

// ListActive returns all active, unmarked locations ordered by name.
func (r *LocationRepo) ListActive(ctx context.Context) ([]*location.Location, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("name ASC")

	return r.FindMany(ctx, q)
}

// SetActive flips the active flag.
func (r *LocationRepo) SetActive(ctx context.Context, locationID id.ID, active bool) error {
	q := r.Builder().
		Update(locationTable).
		Set("is_active", active).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": locationID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build set active: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("location", locationID.String())
	}
	return nil
}
