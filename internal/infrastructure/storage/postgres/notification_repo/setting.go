// Package notification_repo provides the PostgreSQL implementation of
// notification settings storage.
package notification_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain/notification"
	"provision/internal/infrastructure/storage/postgres"
)

const settingsTable = "notification_settings"

var settingColumns = []string{
	"id", "name", "event", "rule", "recipients", "enabled",
	"deletion_mark", "version",
}

var _ notification.Repository = (*SettingRepo)(nil)

// SettingRepo implements notification.Repository.
type SettingRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewSettingRepo creates a new notification settings repository.
func NewSettingRepo(txManager *postgres.TxManager) *SettingRepo {
	return &SettingRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *SettingRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts a subscription.
func (r *SettingRepo) Create(ctx context.Context, setting *notification.Setting) error {
	q := r.builder.Insert(settingsTable).
		Columns(settingColumns...).
		Values(
			setting.ID, setting.Name, setting.Event, setting.Rule,
			setting.Recipients, setting.Enabled,
			setting.DeletionMark, setting.Version,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert setting: %w", err)
	}

	return nil
}

// GetByID retrieves a subscription.
func (r *SettingRepo) GetByID(ctx context.Context, settingID id.ID) (*notification.Setting, error) {
	q := r.builder.Select(settingColumns...).
		From(settingsTable).
		Where(squirrel.Eq{"id": settingID}).
		Where(squirrel.Eq{"deletion_mark": false})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var setting notification.Setting
	if err := pgxscan.Get(ctx, r.querier(ctx), &setting, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("notification setting", settingID.String())
		}
		return nil, fmt.Errorf("get setting: %w", err)
	}

	return &setting, nil
}

// Update modifies a subscription with optimistic locking.
func (r *SettingRepo) Update(ctx context.Context, setting *notification.Setting) error {
	q := r.builder.Update(settingsTable).
		Set("name", setting.Name).
		Set("event", setting.Event).
		Set("rule", setting.Rule).
		Set("recipients", setting.Recipients).
		Set("enabled", setting.Enabled).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": setting.ID}).
		Where(squirrel.Eq{"version": setting.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update setting: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(settingsTable, setting.ID)
	}

	return nil
}

// Delete marks a subscription deleted.
func (r *SettingRepo) Delete(ctx context.Context, settingID id.ID) error {
	q := r.builder.Update(settingsTable).
		Set("deletion_mark", true).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": settingID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("notification setting", settingID.String())
	}

	return nil
}

// List returns all subscriptions.
func (r *SettingRepo) List(ctx context.Context) ([]*notification.Setting, error) {
	q := r.builder.Select(settingColumns...).
		From(settingsTable).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("name")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var settings []*notification.Setting
	if err := pgxscan.Select(ctx, r.querier(ctx), &settings, sql, args...); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}

	return settings, nil
}

// ListEnabledByEvent returns the enabled subscriptions for one event.
func (r *SettingRepo) ListEnabledByEvent(ctx context.Context, event notification.Event) ([]*notification.Setting, error) {
	q := r.builder.Select(settingColumns...).
		From(settingsTable).
		Where(squirrel.Eq{
			"event":         event,
			"enabled":       true,
			"deletion_mark": false,
		}).
		OrderBy("name")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var settings []*notification.Setting
	if err := pgxscan.Select(ctx, r.querier(ctx), &settings, sql, args...); err != nil {
		return nil, fmt.Errorf("list enabled settings: %w", err)
	}

	return settings, nil
}
