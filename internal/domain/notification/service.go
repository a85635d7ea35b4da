package notification

import (
	"context"
	"fmt"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/core/tx"
)

// Service manages notification settings. Rules are compiled at save time so
// a broken expression is rejected before it can silence an event.
type Service struct {
	repo      Repository
	rules     *RuleEngine
	txManager tx.Manager
}

// NewService creates a new settings service.
func NewService(repo Repository, rules *RuleEngine, txManager tx.Manager) *Service {
	return &Service{repo: repo, rules: rules, txManager: txManager}
}

// Create validates, compiles and stores a subscription.
func (s *Service) Create(ctx context.Context, setting *Setting) error {
	if err := setting.Validate(ctx); err != nil {
		return err
	}
	if _, err := s.rules.Compile(setting.Rule); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, setting); err != nil {
			return fmt.Errorf("create notification setting: %w", err)
		}
		return nil
	})
}

// Update validates, recompiles and stores a subscription.
func (s *Service) Update(ctx context.Context, setting *Setting) error {
	if err := setting.Validate(ctx); err != nil {
		return err
	}
	if _, err := s.rules.Compile(setting.Rule); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, setting); err != nil {
			return fmt.Errorf("update notification setting: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a subscription.
func (s *Service) GetByID(ctx context.Context, settingID id.ID) (*Setting, error) {
	setting, err := s.repo.GetByID(ctx, settingID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("notification setting", settingID.String())
		}
		return nil, err
	}
	return setting, nil
}

// List returns all subscriptions.
func (s *Service) List(ctx context.Context) ([]*Setting, error) {
	return s.repo.List(ctx)
}

// Delete removes a subscription.
func (s *Service) Delete(ctx context.Context, settingID id.ID) error {
	if _, err := s.GetByID(ctx, settingID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, settingID)
}
