package notification

import (
	"context"

	"provision/internal/core/id"
)

// Repository defines persistence for notification settings.
type Repository interface {
	Create(ctx context.Context, setting *Setting) error
	GetByID(ctx context.Context, settingID id.ID) (*Setting, error)
	Update(ctx context.Context, setting *Setting) error
	Delete(ctx context.Context, settingID id.ID) error
	List(ctx context.Context) ([]*Setting, error)

	// ListEnabledByEvent returns the enabled subscriptions for one event.
	ListEnabledByEvent(ctx context.Context, event Event) ([]*Setting, error)
}
