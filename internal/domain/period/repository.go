package period

import (
	"context"
	"time"

	"provision/internal/core/id"
)

// Repository defines persistence for periods.
type Repository interface {
	// Create inserts a period. The store enforces a single OPEN period
	// (partial unique index); a violation surfaces as a conflict error.
	Create(ctx context.Context, p *Period) error

	// GetByID retrieves a period.
	GetByID(ctx context.Context, periodID id.ID) (*Period, error)

	// CurrentOpen returns the single OPEN period, not-found when none exists.
	CurrentOpen(ctx context.Context) (*Period, error)

	// GetForUpdate retrieves a period with a row lock (used by period close).
	GetForUpdate(ctx context.Context, periodID id.ID) (*Period, error)

	// MarkClosed sets the period CLOSED. Returns a conflict error when the
	// period is not OPEN anymore.
	MarkClosed(ctx context.Context, periodID, closedBy id.ID, closedAt time.Time) error

	// List returns periods ordered by start date descending.
	List(ctx context.Context, limit, offset int) ([]*Period, error)

	// PreviousPeriod returns the period immediately before the given one,
	// not-found for the first period ever.
	PreviousPeriod(ctx context.Context, periodID id.ID) (*Period, error)

	// Location readiness

	// CreateLocations inserts the NOT_READY rows for a new period.
	CreateLocations(ctx context.Context, rows []*PeriodLocation) error

	// GetLocation returns one readiness row.
	GetLocation(ctx context.Context, periodID, locationID id.ID) (*PeriodLocation, error)

	// MarkLocationReady flips a row to READY. Idempotent: a second call
	// leaves the original ready_by/ready_at in place.
	MarkLocationReady(ctx context.Context, periodID, locationID, readyBy id.ID, readyAt time.Time) error

	// ListLocations returns all readiness rows of a period.
	ListLocations(ctx context.Context, periodID id.ID) ([]*PeriodLocation, error)

	// CountNotReady returns how many locations have not signed off.
	CountNotReady(ctx context.Context, periodID id.ID) (int, error)
}
