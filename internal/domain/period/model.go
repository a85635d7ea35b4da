// Package period provides accounting periods.
// Documents always post into the single OPEN period; closing a period is
// the reconciliation milestone that freezes its numbers.
package period

import (
	"context"
	"time"

	"provision/internal/core/apperror"
	"provision/internal/core/entity"
	"provision/internal/core/id"
)

// Status of a period.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// LocationStatus of one location within a period.
type LocationStatus string

const (
	LocationNotReady LocationStatus = "NOT_READY"
	LocationReady    LocationStatus = "READY"
)

// Period is one accounting month.
// At most one period is OPEN system-wide at any time.
type Period struct {
	entity.BaseEntity

	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"startDate"`
	EndDate   time.Time `db:"end_date" json:"endDate"`
	Status    Status    `db:"status" json:"status"`

	ClosedAt *time.Time `db:"closed_at" json:"closedAt,omitempty"`
	ClosedBy *id.ID     `db:"closed_by" json:"closedBy,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewPeriod creates an OPEN period covering [start, end].
func NewPeriod(name string, start, end time.Time) *Period {
	return &Period{
		BaseEntity: entity.NewBaseEntity(),
		Name:       name,
		StartDate:  start,
		EndDate:    end,
		Status:     StatusOpen,
		CreatedAt:  time.Now(),
	}
}

// Validate implements entity.Validatable interface.
func (p *Period) Validate(ctx context.Context) error {
	if p.Name == "" {
		return apperror.NewValidation("period name is required").WithDetail("field", "name")
	}
	if !p.EndDate.After(p.StartDate) {
		return apperror.NewValidation("period end date must be after start date").
			WithDetail("startDate", p.StartDate.Format("2006-01-02")).
			WithDetail("endDate", p.EndDate.Format("2006-01-02"))
	}
	switch p.Status {
	case StatusOpen, StatusClosed:
	default:
		return apperror.NewValidation("invalid period status").WithDetail("value", string(p.Status))
	}
	return nil
}

// IsOpen reports whether documents may post into the period.
func (p *Period) IsOpen() bool {
	return p.Status == StatusOpen
}

// NextMonth returns the name and bounds of the calendar month following the period.
func (p *Period) NextMonth() (name string, start, end time.Time) {
	start = time.Date(p.StartDate.Year(), p.StartDate.Month()+1, 1, 0, 0, 0, 0, p.StartDate.Location())
	end = start.AddDate(0, 1, 0).Add(-24 * time.Hour)
	return start.Format("January 2006"), start, end
}

// PeriodLocation tracks one location's readiness within a period.
type PeriodLocation struct {
	PeriodID   id.ID          `db:"period_id" json:"periodId"`
	LocationID id.ID          `db:"location_id" json:"locationId"`
	Status     LocationStatus `db:"status" json:"status"`
	ReadyBy    *id.ID         `db:"ready_by" json:"readyBy,omitempty"`
	ReadyAt    *time.Time     `db:"ready_at" json:"readyAt,omitempty"`
}

// IsReady reports whether the location signed off the period.
func (pl *PeriodLocation) IsReady() bool {
	return pl.Status == LocationReady
}
