// Package notification provides event notifications.
// Settings pair an event with a CEL rule and a recipient list; dispatch is
// fire-and-forget and never blocks or fails document posting.
package notification

import (
	"context"

	"provision/internal/core/apperror"
	"provision/internal/core/entity"
)

// Event names the business moments that can notify.
type Event string

const (
	EventPriceVariance   Event = "price_variance"
	EventNCRCreated      Event = "ncr_created"
	EventTransferPending Event = "transfer_pending"
	EventPeriodClosed    Event = "period_closed"
	EventStockBelowMin   Event = "stock_below_min"
)

// KnownEvents lists every dispatchable event.
var KnownEvents = []Event{
	EventPriceVariance,
	EventNCRCreated,
	EventTransferPending,
	EventPeriodClosed,
	EventStockBelowMin,
}

// Setting is one notification subscription.
type Setting struct {
	entity.BaseEntity

	Name  string `db:"name" json:"name"`
	Event Event  `db:"event" json:"event"`

	// Rule is a CEL expression over the event payload; empty means
	// "always notify". Compiled at save time, evaluated at dispatch.
	Rule string `db:"rule" json:"rule"`

	Recipients []string `db:"recipients" json:"recipients"`
	Enabled    bool     `db:"enabled" json:"enabled"`
}

// NewSetting creates an enabled subscription.
func NewSetting(name string, event Event, rule string, recipients []string) *Setting {
	return &Setting{
		BaseEntity: entity.NewBaseEntity(),
		Name:       name,
		Event:      event,
		Rule:       rule,
		Recipients: recipients,
		Enabled:    true,
	}
}

// Validate implements entity.Validatable interface.
// Rule compilation is checked separately by the rule engine.
func (s *Setting) Validate(ctx context.Context) error {
	if s.Name == "" {
		return apperror.NewValidation("setting name is required").WithDetail("field", "name")
	}
	if !isKnownEvent(s.Event) {
		return apperror.NewValidation("unknown event").
			WithDetail("field", "event").
			WithDetail("value", string(s.Event))
	}
	if len(s.Recipients) == 0 {
		return apperror.NewValidation("at least one recipient is required").
			WithDetail("field", "recipients")
	}
	return nil
}

func isKnownEvent(e Event) bool {
	for _, known := range KnownEvents {
		if e == known {
			return true
		}
	}
	return false
}

// Message is a rendered notification handed to sinks.
type Message struct {
	Event      Event
	Subject    string
	Body       string
	Recipients []string
	Payload    map[string]any
}
