// Package audit defines the append-only audit trail contract.
// Postings, approvals, period closes and NCR resolutions are recorded with
// their full payload; the storage layer owns compression and retention.
package audit

import (
	"context"
	"time"

	"provision/internal/core/id"
)

// Action names the recorded operation.
type Action string

const (
	ActionDeliveryPosted   Action = "delivery_posted"
	ActionIssuePosted      Action = "issue_posted"
	ActionTransferCreated  Action = "transfer_created"
	ActionTransferApproved Action = "transfer_approved"
	ActionPeriodClosed     Action = "period_closed"
	ActionNCRResolved      Action = "ncr_resolved"
)

// Entry is one audit record.
type Entry struct {
	ID       id.ID          `db:"id" json:"id"`
	Action   Action         `db:"action" json:"action"`
	Entity   string         `db:"entity" json:"entity"`
	EntityID id.ID          `db:"entity_id" json:"entityId"`
	UserID   string         `db:"user_id" json:"userId"`
	At       time.Time      `db:"at" json:"at"`
	Payload  map[string]any `db:"-" json:"payload"`
}

// NewEntry builds an entry stamped with the current time.
func NewEntry(action Action, entity string, entityID id.ID, userID string, payload map[string]any) Entry {
	return Entry{
		ID:       id.New(),
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		UserID:   userID,
		At:       time.Now().UTC(),
		Payload:  payload,
	}
}

// Recorder persists entries. Implementations must be usable inside the
// caller's transaction.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}
