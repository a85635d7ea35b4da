// Package transfer provides the Transfer document.
// A transfer moves stock between locations through an approval gate:
// creation captures the source WAC but moves nothing; a supervisor's
// approval re-validates availability and applies both sides atomically.
package transfer

import (
	"context"
	"time"

	"provision/internal/core/apperror"
	"provision/internal/core/entity"
	"provision/internal/core/id"
	"provision/internal/core/types"
)

// Status of a transfer.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusCompleted       Status = "COMPLETED"
)

// Transfer is a stock movement between two locations.
type Transfer struct {
	entity.Document

	FromLocationID id.ID `db:"from_location_id" json:"fromLocationId"`
	ToLocationID   id.ID `db:"to_location_id" json:"toLocationId"`

	Status Status `db:"status" json:"status"`

	// TotalValue is the sum of line values at the captured WAC
	TotalValue types.Money `db:"total_value" json:"totalValue"`

	ApprovedBy    *id.ID     `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt    *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	TransferredAt *time.Time `db:"transferred_at" json:"transferredAt,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one transferred item.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ItemID   id.ID          `db:"item_id" json:"itemId"`
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// WACAtTransfer is the source WAC captured at creation; the
	// destination receives at exactly this cost.
	WACAtTransfer types.Money `db:"wac_at_transfer" json:"wacAtTransfer"`

	// Value = quantity * wac_at_transfer
	Value types.Money `db:"value" json:"value"`
}

// NewTransfer creates a transfer awaiting approval.
func NewTransfer(periodID, fromLocationID, toLocationID id.ID) *Transfer {
	return &Transfer{
		Document:       entity.NewDocument(periodID),
		FromLocationID: fromLocationID,
		ToLocationID:   toLocationID,
		Status:         StatusPendingApproval,
		Lines:          make([]Line, 0),
	}
}

// AddLine appends an item. The WAC is captured by the service at creation.
func (t *Transfer) AddLine(itemID id.ID, qty types.Quantity) {
	t.Lines = append(t.Lines, Line{
		LineID:   id.New(),
		LineNo:   len(t.Lines) + 1,
		ItemID:   itemID,
		Quantity: qty,
	})
}

// Validate implements entity.Validatable.
func (t *Transfer) Validate(ctx context.Context) error {
	if err := t.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(t.FromLocationID) {
		return apperror.NewValidation("source location is required").WithDetail("field", "fromLocationId")
	}
	if id.IsNil(t.ToLocationID) {
		return apperror.NewValidation("destination location is required").WithDetail("field", "toLocationId")
	}
	if t.FromLocationID == t.ToLocationID {
		return apperror.NewValidation("source and destination must differ").
			WithDetail("field", "toLocationId")
	}
	if len(t.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}

	for i, line := range t.Lines {
		if id.IsNil(line.ItemID) {
			return apperror.NewValidation("item is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// IsCompleted reports whether the stock has moved. COMPLETED is terminal.
func (t *Transfer) IsCompleted() bool {
	return t.Status == StatusCompleted
}
