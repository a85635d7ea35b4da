// Package delivery provides the Delivery document.
// A delivery records goods received from a supplier into a location; it
// posts in one step, driving the ledger and price variance detection.
package delivery

import (
	"context"

	"provision/internal/core/apperror"
	"provision/internal/core/entity"
	"provision/internal/core/id"
	"provision/internal/core/types"
)

// Delivery is a posted supplier delivery.
type Delivery struct {
	entity.Document

	LocationID id.ID `db:"location_id" json:"locationId"`
	SupplierID id.ID `db:"supplier_id" json:"supplierId"`

	// SupplierRef is the supplier's delivery note number
	SupplierRef string `db:"supplier_ref" json:"supplierRef,omitempty"`

	// TotalAmount is the sum of line amounts at actual prices
	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`

	// HasVariance is true when at least one line deviated from the locked price
	HasVariance bool `db:"has_variance" json:"hasVariance"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one received item.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ItemID    id.ID          `db:"item_id" json:"itemId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice types.Money    `db:"unit_price" json:"unitPrice"`

	// PeriodPrice is the locked expected price, copied at posting
	PeriodPrice types.Money `db:"period_price" json:"periodPrice"`

	// Variance = unit_price - period_price, set at posting
	Variance types.Money `db:"variance" json:"variance"`

	// Amount = quantity * unit_price
	Amount types.Money `db:"amount" json:"amount"`
}

// NewDelivery creates a delivery posting into the given period.
func NewDelivery(periodID, locationID, supplierID id.ID) *Delivery {
	return &Delivery{
		Document:   entity.NewDocument(periodID),
		LocationID: locationID,
		SupplierID: supplierID,
		Lines:      make([]Line, 0),
	}
}

// AddLine appends a received item and recalculates totals.
func (d *Delivery) AddLine(itemID id.ID, qty types.Quantity, unitPrice types.Money) {
	d.Lines = append(d.Lines, Line{
		LineID:    id.New(),
		LineNo:    len(d.Lines) + 1,
		ItemID:    itemID,
		Quantity:  qty,
		UnitPrice: unitPrice,
		Amount:    types.RoundMoney(qty.Mul(unitPrice)),
	})
	d.recalculateTotals()
}

func (d *Delivery) recalculateTotals() {
	total := types.Zero()
	for _, line := range d.Lines {
		total = total.Add(line.Amount)
	}
	d.TotalAmount = types.RoundMoney(total)
}

// Validate implements entity.Validatable.
func (d *Delivery) Validate(ctx context.Context) error {
	if err := d.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(d.LocationID) {
		return apperror.NewValidation("location is required").WithDetail("field", "locationId")
	}
	if id.IsNil(d.SupplierID) {
		return apperror.NewValidation("supplier is required").WithDetail("field", "supplierId")
	}
	if len(d.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}

	for i, line := range d.Lines {
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
		if line.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price cannot be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}
