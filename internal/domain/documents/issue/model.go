// Package issue provides the Issue document.
// An issue records stock consumed by a location (kitchen production, wastage,
// staff feeding); it posts in one step at the current weighted average cost.
package issue

import (
	"context"

	"provision/internal/core/apperror"
	"provision/internal/core/entity"
	"provision/internal/core/id"
	"provision/internal/core/types"
)

// CostCentre classifies what consumed the stock.
type CostCentre string

const (
	CostCentreKitchen CostCentre = "kitchen"
	CostCentreWastage CostCentre = "wastage"
	CostCentreStaff   CostCentre = "staff"
	CostCentreOther   CostCentre = "other"
)

// Issue is a posted stock issue.
type Issue struct {
	entity.Document

	LocationID id.ID      `db:"location_id" json:"locationId"`
	CostCentre CostCentre `db:"cost_centre" json:"costCentre"`

	// TotalValue is the sum of line values at WAC
	TotalValue types.Money `db:"total_value" json:"totalValue"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one issued item.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ItemID   id.ID          `db:"item_id" json:"itemId"`
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// WACAtIssue is the weighted average cost captured at posting;
	// it never changes afterwards.
	WACAtIssue types.Money `db:"wac_at_issue" json:"wacAtIssue"`

	// Value = quantity * wac_at_issue
	Value types.Money `db:"value" json:"value"`
}

// NewIssue creates an issue posting into the given period.
func NewIssue(periodID, locationID id.ID, costCentre CostCentre) *Issue {
	return &Issue{
		Document:   entity.NewDocument(periodID),
		LocationID: locationID,
		CostCentre: costCentre,
		Lines:      make([]Line, 0),
	}
}

// AddLine appends an issued item. Costing happens at posting.
func (i *Issue) AddLine(itemID id.ID, qty types.Quantity) {
	i.Lines = append(i.Lines, Line{
		LineID:   id.New(),
		LineNo:   len(i.Lines) + 1,
		ItemID:   itemID,
		Quantity: qty,
	})
}

// Validate implements entity.Validatable.
func (i *Issue) Validate(ctx context.Context) error {
	if err := i.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(i.LocationID) {
		return apperror.NewValidation("location is required").WithDetail("field", "locationId")
	}
	if !isValidCostCentre(i.CostCentre) {
		return apperror.NewValidation("invalid cost centre").
			WithDetail("field", "costCentre").
			WithDetail("value", string(i.CostCentre))
	}
	if len(i.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}

	for idx, line := range i.Lines {
		if id.IsNil(line.ItemID) {
			return apperror.NewValidation("item is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", idx+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", idx+1)
		}
	}

	return nil
}

func isValidCostCentre(c CostCentre) bool {
	switch c {
	case CostCentreKitchen, CostCentreWastage, CostCentreStaff, CostCentreOther:
		return true
	}
	return false
}
