package dto

import (
	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/core/types"
	"provision/internal/domain/ncr"
)

// CreateNCRRequest raises a manual non-conformance report. The report is
// attached to the currently open period.
type CreateNCRRequest struct {
	LocationID string      `json:"locationId" binding:"required"`
	SupplierID *string     `json:"supplierId"`
	ItemID     *string     `json:"itemId"`
	Reason     string      `json:"reason" binding:"required"`
	Value      types.Money `json:"value"`
}

// ToNCR builds the domain report for the given period.
func (r CreateNCRRequest) ToNCR(periodID id.ID) (*ncr.NCR, error) {
	locationID, err := id.Parse(r.LocationID)
	if err != nil {
		return nil, apperror.NewValidation("invalid location id").WithDetail("field", "locationId")
	}

	report := ncr.NewManual(locationID, periodID, r.Reason, r.Value)
	if r.SupplierID != nil {
		supplierID, err := id.Parse(*r.SupplierID)
		if err != nil {
			return nil, apperror.NewValidation("invalid supplier id").WithDetail("field", "supplierId")
		}
		report.SupplierID = &supplierID
	}
	if r.ItemID != nil {
		itemID, err := id.Parse(*r.ItemID)
		if err != nil {
			return nil, apperror.NewValidation("invalid item id").WithDetail("field", "itemId")
		}
		report.ItemID = &itemID
	}
	return report, nil
}

// UpdateNCRStatusRequest moves a report along its lifecycle.
type UpdateNCRStatusRequest struct {
	Status          string  `json:"status" binding:"required,oneof=OPEN SENT CREDITED REJECTED RESOLVED"`
	FinancialImpact *string `json:"financialImpact" binding:"omitempty,oneof=NONE CREDIT LOSS"`
	ResolutionNote  *string `json:"resolutionNote"`
}

// ToInput maps to the domain input.
func (r UpdateNCRStatusRequest) ToInput() ncr.UpdateStatusInput {
	input := ncr.UpdateStatusInput{
		Status:         ncr.Status(r.Status),
		ResolutionNote: r.ResolutionNote,
	}
	if r.FinancialImpact != nil {
		impact := ncr.FinancialImpact(*r.FinancialImpact)
		input.FinancialImpact = &impact
	}
	return input
}
