package dto

import (
	"provision/internal/core/types"
	"provision/internal/domain/reconciliation"
)

// SetStockLevelsRequest sets the min/max levels of a position.
type SetStockLevelsRequest struct {
	MinQty *types.Quantity `json:"minQty"`
	MaxQty *types.Quantity `json:"maxQty"`
}

// SaveReconciliationRequest carries the manually entered adjustment figures.
// All amounts are entered as positive values.
type SaveReconciliationRequest struct {
	Adjustments   types.Money `json:"adjustments"`
	BackCharges   types.Money `json:"backCharges"`
	Credits       types.Money `json:"credits"`
	Condemnations types.Money `json:"condemnations"`
}

// ToAdjustments maps to the domain input.
func (r SaveReconciliationRequest) ToAdjustments() reconciliation.AdjustmentInput {
	return reconciliation.AdjustmentInput{
		Adjustments:   r.Adjustments,
		BackCharges:   r.BackCharges,
		Credits:       r.Credits,
		Condemnations: r.Condemnations,
	}
}
