// Package ncr provides non-conformance reports.
// NCRs record supplier disputes: price variances detected at delivery
// posting (auto-generated, one per varying line) and manually raised issues
// (short delivery, quality rejects).
package ncr

import (
	"context"
	"time"

	"provision/internal/core/apperror"
	"provision/internal/core/entity"
	"provision/internal/core/id"
	"provision/internal/core/types"
)

// Type of report.
type Type string

const (
	TypePriceVariance Type = "PRICE_VARIANCE"
	TypeManual        Type = "MANUAL"
)

// Status lifecycle of a report.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusSent     Status = "SENT"
	StatusCredited Status = "CREDITED"
	StatusRejected Status = "REJECTED"
	StatusResolved Status = "RESOLVED"
)

// FinancialImpact of a resolved report on reconciliation.
type FinancialImpact string

const (
	ImpactNone   FinancialImpact = "NONE"
	ImpactCredit FinancialImpact = "CREDIT"
	ImpactLoss   FinancialImpact = "LOSS"
)

// NCR is a non-conformance report raised against a supplier.
type NCR struct {
	entity.BaseEntity

	Number        string `db:"number" json:"number"`
	Type          Type   `db:"type" json:"type"`
	AutoGenerated bool   `db:"auto_generated" json:"autoGenerated"`

	LocationID id.ID  `db:"location_id" json:"locationId"`
	SupplierID *id.ID `db:"supplier_id" json:"supplierId,omitempty"`
	ItemID     *id.ID `db:"item_id" json:"itemId,omitempty"`

	// Source delivery line, set on auto-generated price variance reports.
	DeliveryID     *id.ID `db:"delivery_id" json:"deliveryId,omitempty"`
	DeliveryLineID *id.ID `db:"delivery_line_id" json:"deliveryLineId,omitempty"`

	ExpectedPrice *types.Money    `db:"expected_price" json:"expectedPrice,omitempty"`
	ActualPrice   *types.Money    `db:"actual_price" json:"actualPrice,omitempty"`
	Variance      *types.Money    `db:"variance" json:"variance,omitempty"`
	Quantity      *types.Quantity `db:"quantity" json:"quantity,omitempty"`

	// Value is the disputed amount (variance x quantity for price variances).
	Value types.Money `db:"value" json:"value"`

	Reason string `db:"reason" json:"reason"`
	Status Status `db:"status" json:"status"`

	// Resolution, set when the report reaches RESOLVED.
	FinancialImpact FinancialImpact `db:"financial_impact" json:"financialImpact"`
	ResolutionNote  *string         `db:"resolution_note" json:"resolutionNote,omitempty"`
	ResolvedBy      *id.ID          `db:"resolved_by" json:"resolvedBy,omitempty"`
	ResolvedAt      *time.Time      `db:"resolved_at" json:"resolvedAt,omitempty"`

	PeriodID  id.ID     `db:"period_id" json:"periodId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
}

// NewManual creates a manually raised report.
func NewManual(locationID, periodID id.ID, reason string, value types.Money) *NCR {
	return &NCR{
		BaseEntity:      entity.NewBaseEntity(),
		Type:            TypeManual,
		LocationID:      locationID,
		PeriodID:        periodID,
		Reason:          reason,
		Value:           value,
		Status:          StatusOpen,
		FinancialImpact: ImpactNone,
		CreatedAt:       time.Now(),
	}
}

// NewPriceVariance creates the auto-generated report for one varying delivery line.
func NewPriceVariance(locationID, periodID, supplierID, itemID, deliveryID, lineID id.ID,
	expected, actual types.Money, qty types.Quantity) *NCR {
	variance := actual.Sub(expected)
	value := types.RoundMoney(variance.Mul(qty))
	return &NCR{
		BaseEntity:      entity.NewBaseEntity(),
		Type:            TypePriceVariance,
		AutoGenerated:   true,
		LocationID:      locationID,
		PeriodID:        periodID,
		SupplierID:      &supplierID,
		ItemID:          &itemID,
		DeliveryID:      &deliveryID,
		DeliveryLineID:  &lineID,
		ExpectedPrice:   &expected,
		ActualPrice:     &actual,
		Variance:        &variance,
		Quantity:        &qty,
		Value:           value,
		Reason:          "price variance against locked period price",
		Status:          StatusOpen,
		FinancialImpact: ImpactNone,
		CreatedAt:       time.Now(),
	}
}

// Validate implements entity.Validatable interface.
func (n *NCR) Validate(ctx context.Context) error {
	if id.IsNil(n.LocationID) {
		return apperror.NewValidation("location is required").WithDetail("field", "locationId")
	}
	if id.IsNil(n.PeriodID) {
		return apperror.NewValidation("period is required").WithDetail("field", "periodId")
	}
	if n.Type != TypePriceVariance && n.Type != TypeManual {
		return apperror.NewValidation("invalid NCR type").WithDetail("value", string(n.Type))
	}
	if n.Type == TypeManual && n.Reason == "" {
		return apperror.NewValidation("reason is required").WithDetail("field", "reason")
	}
	return nil
}

// IsTerminal reports whether the status accepts no further transitions.
func (n *NCR) IsTerminal() bool {
	return n.Status == StatusResolved
}

// validTransitions maps each status to its allowed successors.
var validTransitions = map[Status][]Status{
	StatusOpen:     {StatusSent, StatusResolved},
	StatusSent:     {StatusCredited, StatusRejected, StatusResolved},
	StatusCredited: {StatusResolved},
	StatusRejected: {StatusResolved},
	StatusResolved: {},
}

// CanTransition reports whether the report may move to the target status.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
