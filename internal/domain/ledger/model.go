// Package ledger provides the perpetual stock ledger.
// Every delivery, issue and transfer flows through it; it maintains the
// on-hand quantity and weighted average cost (WAC) per location and item.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"provision/internal/core/id"
	"provision/internal/core/types"
)

// LocationStock is one ledger row: the current position of an item at a location.
type LocationStock struct {
	LocationID id.ID `db:"location_id" json:"locationId"`
	ItemID     id.ID `db:"item_id" json:"itemId"`

	// OnHand is the current quantity, never negative.
	OnHand types.Quantity `db:"on_hand" json:"onHand"`

	// WAC is the weighted average cost per unit.
	WAC types.Money `db:"wac" json:"wac"`

	// MinQty triggers low-stock notifications when on_hand drops below it.
	MinQty *types.Quantity `db:"min_qty" json:"minQty,omitempty"`

	// MaxQty is advisory, used by reports only.
	MaxQty *types.Quantity `db:"max_qty" json:"maxQty,omitempty"`

	LastCountedAt *time.Time `db:"last_counted_at" json:"lastCountedAt,omitempty"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// Value returns on_hand * WAC rounded to money precision.
func (s *LocationStock) Value() types.Money {
	return types.RoundMoney(s.OnHand.Mul(s.WAC))
}

// IsBelowMin reports whether the row is under its minimum level.
func (s *LocationStock) IsBelowMin() bool {
	return s.MinQty != nil && s.OnHand.LessThan(*s.MinQty)
}

// RecomputeWAC returns the new weighted average cost after receiving qty units
// at unitPrice into a position of onHand units costed at wac:
//
//	(onHand*wac + qty*unitPrice) / (onHand + qty)
//
// When the position is empty the new WAC is simply unitPrice.
func RecomputeWAC(onHand types.Quantity, wac types.Money, qty types.Quantity, unitPrice types.Money) types.Money {
	newQty := onHand.Add(qty)
	if newQty.IsZero() {
		return decimal.Zero
	}
	if onHand.IsZero() {
		return types.RoundUnitCost(unitPrice)
	}
	totalValue := onHand.Mul(wac).Add(qty.Mul(unitPrice))
	return types.RoundUnitCost(totalValue.Div(newQty))
}
