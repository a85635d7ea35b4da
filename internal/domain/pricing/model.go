// Package pricing provides period price locking and variance detection.
// Expected prices are snapshotted from item reference prices when a period
// opens and are immutable for the life of the period.
package pricing

import (
	"time"

	"provision/internal/core/id"
	"provision/internal/core/types"
)

// ItemPrice is the locked expected price of an item for one period.
type ItemPrice struct {
	PeriodID      id.ID       `db:"period_id" json:"periodId"`
	ItemID        id.ID       `db:"item_id" json:"itemId"`
	ExpectedPrice types.Money `db:"expected_price" json:"expectedPrice"`
	LockedAt      time.Time   `db:"locked_at" json:"lockedAt"`
}

// VarianceResult is the outcome of comparing an actual price against the lock.
type VarianceResult struct {
	ExpectedPrice types.Money `json:"expectedPrice"`
	ActualPrice   types.Money `json:"actualPrice"`

	// Variance = actual - expected; positive means the supplier overcharged.
	Variance types.Money `json:"variance"`

	// VariancePct = variance / expected * 100, zero when expected is zero.
	VariancePct types.Money `json:"variancePct"`
}

// HasVariance reports whether the actual price deviates from the lock.
func (v VarianceResult) HasVariance() bool {
	return !v.Variance.IsZero()
}
