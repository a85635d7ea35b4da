package reconciliation

import (
	"time"

	"provision/internal/core/apperror"
	"provision/internal/core/entity"
	"provision/internal/core/id"
	"provision/internal/core/types"
)

// Status of a reconciliation row. COMPUTED rows are derived on read and
// never stored; SAVED rows are persisted snapshots and authoritative.
type Status string

const (
	StatusComputed Status = "COMPUTED"
	StatusSaved    Status = "SAVED"
)

// Reconciliation is the per-location stock account for one period.
// Movement figures are aggregated from posted documents, the manual
// adjustment fields are entered by supervisors before period close.
type Reconciliation struct {
	entity.BaseEntity

	PeriodID   id.ID `json:"period_id" db:"period_id"`
	LocationID id.ID `json:"location_id" db:"location_id"`

	OpeningStock types.Money `json:"opening_stock" db:"opening_stock"`
	Receipts     types.Money `json:"receipts" db:"receipts"`
	TransfersIn  types.Money `json:"transfers_in" db:"transfers_in"`
	TransfersOut types.Money `json:"transfers_out" db:"transfers_out"`
	Issues       types.Money `json:"issues" db:"issues"`
	ClosingStock types.Money `json:"closing_stock" db:"closing_stock"`

	Adjustments   types.Money `json:"adjustments" db:"adjustments"`
	BackCharges   types.Money `json:"back_charges" db:"back_charges"`
	Credits       types.Money `json:"credits" db:"credits"`
	Condemnations types.Money `json:"condemnations" db:"condemnations"`

	NCRCredits types.Money `json:"ncr_credits" db:"ncr_credits"`
	NCRLosses  types.Money `json:"ncr_losses" db:"ncr_losses"`

	Consumption types.Money `json:"consumption" db:"consumption"`

	Status  Status     `json:"status" db:"status"`
	SavedBy *id.ID     `json:"saved_by,omitempty" db:"saved_by"`
	SavedAt *time.Time `json:"saved_at,omitempty" db:"saved_at"`
}

// Adjustments groups the manually entered figures. All amounts are
// entered as positive values; the sign convention lives in the formula.
type AdjustmentInput struct {
	Adjustments   types.Money `json:"adjustments"`
	BackCharges   types.Money `json:"back_charges"`
	Credits       types.Money `json:"credits"`
	Condemnations types.Money `json:"condemnations"`
}

func (a AdjustmentInput) Validate() error {
	for name, v := range map[string]types.Money{
		"back_charges":  a.BackCharges,
		"credits":       a.Credits,
		"condemnations": a.Condemnations,
	} {
		if v.IsNegative() {
			return apperror.NewValidation(name + " cannot be negative")
		}
	}
	return nil
}

// TotalAdjustments folds the manual figures and resolved NCR outcomes
// into a single signed amount. Back charges and NCR losses increase
// consumption, credits and condemnations reduce it.
func (r *Reconciliation) TotalAdjustments() types.Money {
	return r.BackCharges.
		Sub(r.Credits).
		Sub(r.Condemnations).
		Add(r.Adjustments).
		Add(r.NCRLosses).
		Sub(r.NCRCredits)
}

// Recalculate derives consumption from the movement figures:
// everything that entered the location minus what is still on the
// shelf, corrected by adjustments.
func (r *Reconciliation) Recalculate() {
	r.Consumption = types.RoundMoney(
		r.OpeningStock.
			Add(r.Receipts).
			Add(r.TransfersIn).
			Sub(r.TransfersOut).
			Sub(r.ClosingStock).
			Add(r.TotalAdjustments()),
	)
}

// IsSaved reports whether this row is a persisted snapshot.
func (r *Reconciliation) IsSaved() bool {
	return r.Status == StatusSaved
}
