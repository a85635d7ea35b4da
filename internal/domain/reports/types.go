// Package reports provides read-only reporting over the stock ledger,
// posted documents and reconciliations.
package reports

import (
	"time"

	"provision/internal/core/id"
	"provision/internal/core/types"
)

// --- Stock on hand ---

// StockOnHandFilter defines the filter for the stock on hand report.
type StockOnHandFilter struct {
	LocationIDs []id.ID
	ItemIDs     []id.ID
	Category    string

	// Only rows below their minimum level
	BelowMinOnly bool

	// Exclude zero balances
	ExcludeZero bool

	Limit  int
	Offset int
}

// StockOnHandItem is a single row in the stock on hand report.
type StockOnHandItem struct {
	LocationID   id.ID           `json:"locationId"`
	LocationName string          `json:"locationName"`
	ItemID       id.ID           `json:"itemId"`
	ItemCode     string          `json:"itemCode"`
	ItemName     string          `json:"itemName"`
	Unit         string          `json:"unit"`
	Category     string          `json:"category,omitempty"`
	OnHand       types.Quantity  `json:"onHand"`
	WAC          types.Money     `json:"wac"`
	Value        types.Money     `json:"value"`
	MinQty       *types.Quantity `json:"minQty,omitempty"`
	BelowMin     bool            `json:"belowMin"`
}

// StockOnHandReport is the full stock on hand report.
type StockOnHandReport struct {
	AsOf       time.Time         `json:"asOf"`
	Items      []StockOnHandItem `json:"items"`
	TotalItems int               `json:"totalItems"`
	TotalValue types.Money       `json:"totalValue"`
}

// --- Period movement ---

// PeriodMovementFilter defines the filter for the movement summary.
type PeriodMovementFilter struct {
	PeriodID    id.ID
	LocationIDs []id.ID
	ItemIDs     []id.ID

	Limit  int
	Offset int
}

// PeriodMovementItem is one item's movement within a period and location.
type PeriodMovementItem struct {
	LocationID   id.ID          `json:"locationId"`
	LocationName string         `json:"locationName"`
	ItemID       id.ID          `json:"itemId"`
	ItemCode     string         `json:"itemCode"`
	ItemName     string         `json:"itemName"`
	Unit         string         `json:"unit"`
	ReceivedQty  types.Quantity `json:"receivedQty"`
	ReceivedVal  types.Money    `json:"receivedValue"`
	IssuedQty    types.Quantity `json:"issuedQty"`
	IssuedVal    types.Money    `json:"issuedValue"`
	TransferIn   types.Money    `json:"transferInValue"`
	TransferOut  types.Money    `json:"transferOutValue"`
}

// PeriodMovementReport is the full movement summary of a period.
type PeriodMovementReport struct {
	PeriodID   id.ID                `json:"periodId"`
	PeriodName string               `json:"periodName"`
	Items      []PeriodMovementItem `json:"items"`
	TotalItems int                  `json:"totalItems"`

	TotalReceived    types.Money `json:"totalReceived"`
	TotalIssued      types.Money `json:"totalIssued"`
	TotalTransferIn  types.Money `json:"totalTransferIn"`
	TotalTransferOut types.Money `json:"totalTransferOut"`
}

// --- Reconciliation report ---

// ReconciliationReportRow is one location's reconciliation line.
type ReconciliationReportRow struct {
	LocationID   id.ID       `json:"locationId"`
	LocationName string      `json:"locationName"`
	OpeningStock types.Money `json:"openingStock"`
	Receipts     types.Money `json:"receipts"`
	TransfersIn  types.Money `json:"transfersIn"`
	TransfersOut types.Money `json:"transfersOut"`
	ClosingStock types.Money `json:"closingStock"`
	Adjustments  types.Money `json:"adjustments"`
	Consumption  types.Money `json:"consumption"`
	Status       string      `json:"status"`
}

// ReconciliationReport aggregates all locations of a period with grand totals.
type ReconciliationReport struct {
	PeriodID   id.ID                     `json:"periodId"`
	PeriodName string                    `json:"periodName"`
	Rows       []ReconciliationReportRow `json:"rows"`

	TotalOpening      types.Money `json:"totalOpening"`
	TotalReceipts     types.Money `json:"totalReceipts"`
	TotalTransfersIn  types.Money `json:"totalTransfersIn"`
	TotalTransfersOut types.Money `json:"totalTransfersOut"`
	TotalClosing      types.Money `json:"totalClosing"`
	TotalAdjustments  types.Money `json:"totalAdjustments"`
	TotalConsumption  types.Money `json:"totalConsumption"`
}

// --- Document journal ---

// DocumentJournalFilter defines the filter for the document journal.
type DocumentJournalFilter struct {
	FromDate *time.Time
	ToDate   *time.Time

	// delivery, issue, transfer
	DocumentTypes []string

	Posted         *bool
	NumberContains string

	LocationIDs []id.ID
	SupplierIDs []id.ID

	SortBy    string // "date", "number", "type", "amount"
	SortOrder string // "asc", "desc"

	Limit  int
	Offset int
}

// DocumentJournalItem is one document in the journal.
type DocumentJournalItem struct {
	ID           id.ID     `json:"id"`
	DocumentType string    `json:"documentType"`
	Number       string    `json:"number"`
	Date         time.Time `json:"date"`
	Posted       bool      `json:"posted"`

	LocationID   id.ID  `json:"locationId"`
	LocationName string `json:"locationName"`

	SupplierID   *id.ID `json:"supplierId,omitempty"`
	SupplierName string `json:"supplierName,omitempty"`

	TotalAmount types.Money `json:"totalAmount"`

	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// DocumentJournal is the journal result.
type DocumentJournal struct {
	Items      []DocumentJournalItem `json:"items"`
	TotalCount int                   `json:"totalCount"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`

	Summary []DocumentTypeSummary `json:"summary,omitempty"`
}

// DocumentTypeSummary gives counts and totals by document type.
type DocumentTypeSummary struct {
	DocumentType string      `json:"documentType"`
	Count        int         `json:"count"`
	PostedCount  int         `json:"postedCount"`
	TotalAmount  types.Money `json:"totalAmount"`
}
