package dto

import (
	"time"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/core/types"
	"provision/internal/domain/documents/delivery"
	"provision/internal/domain/documents/issue"
	"provision/internal/domain/documents/transfer"
)

// --- Deliveries ---

// DeliveryLineRequest is one received item.
type DeliveryLineRequest struct {
	ItemID    string         `json:"itemId" binding:"required"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
	UnitPrice types.Money    `json:"unitPrice"`
}

// CreateDeliveryRequest posts a supplier delivery in one step. The
// location comes from the route, the body may omit it.
type CreateDeliveryRequest struct {
	LocationID  string                `json:"locationId"`
	SupplierID  string                `json:"supplierId" binding:"required"`
	SupplierRef string                `json:"supplierRef"`
	Date        *time.Time            `json:"date"`
	Comment     string                `json:"comment"`
	Lines       []DeliveryLineRequest `json:"lines" binding:"required,min=1"`
}

// ToDelivery builds the domain document. The posting period and number
// are assigned by the service.
func (r CreateDeliveryRequest) ToDelivery() (*delivery.Delivery, error) {
	locationID, err := id.Parse(r.LocationID)
	if err != nil {
		return nil, apperror.NewValidation("invalid location id").WithDetail("field", "locationId")
	}
	supplierID, err := id.Parse(r.SupplierID)
	if err != nil {
		return nil, apperror.NewValidation("invalid supplier id").WithDetail("field", "supplierId")
	}

	doc := delivery.NewDelivery(id.Nil(), locationID, supplierID)
	doc.SupplierRef = r.SupplierRef
	doc.Comment = r.Comment
	if r.Date != nil {
		doc.Date = *r.Date
	}

	for i, line := range r.Lines {
		itemID, err := id.Parse(line.ItemID)
		if err != nil {
			return nil, apperror.NewValidation("invalid item id").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		doc.AddLine(itemID, line.Quantity, line.UnitPrice)
	}
	return doc, nil
}

// --- Issues ---

// IssueLineRequest is one issued item. Costing happens at posting.
type IssueLineRequest struct {
	ItemID   string         `json:"itemId" binding:"required"`
	Quantity types.Quantity `json:"quantity" binding:"required"`
}

// CreateIssueRequest posts a stock issue in one step. The location comes
// from the route, the body may omit it.
type CreateIssueRequest struct {
	LocationID string             `json:"locationId"`
	CostCentre string             `json:"costCentre" binding:"required,oneof=kitchen wastage staff other"`
	Date       *time.Time         `json:"date"`
	Comment    string             `json:"comment"`
	Lines      []IssueLineRequest `json:"lines" binding:"required,min=1"`
}

// ToIssue builds the domain document.
func (r CreateIssueRequest) ToIssue() (*issue.Issue, error) {
	locationID, err := id.Parse(r.LocationID)
	if err != nil {
		return nil, apperror.NewValidation("invalid location id").WithDetail("field", "locationId")
	}

	doc := issue.NewIssue(id.Nil(), locationID, issue.CostCentre(r.CostCentre))
	doc.Comment = r.Comment
	if r.Date != nil {
		doc.Date = *r.Date
	}

	for i, line := range r.Lines {
		itemID, err := id.Parse(line.ItemID)
		if err != nil {
			return nil, apperror.NewValidation("invalid item id").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		doc.AddLine(itemID, line.Quantity)
	}
	return doc, nil
}

// --- Transfers ---

// TransferLineRequest is one item to move.
type TransferLineRequest struct {
	ItemID   string         `json:"itemId" binding:"required"`
	Quantity types.Quantity `json:"quantity" binding:"required"`
}

// CreateTransferRequest records a transfer awaiting approval.
type CreateTransferRequest struct {
	FromLocationID string                `json:"fromLocationId" binding:"required"`
	ToLocationID   string                `json:"toLocationId" binding:"required"`
	Date           *time.Time            `json:"date"`
	Comment        string                `json:"comment"`
	Lines          []TransferLineRequest `json:"lines" binding:"required,min=1"`
}

// ToTransfer builds the domain document.
func (r CreateTransferRequest) ToTransfer() (*transfer.Transfer, error) {
	fromID, err := id.Parse(r.FromLocationID)
	if err != nil {
		return nil, apperror.NewValidation("invalid source location id").WithDetail("field", "fromLocationId")
	}
	toID, err := id.Parse(r.ToLocationID)
	if err != nil {
		return nil, apperror.NewValidation("invalid destination location id").WithDetail("field", "toLocationId")
	}

	doc := transfer.NewTransfer(id.Nil(), fromID, toID)
	doc.Comment = r.Comment
	if r.Date != nil {
		doc.Date = *r.Date
	}

	for i, line := range r.Lines {
		itemID, err := id.Parse(line.ItemID)
		if err != nil {
			return nil, apperror.NewValidation("invalid item id").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		doc.AddLine(itemID, line.Quantity)
	}
	return doc, nil
}
