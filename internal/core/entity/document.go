package entity

import (
	"context"
	"time"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
)

// Document is the base type for business transactions
// (Delivery, Issue, Transfer, NCR).
type Document struct {
	BaseDocument

	// Number is the document number (auto-generated, unique within type+year)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// PeriodID is the accounting period the document posts into
	PeriodID id.ID `db:"period_id" json:"periodId"`

	// PostedAt is set when the document's stock movements are applied.
	// Posted documents are immutable.
	PostedAt *time.Time `db:"posted_at" json:"postedAt,omitempty"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a new Document posting into the given period.
func NewDocument(periodID id.ID) Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         time.Now().UTC(),
		PeriodID:     periodID,
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if id.IsNil(d.PeriodID) {
		return apperror.NewValidation("period is required").
			WithDetail("field", "periodId")
	}

	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}

	return nil
}

// IsPosted returns true if the document's movements have been applied.
func (d *Document) IsPosted() bool {
	return d.PostedAt != nil
}

// MarkPosted stamps the posting time and bumps the version.
func (d *Document) MarkPosted() {
	now := time.Now().UTC()
	d.PostedAt = &now
	d.Touch()
}

// CanModify checks if the document can still be modified.
func (d *Document) CanModify() error {
	if d.IsPosted() {
		return apperror.NewBusinessRule(
			apperror.CodeInvalidStatus,
			"Cannot modify a posted document",
		).WithDetail("document_id", d.ID.String())
	}
	return nil
}
