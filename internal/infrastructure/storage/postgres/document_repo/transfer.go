package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/core/types"
	"provision/internal/domain"
	"provision/internal/domain/documents/transfer"
	"provision/internal/infrastructure/storage/postgres"
)

const (
	transfersTable     = "doc_transfers"
	transferLinesTable = "doc_transfer_lines"
)

var _ transfer.Repository = (*TransferRepo)(nil)

// TransferRepo implements transfer.Repository.
type TransferRepo struct {
	*BaseDocumentRepo[*transfer.Transfer]
}

// NewTransferRepo creates a new transfer repository.
func NewTransferRepo(txManager *postgres.TxManager) *TransferRepo {
	return &TransferRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			transfersTable,
			postgres.ExtractDBColumns[transfer.Transfer](),
			func() *transfer.Transfer { return &transfer.Transfer{} },
		),
	}
}

// GetLines retrieves lines for a transfer.
func (r *TransferRepo) GetLines(ctx context.Context, docID id.ID) ([]transfer.Line, error) {
	q := r.Builder().
		Select("line_id", "line_no", "item_id", "quantity", "wac_at_transfer", "value").
		From(transferLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []transfer.Line
	if err := pgxscan.Select(ctx, r.querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// SaveLines replaces the lines of a transfer.
func (r *TransferRepo) SaveLines(ctx context.Context, docID id.ID, lines []transfer.Line) error {
	columns := []string{
		"line_id", "document_id", "line_no", "item_id",
		"quantity", "wac_at_transfer", "value",
	}
	rows := make([][]any, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, []any{
			line.LineID, docID, line.LineNo, line.ItemID,
			line.Quantity, line.WACAtTransfer, line.Value,
		})
	}
	return r.replaceLines(ctx, transferLinesTable, docID, columns, rows)
}

// List retrieves transfers with filtering.
func (r *TransferRepo) List(ctx context.Context, filter transfer.ListFilter) (domain.ListResult[*transfer.Transfer], error) {
	result := domain.ListResult[*transfer.Transfer]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.FromLocationID != nil {
		q = q.Where(squirrel.Eq{"from_location_id": *filter.FromLocationID})
	}
	if filter.ToLocationID != nil {
		q = q.Where(squirrel.Eq{"to_location_id": *filter.ToLocationID})
	}
	if filter.PeriodID != nil {
		q = q.Where(squirrel.Eq{"period_id": *filter.PeriodID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
	}

	countQ := r.Builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := r.querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.querier(ctx), &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("select: %w", err)
	}

	return result, nil
}

// ClaimForApproval moves a PENDING_APPROVAL transfer to APPROVED.
// The status predicate makes this a compare-and-swap: only one approval
// can flip the row. Under SERIALIZABLE a concurrent loser aborts with
// SQLSTATE 40001 instead of seeing zero rows; the transaction manager
// re-runs it and the predicate then reports the claim as lost.
func (r *TransferRepo) ClaimForApproval(ctx context.Context, docID, approvedBy id.ID, approvedAt time.Time) (bool, error) {
	q := r.Builder().
		Update(transfersTable).
		Set("status", transfer.StatusApproved).
		Set("approved_by", approvedBy).
		Set("approved_at", approvedAt).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": docID}).
		Where(squirrel.Eq{"status": transfer.StatusPendingApproval})

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build claim: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("claim for approval: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// MarkCompleted stamps the stock movement time and sets COMPLETED.
func (r *TransferRepo) MarkCompleted(ctx context.Context, docID id.ID, transferredAt time.Time) error {
	q := r.Builder().
		Update(transfersTable).
		Set("status", transfer.StatusCompleted).
		Set("transferred_at", transferredAt).
		Set("posted_at", transferredAt).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": docID}).
		Where(squirrel.Eq{"status": transfer.StatusApproved})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build mark completed: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(transfersTable, docID)
	}

	return nil
}

// SumInByPeriodLocation totals completed transfers into a location.
func (r *TransferRepo) SumInByPeriodLocation(ctx context.Context, periodID, locationID id.ID) (types.Money, error) {
	return r.sumWhere(ctx, "total_value",
		squirrel.Eq{"period_id": periodID},
		squirrel.Eq{"to_location_id": locationID},
		squirrel.Eq{"status": transfer.StatusCompleted},
		squirrel.Eq{"deletion_mark": false},
	)
}

// SumOutByPeriodLocation totals completed transfers out of a location.
func (r *TransferRepo) SumOutByPeriodLocation(ctx context.Context, periodID, locationID id.ID) (types.Money, error) {
	return r.sumWhere(ctx, "total_value",
		squirrel.Eq{"period_id": periodID},
		squirrel.Eq{"from_location_id": locationID},
		squirrel.Eq{"status": transfer.StatusCompleted},
		squirrel.Eq{"deletion_mark": false},
	)
}
