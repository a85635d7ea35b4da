package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"provision/internal/core/id"
	"provision/internal/core/types"
	"provision/internal/domain"
	"provision/internal/domain/documents/issue"
	"provision/internal/infrastructure/storage/postgres"
)

const (
	issuesTable     = "doc_issues"
	issueLinesTable = "doc_issue_lines"
)

var _ issue.Repository = (*IssueRepo)(nil)

// IssueRepo implements issue.Repository.
type IssueRepo struct {
	*BaseDocumentRepo[*issue.Issue]
}

// NewIssueRepo creates a new issue repository.
func NewIssueRepo(txManager *postgres.TxManager) *IssueRepo {
	return &IssueRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			issuesTable,
			postgres.ExtractDBColumns[issue.Issue](),
			func() *issue.Issue { return &issue.Issue{} },
		),
	}
}

// GetLines retrieves lines for an issue.
func (r *IssueRepo) GetLines(ctx context.Context, docID id.ID) ([]issue.Line, error) {
	q := r.Builder().
		Select("line_id", "line_no", "item_id", "quantity", "wac_at_issue", "value").
		From(issueLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []issue.Line
	if err := pgxscan.Select(ctx, r.querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// SaveLines replaces the lines of an issue.
func (r *IssueRepo) SaveLines(ctx context.Context, docID id.ID, lines []issue.Line) error {
	columns := []string{
		"line_id", "document_id", "line_no", "item_id",
		"quantity", "wac_at_issue", "value",
	}
	rows := make([][]any, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, []any{
			line.LineID, docID, line.LineNo, line.ItemID,
			line.Quantity, line.WACAtIssue, line.Value,
		})
	}
	return r.replaceLines(ctx, issueLinesTable, docID, columns, rows)
}

// List retrieves issues with filtering.
func (r *IssueRepo) List(ctx context.Context, filter issue.ListFilter) (domain.ListResult[*issue.Issue], error) {
	result := domain.ListResult[*issue.Issue]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *filter.LocationID})
	}
	if filter.PeriodID != nil {
		q = q.Where(squirrel.Eq{"period_id": *filter.PeriodID})
	}
	if filter.CostCentre != nil {
		q = q.Where(squirrel.Eq{"cost_centre": *filter.CostCentre})
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

// SumByPeriodLocation totals posted issue values for reconciliation.
func (r *IssueRepo) SumByPeriodLocation(ctx context.Context, periodID, locationID id.ID) (types.Money, error) {
	return r.sumWhere(ctx, "total_value",
		squirrel.Eq{"period_id": periodID},
		squirrel.Eq{"location_id": locationID},
		squirrel.Eq{"deletion_mark": false},
		squirrel.Expr("posted_at IS NOT NULL"),
	)
}
