// Package report_repo provides PostgreSQL implementations for report repositories.
package report_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"provision/internal/core/id"
	"provision/internal/core/types"
	"provision/internal/domain/reports"
	"provision/internal/infrastructure/storage/postgres"
)

var _ reports.Repository = (*ReportRepo)(nil)

// ReportRepo implements reports.Repository. Reports read committed data
// only and never join into an open posting transaction.
type ReportRepo struct {
	txManager *postgres.TxManager
}

// NewReportRepo creates a new report repository.
func NewReportRepo(txManager *postgres.TxManager) *ReportRepo {
	return &ReportRepo{txManager: txManager}
}

func (r *ReportRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// GetStockOnHand generates the stock on hand report.
func (r *ReportRepo) GetStockOnHand(ctx context.Context, filter reports.StockOnHandFilter) (*reports.StockOnHandReport, error) {
	query := `
		SELECT
			s.location_id,
			l.name AS location_name,
			s.item_id,
			i.code AS item_code,
			i.name AS item_name,
			i.unit,
			COALESCE(i.category, '') AS category,
			s.on_hand,
			s.wac,
			ROUND(s.on_hand * s.wac, 2) AS value,
			s.min_qty,
			(s.min_qty IS NOT NULL AND s.on_hand < s.min_qty) AS below_min
		FROM location_stock s
		JOIN cat_locations l ON s.location_id = l.id
		JOIN cat_items i ON s.item_id = i.id
		WHERE TRUE
	`
	args := []any{}
	argIndex := 1

	appendIn := func(column string, ids []id.ID) {
		placeholders := make([]string, len(ids))
		for i, v := range ids {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, v)
			argIndex++
		}
		query += fmt.Sprintf(" AND %s IN (%s)", column, strings.Join(placeholders, ","))
	}

	if len(filter.LocationIDs) > 0 {
		appendIn("s.location_id", filter.LocationIDs)
	}
	if len(filter.ItemIDs) > 0 {
		appendIn("s.item_id", filter.ItemIDs)
	}
	if filter.Category != "" {
		query += fmt.Sprintf(" AND i.category = $%d", argIndex)
		args = append(args, filter.Category)
		argIndex++
	}
	if filter.ExcludeZero {
		query += " AND s.on_hand <> 0"
	}
	if filter.BelowMinOnly {
		query += " AND s.min_qty IS NOT NULL AND s.on_hand < s.min_qty"
	}

	query += " ORDER BY l.name, i.name"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
		argIndex++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	var items []reports.StockOnHandItem
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, query, args...); err != nil {
		return nil, fmt.Errorf("stock on hand report: %w", err)
	}

	totalValue := types.Zero()
	for _, item := range items {
		totalValue = totalValue.Add(item.Value)
	}

	return &reports.StockOnHandReport{
		AsOf:       time.Now().UTC(),
		Items:      items,
		TotalItems: len(items),
		TotalValue: types.RoundMoney(totalValue),
	}, nil
}

// GetPeriodMovement generates the per-item movement summary of a period.
// Deliveries and issues aggregate per line; transfer values count against
// both sides of the move.
func (r *ReportRepo) GetPeriodMovement(ctx context.Context, filter reports.PeriodMovementFilter) (*reports.PeriodMovementReport, error) {
	query := `
		WITH received AS (
			SELECT d.location_id, dl.item_id,
			       SUM(dl.quantity) AS qty, SUM(dl.amount) AS val
			FROM doc_deliveries d
			JOIN doc_delivery_lines dl ON dl.document_id = d.id
			WHERE d.period_id = $1 AND d.posted_at IS NOT NULL AND d.deletion_mark = FALSE
			GROUP BY d.location_id, dl.item_id
		),
		issued AS (
			SELECT di.location_id, il.item_id,
			       SUM(il.quantity) AS qty, SUM(il.value) AS val
			FROM doc_issues di
			JOIN doc_issue_lines il ON il.document_id = di.id
			WHERE di.period_id = $1 AND di.posted_at IS NOT NULL AND di.deletion_mark = FALSE
			GROUP BY di.location_id, il.item_id
		),
		moved_in AS (
			SELECT t.to_location_id AS location_id, tl.item_id, SUM(tl.value) AS val
			FROM doc_transfers t
			JOIN doc_transfer_lines tl ON tl.document_id = t.id
			WHERE t.period_id = $1 AND t.status = 'COMPLETED' AND t.deletion_mark = FALSE
			GROUP BY t.to_location_id, tl.item_id
		),
		moved_out AS (
			SELECT t.from_location_id AS location_id, tl.item_id, SUM(tl.value) AS val
			FROM doc_transfers t
			JOIN doc_transfer_lines tl ON tl.document_id = t.id
			WHERE t.period_id = $1 AND t.status = 'COMPLETED' AND t.deletion_mark = FALSE
			GROUP BY t.from_location_id, tl.item_id
		),
		movement AS (
			SELECT location_id, item_id FROM received
			UNION
			SELECT location_id, item_id FROM issued
			UNION
			SELECT location_id, item_id FROM moved_in
			UNION
			SELECT location_id, item_id FROM moved_out
		)
		SELECT
			m.location_id,
			l.name AS location_name,
			m.item_id,
			i.code AS item_code,
			i.name AS item_name,
			i.unit,
			COALESCE(rc.qty, 0) AS received_qty,
			COALESCE(rc.val, 0) AS received_val,
			COALESCE(iss.qty, 0) AS issued_qty,
			COALESCE(iss.val, 0) AS issued_val,
			COALESCE(mi.val, 0) AS transfer_in,
			COALESCE(mo.val, 0) AS transfer_out
		FROM movement m
		JOIN cat_locations l ON m.location_id = l.id
		JOIN cat_items i ON m.item_id = i.id
		LEFT JOIN received rc ON rc.location_id = m.location_id AND rc.item_id = m.item_id
		LEFT JOIN issued iss ON iss.location_id = m.location_id AND iss.item_id = m.item_id
		LEFT JOIN moved_in mi ON mi.location_id = m.location_id AND mi.item_id = m.item_id
		LEFT JOIN moved_out mo ON mo.location_id = m.location_id AND mo.item_id = m.item_id
		WHERE TRUE
	`
	args := []any{filter.PeriodID}
	argIndex := 2

	if len(filter.LocationIDs) > 0 {
		placeholders := make([]string, len(filter.LocationIDs))
		for i, v := range filter.LocationIDs {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, v)
			argIndex++
		}
		query += fmt.Sprintf(" AND m.location_id IN (%s)", strings.Join(placeholders, ","))
	}
	if len(filter.ItemIDs) > 0 {
		placeholders := make([]string, len(filter.ItemIDs))
		for i, v := range filter.ItemIDs {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, v)
			argIndex++
		}
		query += fmt.Sprintf(" AND m.item_id IN (%s)", strings.Join(placeholders, ","))
	}

	query += " ORDER BY l.name, i.name"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
		argIndex++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	var items []reports.PeriodMovementItem
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, query, args...); err != nil {
		return nil, fmt.Errorf("period movement report: %w", err)
	}

	var periodName string
	if err := r.querier(ctx).QueryRow(ctx, "SELECT name FROM periods WHERE id = $1", filter.PeriodID).Scan(&periodName); err != nil {
		return nil, fmt.Errorf("period name: %w", err)
	}

	report := &reports.PeriodMovementReport{
		PeriodID:         filter.PeriodID,
		PeriodName:       periodName,
		Items:            items,
		TotalItems:       len(items),
		TotalReceived:    types.Zero(),
		TotalIssued:      types.Zero(),
		TotalTransferIn:  types.Zero(),
		TotalTransferOut: types.Zero(),
	}
	for _, item := range items {
		report.TotalReceived = report.TotalReceived.Add(item.ReceivedVal)
		report.TotalIssued = report.TotalIssued.Add(item.IssuedVal)
		report.TotalTransferIn = report.TotalTransferIn.Add(item.TransferIn)
		report.TotalTransferOut = report.TotalTransferOut.Add(item.TransferOut)
	}

	return report, nil
}

// GetReconciliationReport lists the locations of a period with their
// reconciliation figures, optionally narrowed to one location. Locations
// that have no saved snapshot yet appear as zero rows with a COMPUTED
// status.
func (r *ReportRepo) GetReconciliationReport(ctx context.Context, periodID id.ID, locationID *id.ID) (*reports.ReconciliationReport, error) {
	query := `
		SELECT
			l.id AS location_id,
			l.name AS location_name,
			COALESCE(rec.opening_stock, 0) AS opening_stock,
			COALESCE(rec.receipts, 0) AS receipts,
			COALESCE(rec.transfers_in, 0) AS transfers_in,
			COALESCE(rec.transfers_out, 0) AS transfers_out,
			COALESCE(rec.closing_stock, 0) AS closing_stock,
			COALESCE(rec.back_charges - rec.credits - rec.condemnations
				+ rec.adjustments + rec.ncr_losses - rec.ncr_credits, 0) AS adjustments,
			COALESCE(rec.consumption, 0) AS consumption,
			COALESCE(rec.status, 'COMPUTED') AS status
		FROM period_locations pl
		JOIN cat_locations l ON pl.location_id = l.id
		LEFT JOIN reconciliations rec
			ON rec.period_id = pl.period_id AND rec.location_id = pl.location_id
		WHERE pl.period_id = $1
		  AND ($2::uuid IS NULL OR pl.location_id = $2)
		ORDER BY l.name
	`

	var rows []reports.ReconciliationReportRow
	if err := pgxscan.Select(ctx, r.querier(ctx), &rows, query, periodID, locationID); err != nil {
		return nil, fmt.Errorf("reconciliation report: %w", err)
	}

	var periodName string
	if err := r.querier(ctx).QueryRow(ctx, "SELECT name FROM periods WHERE id = $1", periodID).Scan(&periodName); err != nil {
		return nil, fmt.Errorf("period name: %w", err)
	}

	report := &reports.ReconciliationReport{
		PeriodID:          periodID,
		PeriodName:        periodName,
		Rows:              rows,
		TotalOpening:      types.Zero(),
		TotalReceipts:     types.Zero(),
		TotalTransfersIn:  types.Zero(),
		TotalTransfersOut: types.Zero(),
		TotalClosing:      types.Zero(),
		TotalAdjustments:  types.Zero(),
		TotalConsumption:  types.Zero(),
	}
	for _, row := range rows {
		report.TotalOpening = report.TotalOpening.Add(row.OpeningStock)
		report.TotalReceipts = report.TotalReceipts.Add(row.Receipts)
		report.TotalTransfersIn = report.TotalTransfersIn.Add(row.TransfersIn)
		report.TotalTransfersOut = report.TotalTransfersOut.Add(row.TransfersOut)
		report.TotalClosing = report.TotalClosing.Add(row.ClosingStock)
		report.TotalAdjustments = report.TotalAdjustments.Add(row.Adjustments)
		report.TotalConsumption = report.TotalConsumption.Add(row.Consumption)
	}

	return report, nil
}

// journalBase is the union over the three document tables. Transfers
// report their source location and have no supplier.
const journalBase = `
	SELECT d.id, 'delivery' AS document_type, d.number, d.date,
	       d.posted_at IS NOT NULL AS posted,
	       d.location_id, d.supplier_id,
	       d.total_amount, d.comment, d.created_at
	FROM doc_deliveries d
	WHERE d.deletion_mark = FALSE
	UNION ALL
	SELECT i.id, 'issue', i.number, i.date,
	       i.posted_at IS NOT NULL,
	       i.location_id, NULL,
	       i.total_value, i.comment, i.created_at
	FROM doc_issues i
	WHERE i.deletion_mark = FALSE
	UNION ALL
	SELECT t.id, 'transfer', t.number, t.date,
	       t.status = 'COMPLETED',
	       t.from_location_id, NULL,
	       t.total_value, t.comment, t.created_at
	FROM doc_transfers t
	WHERE t.deletion_mark = FALSE
`

var journalSortColumns = map[string]string{
	"date":   "j.date",
	"number": "j.number",
	"type":   "j.document_type",
	"amount": "j.total_amount",
}

func (r *ReportRepo) journalWhere(filter reports.DocumentJournalFilter) (string, []any) {
	where := " WHERE TRUE"
	args := []any{}
	argIndex := 1

	if filter.FromDate != nil {
		where += fmt.Sprintf(" AND j.date >= $%d", argIndex)
		args = append(args, *filter.FromDate)
		argIndex++
	}
	if filter.ToDate != nil {
		where += fmt.Sprintf(" AND j.date <= $%d", argIndex)
		args = append(args, *filter.ToDate)
		argIndex++
	}
	if len(filter.DocumentTypes) > 0 {
		placeholders := make([]string, len(filter.DocumentTypes))
		for i, t := range filter.DocumentTypes {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, t)
			argIndex++
		}
		where += fmt.Sprintf(" AND j.document_type IN (%s)", strings.Join(placeholders, ","))
	}
	if filter.Posted != nil {
		where += fmt.Sprintf(" AND j.posted = $%d", argIndex)
		args = append(args, *filter.Posted)
		argIndex++
	}
	if filter.NumberContains != "" {
		where += fmt.Sprintf(" AND j.number ILIKE $%d", argIndex)
		args = append(args, "%"+filter.NumberContains+"%")
		argIndex++
	}
	if len(filter.LocationIDs) > 0 {
		placeholders := make([]string, len(filter.LocationIDs))
		for i, v := range filter.LocationIDs {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, v)
			argIndex++
		}
		where += fmt.Sprintf(" AND j.location_id IN (%s)", strings.Join(placeholders, ","))
	}
	if len(filter.SupplierIDs) > 0 {
		placeholders := make([]string, len(filter.SupplierIDs))
		for i, v := range filter.SupplierIDs {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, v)
			argIndex++
		}
		where += fmt.Sprintf(" AND j.supplier_id IN (%s)", strings.Join(placeholders, ","))
	}

	return where, args
}

// GetDocumentJournal returns the cross-type document journal.
func (r *ReportRepo) GetDocumentJournal(ctx context.Context, filter reports.DocumentJournalFilter) (*reports.DocumentJournal, error) {
	where, args := r.journalWhere(filter)

	countQuery := "SELECT COUNT(*) FROM (" + journalBase + ") j" + where

	var total int
	if err := r.querier(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count journal: %w", err)
	}

	sortCol, ok := journalSortColumns[filter.SortBy]
	if !ok {
		sortCol = "j.date"
	}
	direction := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		direction = "ASC"
	}

	query := `
		SELECT
			j.id, j.document_type, j.number, j.date, j.posted,
			j.location_id, l.name AS location_name,
			j.supplier_id, COALESCE(s.name, '') AS supplier_name,
			j.total_amount, COALESCE(j.comment, '') AS comment, j.created_at
		FROM (` + journalBase + `) j
		JOIN cat_locations l ON j.location_id = l.id
		LEFT JOIN cat_suppliers s ON j.supplier_id = s.id
	` + where + fmt.Sprintf(" ORDER BY %s %s, j.number %s", sortCol, direction, direction)

	argIndex := len(args) + 1
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
		argIndex++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	var items []reports.DocumentJournalItem
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, query, args...); err != nil {
		return nil, fmt.Errorf("document journal: %w", err)
	}

	return &reports.DocumentJournal{
		Items:      items,
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// GetDocumentTypeSummary returns counts and totals per document type for
// the same filter as the journal.
func (r *ReportRepo) GetDocumentTypeSummary(ctx context.Context, filter reports.DocumentJournalFilter) ([]reports.DocumentTypeSummary, error) {
	where, args := r.journalWhere(filter)

	query := `
		SELECT
			j.document_type,
			COUNT(*) AS count,
			COUNT(*) FILTER (WHERE j.posted) AS posted_count,
			COALESCE(SUM(j.total_amount), 0) AS total_amount
		FROM (` + journalBase + `) j
	` + where + `
		GROUP BY j.document_type
		ORDER BY j.document_type
	`

	var summary []reports.DocumentTypeSummary
	if err := pgxscan.Select(ctx, r.querier(ctx), &summary, query, args...); err != nil {
		return nil, fmt.Errorf("document type summary: %w", err)
	}

	return summary, nil
}
