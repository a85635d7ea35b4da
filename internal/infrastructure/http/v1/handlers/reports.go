package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain/reports"
)

// ReportHandler handles reporting endpoints.
type ReportHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportHandler creates a new report handler.
func NewReportHandler(base *BaseHandler, service *reports.Service) *ReportHandler {
	return &ReportHandler{BaseHandler: base, service: service}
}

// GetStockOnHand handles GET /reports/stock-on-hand
func (h *ReportHandler) GetStockOnHand(c *gin.Context) {
	filter := reports.StockOnHandFilter{
		Category:     c.Query("category"),
		BelowMinOnly: c.Query("belowMinOnly") == "true",
		ExcludeZero:  c.Query("excludeZero") == "true",
		Limit:        h.ParseIntQuery(c, "limit", 100),
		Offset:       h.ParseIntQuery(c, "offset", 0),
	}

	var err error
	if filter.LocationIDs, err = parseIDList(c, "locationId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.ItemIDs, err = parseIDList(c, "itemId"); err != nil {
		h.Error(c, err)
		return
	}

	report, err := h.service.GetStockOnHand(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetPeriodMovement handles GET /reports/period-movement/:periodId
func (h *ReportHandler) GetPeriodMovement(c *gin.Context) {
	periodID, err := id.Parse(c.Param("periodId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid period id format"))
		return
	}

	filter := reports.PeriodMovementFilter{
		PeriodID: periodID,
		Limit:    h.ParseIntQuery(c, "limit", 100),
		Offset:   h.ParseIntQuery(c, "offset", 0),
	}

	if filter.LocationIDs, err = parseIDList(c, "locationId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.ItemIDs, err = parseIDList(c, "itemId"); err != nil {
		h.Error(c, err)
		return
	}

	report, err := h.service.GetPeriodMovement(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetReconciliationReport handles GET /reports/reconciliation?periodId&locationId
func (h *ReportHandler) GetReconciliationReport(c *gin.Context) {
	periodID, err := id.Parse(c.Query("periodId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid period id format").WithDetail("field", "periodId"))
		return
	}
	locationID, err := parseIDQuery(c, "locationId")
	if err != nil {
		h.Error(c, err)
		return
	}

	report, err := h.service.GetReconciliationReport(c.Request.Context(), periodID, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetDocumentJournal handles GET /reports/document-journal
func (h *ReportHandler) GetDocumentJournal(c *gin.Context) {
	filter := reports.DocumentJournalFilter{
		DocumentTypes:  c.QueryArray("type"),
		Posted:         parseBoolQuery(c, "posted"),
		NumberContains: c.Query("number"),
		SortBy:         c.Query("sortBy"),
		SortOrder:      c.Query("sortOrder"),
		Limit:          h.ParseIntQuery(c, "limit", 100),
		Offset:         h.ParseIntQuery(c, "offset", 0),
	}

	var err error
	if filter.FromDate, err = parseDateQuery(c, "dateFrom"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.ToDate, err = parseDateQuery(c, "dateTo"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.LocationIDs, err = parseIDList(c, "locationId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.SupplierIDs, err = parseIDList(c, "supplierId"); err != nil {
		h.Error(c, err)
		return
	}

	journal, err := h.service.GetDocumentJournal(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, journal)
}

// parseIDList reads a repeatable UUID query parameter.
func parseIDList(c *gin.Context, key string) ([]id.ID, error) {
	values := c.QueryArray(key)
	if len(values) == 0 {
		return nil, nil
	}
	ids := make([]id.ID, 0, len(values))
	for _, val := range values {
		parsed, err := id.Parse(val)
		if err != nil {
			return nil, apperror.NewValidation("invalid id format").WithDetail("field", key)
		}
		ids = append(ids, parsed)
	}
	return ids, nil
}
