package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain"
	"provision/internal/domain/ncr"
	"provision/internal/domain/period"
	"provision/internal/infrastructure/http/v1/dto"
)

// NCRHandler handles non-conformance report endpoints.
type NCRHandler struct {
	*BaseHandler
	service *ncr.Service
	periods *period.Service
}

// NewNCRHandler creates a new NCR handler.
func NewNCRHandler(base *BaseHandler, service *ncr.Service, periods *period.Service) *NCRHandler {
	return &NCRHandler{BaseHandler: base, service: service, periods: periods}
}

// Create handles POST /ncrs - raises a manual report in the open period.
func (h *NCRHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateNCRRequest
	if !h.BindJSON(c, &req) {
		return
	}

	openPeriod, err := h.periods.CurrentOpen(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}

	report, err := req.ToNCR(openPeriod.ID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.CreateManual(ctx, report); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, report)
}

// Get handles GET /ncrs/:id
func (h *NCRHandler) Get(c *gin.Context) {
	reportID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	report, err := h.service.GetByID(c.Request.Context(), reportID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// List handles GET /ncrs
func (h *NCRHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := ncr.ListFilter{ListFilter: domain.DefaultListFilter()}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)

	if status := c.Query("status"); status != "" {
		st := ncr.Status(status)
		filter.Status = &st
	}
	if ncrType := c.Query("type"); ncrType != "" {
		t := ncr.Type(ncrType)
		filter.Type = &t
	}

	var err error
	if filter.LocationID, err = parseIDQuery(c, "locationId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.PeriodID, err = parseIDQuery(c, "periodId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.SupplierID, err = parseIDQuery(c, "supplierId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.DeliveryID, err = parseIDQuery(c, "deliveryId"); err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      result.Items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// UpdateStatus handles PATCH /ncrs/:id/status
func (h *NCRHandler) UpdateStatus(c *gin.Context) {
	reportID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateNCRStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	updated, err := h.service.UpdateStatus(c.Request.Context(), reportID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}
