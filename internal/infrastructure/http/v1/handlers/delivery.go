package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain"
	"provision/internal/domain/documents/delivery"
	"provision/internal/infrastructure/http/v1/dto"
)

// DeliveryHandler handles delivery document endpoints.
type DeliveryHandler struct {
	*BaseHandler
	service *delivery.Service
}

// NewDeliveryHandler creates a new delivery handler.
func NewDeliveryHandler(base *BaseHandler, service *delivery.Service) *DeliveryHandler {
	return &DeliveryHandler{BaseHandler: base, service: service}
}

// Create handles POST /locations/:id/deliveries - records and posts a
// delivery in one step at the routed location.
func (h *DeliveryHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateDeliveryRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.LocationID = c.Param("id")

	doc, err := req.ToDelivery()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.Post(ctx, doc)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Get handles GET /deliveries/:id
func (h *DeliveryHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

// List handles GET /deliveries and GET /locations/:id/deliveries; the
// routed location wins over the locationId query.
func (h *DeliveryHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := delivery.ListFilter{ListFilter: domain.DefaultListFilter()}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.Query("orderBy")
	filter.HasVariance = parseBoolQuery(c, "hasVariance")

	var err error
	if filter.LocationID, err = parseIDQuery(c, "locationId"); err != nil {
		h.Error(c, err)
		return
	}
	if routed := c.Param("id"); routed != "" {
		locationID, err := id.Parse(routed)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid location id format"))
			return
		}
		filter.LocationID = &locationID
	}
	if filter.SupplierID, err = parseIDQuery(c, "supplierId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.PeriodID, err = parseIDQuery(c, "periodId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.DateFrom, err = parseDateQuery(c, "dateFrom"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.DateTo, err = parseDateQuery(c, "dateTo"); err != nil {
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
