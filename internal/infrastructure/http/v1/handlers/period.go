package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain/period"
	"provision/internal/domain/pricing"
	"provision/internal/infrastructure/http/v1/dto"
)

// PeriodHandler handles accounting period endpoints.
type PeriodHandler struct {
	*BaseHandler
	service *period.Service
	pricing *pricing.Service
}

// NewPeriodHandler creates a new period handler.
func NewPeriodHandler(base *BaseHandler, service *period.Service, pricingSvc *pricing.Service) *PeriodHandler {
	return &PeriodHandler{BaseHandler: base, service: service, pricing: pricingSvc}
}

// Open handles POST /periods - opens a new period with locked prices.
func (h *PeriodHandler) Open(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.OpenPeriodRequest
	if !h.BindJSON(c, &req) {
		return
	}

	opened, err := h.service.Open(ctx, req.Name, req.StartDate, req.EndDate)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, opened)
}

// Current handles GET /periods/current
func (h *PeriodHandler) Current(c *gin.Context) {
	current, err := h.service.CurrentOpen(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, current)
}

// Get handles GET /periods/:id. The literal id "current" resolves the
// open period; a static /current route would collide with the :id param
// in the routing tree.
func (h *PeriodHandler) Get(c *gin.Context) {
	if c.Param("id") == "current" {
		h.Current(c)
		return
	}

	periodID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	found, err := h.service.GetByID(c.Request.Context(), periodID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, found)
}

// List handles GET /periods
func (h *PeriodHandler) List(c *gin.Context) {
	limit := h.ParseIntQuery(c, "limit", 24)
	offset := h.ParseIntQuery(c, "offset", 0)

	periods, err := h.service.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": periods})
}

// Locations handles GET /periods/:id/locations - per-location readiness.
func (h *PeriodHandler) Locations(c *gin.Context) {
	periodID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	locations, err := h.service.Locations(c.Request.Context(), periodID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": locations})
}

// MarkReady handles POST /periods/:id/locations/:locationId/ready
func (h *PeriodHandler) MarkReady(c *gin.Context) {
	periodID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}
	locationID, err := id.Parse(c.Param("locationId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid location id format"))
		return
	}

	if err := h.service.MarkReady(c.Request.Context(), periodID, locationID); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "location marked ready")
}

// Prices handles GET /periods/:id/prices - the locked price snapshot.
func (h *PeriodHandler) Prices(c *gin.Context) {
	periodID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	prices, err := h.pricing.ListByPeriod(c.Request.Context(), periodID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": prices})
}

// ItemPrice handles GET /periods/:id/prices/:itemId
func (h *PeriodHandler) ItemPrice(c *gin.Context) {
	periodID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}
	itemID, err := id.Parse(c.Param("itemId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item id format"))
		return
	}

	price, err := h.pricing.ExpectedPrice(c.Request.Context(), periodID, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, price)
}
