package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain/ledger"
	"provision/internal/infrastructure/http/v1/dto"
)

// StockHandler handles stock ledger endpoints.
type StockHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *ledger.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// ListByLocation handles GET /stock/:locationId
func (h *StockHandler) ListByLocation(c *gin.Context) {
	locationID, err := id.Parse(c.Param("locationId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid location id format"))
		return
	}

	positions, err := h.service.StockAt(c.Request.Context(), locationID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": positions})
}

// Position handles GET /stock/:locationId/:itemId
func (h *StockHandler) Position(c *gin.Context) {
	locationID, err := id.Parse(c.Param("locationId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid location id format"))
		return
	}
	itemID, err := id.Parse(c.Param("itemId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item id format"))
		return
	}

	position, err := h.service.Position(c.Request.Context(), locationID, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, position)
}

// Value handles GET /stock/:locationId/value - total value at WAC.
func (h *StockHandler) Value(c *gin.Context) {
	locationID, err := id.Parse(c.Param("locationId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid location id format"))
		return
	}

	value, err := h.service.LocationValue(c.Request.Context(), locationID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"locationId": locationID.String(), "value": value})
}

// SetLevels handles PUT /stock/:locationId/:itemId/levels
func (h *StockHandler) SetLevels(c *gin.Context) {
	locationID, err := id.Parse(c.Param("locationId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid location id format"))
		return
	}
	itemID, err := id.Parse(c.Param("itemId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item id format"))
		return
	}

	var req dto.SetStockLevelsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetLevels(c.Request.Context(), locationID, itemID, req.MinQty, req.MaxQty); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "stock levels updated")
}
