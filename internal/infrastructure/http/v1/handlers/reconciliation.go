package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain/reconciliation"
	"provision/internal/infrastructure/http/v1/dto"
)

// ReconciliationHandler handles reconciliation and period close endpoints.
type ReconciliationHandler struct {
	*BaseHandler
	service *reconciliation.Service
}

// NewReconciliationHandler creates a new reconciliation handler.
func NewReconciliationHandler(base *BaseHandler, service *reconciliation.Service) *ReconciliationHandler {
	return &ReconciliationHandler{BaseHandler: base, service: service}
}

// Get handles GET /periods/:id/reconciliation/:locationId
// Returns the saved snapshot if one exists, otherwise a live computation.
func (h *ReconciliationHandler) Get(c *gin.Context) {
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

	rec, err := h.service.Get(c.Request.Context(), periodID, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// Save handles PUT /periods/:id/reconciliation/:locationId
func (h *ReconciliationHandler) Save(c *gin.Context) {
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

	var req dto.SaveReconciliationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rec, err := h.service.Save(c.Request.Context(), periodID, locationID, req.ToAdjustments())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// ListByPeriod handles GET /periods/:id/reconciliation
func (h *ReconciliationHandler) ListByPeriod(c *gin.Context) {
	periodID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	recs, err := h.service.ListByPeriod(c.Request.Context(), periodID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": recs})
}

// Close handles POST /periods/:id/close - finalises the period and opens
// the next one.
func (h *ReconciliationHandler) Close(c *gin.Context) {
	periodID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	result, err := h.service.Close(c.Request.Context(), periodID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
