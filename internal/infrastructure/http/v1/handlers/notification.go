package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain/notification"
	"provision/internal/infrastructure/http/v1/dto"
)

// NotificationHandler handles notification subscription endpoints.
type NotificationHandler struct {
	*BaseHandler
	service *notification.Service
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(base *BaseHandler, service *notification.Service) *NotificationHandler {
	return &NotificationHandler{BaseHandler: base, service: service}
}

// Create handles POST /notifications
func (h *NotificationHandler) Create(c *gin.Context) {
	var req dto.CreateNotificationSettingRequest
	if !h.BindJSON(c, &req) {
		return
	}

	setting := req.ToSetting()
	if err := h.service.Create(c.Request.Context(), setting); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, setting)
}

// Get handles GET /notifications/:id
func (h *NotificationHandler) Get(c *gin.Context) {
	settingID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	setting, err := h.service.GetByID(c.Request.Context(), settingID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, setting)
}

// List handles GET /notifications
func (h *NotificationHandler) List(c *gin.Context) {
	settings, err := h.service.List(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": settings})
}

// Update handles PUT /notifications/:id
func (h *NotificationHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	settingID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateNotificationSettingRequest
	if !h.BindJSON(c, &req) {
		return
	}

	existing, err := h.service.GetByID(ctx, settingID)
	if err != nil {
		h.Error(c, err)
		return
	}

	updated := req.Apply(existing)
	if err := h.service.Update(ctx, updated); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /notifications/:id
func (h *NotificationHandler) Delete(c *gin.Context) {
	settingID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), settingID); err != nil {
		h.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
