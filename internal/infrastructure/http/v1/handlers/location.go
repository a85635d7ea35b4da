package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain/catalogs/location"
	"provision/internal/infrastructure/http/v1/dto"
)

// LocationHandler handles location catalog endpoints.
type LocationHandler struct {
	*CatalogHandler[*location.Location, dto.CreateLocationRequest, dto.UpdateLocationRequest]
	service *location.Service
}

// NewLocationHandler creates a new location handler.
func NewLocationHandler(base *BaseHandler, service *location.Service) *LocationHandler {
	return &LocationHandler{
		CatalogHandler: NewCatalogHandler(base, CatalogHandlerConfig[*location.Location, dto.CreateLocationRequest, dto.UpdateLocationRequest]{
			Service:    service.CatalogService,
			EntityName: "location",
			MapCreateDTO: func(req dto.CreateLocationRequest) *location.Location {
				return req.ToLocation()
			},
			MapUpdateDTO: func(req dto.UpdateLocationRequest, existing *location.Location) *location.Location {
				return req.Apply(existing)
			},
			MapToDTO: func(l *location.Location) any {
				return dto.FromLocation(l)
			},
		}),
		service: service,
	}
}

// Get handles GET /locations/:id. The literal id "active" lists active
// locations; a static /active route would collide with the :id param.
func (h *LocationHandler) Get(c *gin.Context) {
	if c.Param("id") == "active" {
		h.ListActive(c)
		return
	}
	h.CatalogHandler.Get(c)
}

// ListActive handles GET /locations/active
func (h *LocationHandler) ListActive(c *gin.Context) {
	locations, err := h.service.ListActive(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.LocationResponse, len(locations))
	for i, l := range locations {
		items[i] = dto.FromLocation(l)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// SetActive handles POST /locations/:id/active
func (h *LocationHandler) SetActive(c *gin.Context) {
	locID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.SetActiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetActive(c.Request.Context(), locID, req.Active); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "location activity updated")
}
