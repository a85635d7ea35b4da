package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain"
	"provision/internal/domain/catalogs/item"
	"provision/internal/infrastructure/http/v1/dto"
)

// ItemHandler handles item catalog endpoints.
type ItemHandler struct {
	*CatalogHandler[*item.Item, dto.CreateItemRequest, dto.UpdateItemRequest]
	service *item.Service
}

// NewItemHandler creates a new item handler.
func NewItemHandler(base *BaseHandler, service *item.Service) *ItemHandler {
	return &ItemHandler{
		CatalogHandler: NewCatalogHandler(base, CatalogHandlerConfig[*item.Item, dto.CreateItemRequest, dto.UpdateItemRequest]{
			Service:    service.CatalogService,
			EntityName: "item",
			MapCreateDTO: func(req dto.CreateItemRequest) *item.Item {
				return req.ToItem()
			},
			MapUpdateDTO: func(req dto.UpdateItemRequest, existing *item.Item) *item.Item {
				return req.Apply(existing)
			},
			MapToDTO: func(i *item.Item) any {
				return dto.FromItem(i)
			},
		}),
		service: service,
	}
}

// List handles GET /items. A category query parameter narrows the list
// to one reporting category.
func (h *ItemHandler) List(c *gin.Context) {
	if category := c.Query("category"); category != "" {
		h.ListByCategory(c, category)
		return
	}
	h.CatalogHandler.List(c)
}

// Get handles GET /items/:id. The literal id "active" lists active
// items; a static /active route would collide with the :id param.
func (h *ItemHandler) Get(c *gin.Context) {
	if c.Param("id") == "active" {
		h.ListActive(c)
		return
	}
	h.CatalogHandler.Get(c)
}

// ListActive handles GET /items/active
func (h *ItemHandler) ListActive(c *gin.Context) {
	items, err := h.service.ListActive(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := make([]dto.ItemResponse, len(items))
	for i, it := range items {
		resp[i] = dto.FromItem(it)
	}
	c.JSON(http.StatusOK, gin.H{"items": resp})
}

// ListByCategory handles GET /items?category=... via List dispatch.
func (h *ItemHandler) ListByCategory(c *gin.Context, category string) {
	filter := domain.DefaultListFilter()
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)

	result, err := h.service.ListByCategory(c.Request.Context(), category, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.ItemResponse, len(result.Items))
	for i, it := range result.Items {
		items[i] = dto.FromItem(it)
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// SetActive handles POST /items/:id/active
func (h *ItemHandler) SetActive(c *gin.Context) {
	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.SetActiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetActive(c.Request.Context(), itemID, req.Active); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "item activity updated")
}
