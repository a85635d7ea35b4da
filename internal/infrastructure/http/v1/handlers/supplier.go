package handlers

import (
	"github.com/gin-gonic/gin"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain/catalogs/supplier"
	"provision/internal/infrastructure/http/v1/dto"
)

// SupplierHandler handles supplier catalog endpoints.
type SupplierHandler struct {
	*CatalogHandler[*supplier.Supplier, dto.CreateSupplierRequest, dto.UpdateSupplierRequest]
	service *supplier.Service
}

// NewSupplierHandler creates a new supplier handler.
func NewSupplierHandler(base *BaseHandler, service *supplier.Service) *SupplierHandler {
	return &SupplierHandler{
		CatalogHandler: NewCatalogHandler(base, CatalogHandlerConfig[*supplier.Supplier, dto.CreateSupplierRequest, dto.UpdateSupplierRequest]{
			Service:    service.CatalogService,
			EntityName: "supplier",
			MapCreateDTO: func(req dto.CreateSupplierRequest) *supplier.Supplier {
				return req.ToSupplier()
			},
			MapUpdateDTO: func(req dto.UpdateSupplierRequest, existing *supplier.Supplier) *supplier.Supplier {
				return req.Apply(existing)
			},
			MapToDTO: func(s *supplier.Supplier) any {
				return dto.FromSupplier(s)
			},
		}),
		service: service,
	}
}

// SetActive handles POST /suppliers/:id/active
func (h *SupplierHandler) SetActive(c *gin.Context) {
	supID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.SetActiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetActive(c.Request.Context(), supID, req.Active); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "supplier activity updated")
}
