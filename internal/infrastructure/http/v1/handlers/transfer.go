package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain"
	"provision/internal/domain/documents/transfer"
	"provision/internal/infrastructure/http/v1/dto"
)

// TransferHandler handles transfer document endpoints.
type TransferHandler struct {
	*BaseHandler
	service *transfer.Service
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(base *BaseHandler, service *transfer.Service) *TransferHandler {
	return &TransferHandler{BaseHandler: base, service: service}
}

// Create handles POST /transfers - records a transfer awaiting approval.
func (h *TransferHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := req.ToTransfer()
	if err != nil {
		h.Error(c, err)
		return
	}

	created, err := h.service.Create(ctx, doc)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// Approve handles PATCH /transfers/:id/approve - applies the movement.
func (h *TransferHandler) Approve(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	approved, err := h.service.Approve(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, approved)
}

// Get handles GET /transfers/:id
func (h *TransferHandler) Get(c *gin.Context) {
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

// List handles GET /transfers
func (h *TransferHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := transfer.ListFilter{ListFilter: domain.DefaultListFilter()}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.Query("orderBy")

	if status := c.Query("status"); status != "" {
		st := transfer.Status(status)
		filter.Status = &st
	}

	var err error
	if filter.FromLocationID, err = parseIDQuery(c, "fromLocationId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.ToLocationID, err = parseIDQuery(c, "toLocationId"); err != nil {
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
