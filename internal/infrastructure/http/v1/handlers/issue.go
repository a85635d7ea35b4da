package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain"
	"provision/internal/domain/documents/issue"
	"provision/internal/infrastructure/http/v1/dto"
)

// IssueHandler handles issue document endpoints.
type IssueHandler struct {
	*BaseHandler
	service *issue.Service
}

// NewIssueHandler creates a new issue handler.
func NewIssueHandler(base *BaseHandler, service *issue.Service) *IssueHandler {
	return &IssueHandler{BaseHandler: base, service: service}
}

// Create handles POST /locations/:id/issues - records and posts an issue
// in one step at the routed location.
func (h *IssueHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateIssueRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.LocationID = c.Param("id")

	doc, err := req.ToIssue()
	if err != nil {
		h.Error(c, err)
		return
	}

	posted, err := h.service.Post(ctx, doc)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, posted)
}

// Get handles GET /issues/:id
func (h *IssueHandler) Get(c *gin.Context) {
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

// List handles GET /issues and GET /locations/:id/issues; the routed
// location wins over the locationId query.
func (h *IssueHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := issue.ListFilter{ListFilter: domain.DefaultListFilter()}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.Query("orderBy")

	if cc := c.Query("costCentre"); cc != "" {
		centre := issue.CostCentre(cc)
		filter.CostCentre = &centre
	}

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
