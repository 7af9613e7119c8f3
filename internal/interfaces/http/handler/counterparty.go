package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	partnerapp "github.com/settleflow/backend/internal/application/partner"
	"github.com/settleflow/backend/internal/domain/partner"
	"github.com/settleflow/backend/internal/interfaces/http/dto"
)

// CounterpartyHandler handles counterparty-related API endpoints
type CounterpartyHandler struct {
	BaseHandler
	counterpartyService *partnerapp.CounterpartyService
	aliasService        *partnerapp.AliasService
}

// NewCounterpartyHandler creates a new CounterpartyHandler
func NewCounterpartyHandler(counterpartyService *partnerapp.CounterpartyService, aliasService *partnerapp.AliasService) *CounterpartyHandler {
	return &CounterpartyHandler{
		counterpartyService: counterpartyService,
		aliasService:        aliasService,
	}
}

// CreateCounterpartyRequest represents a request to create a counterparty
type CreateCounterpartyRequest struct {
	Name    string   `json:"name" binding:"required,min=1,max=200"`
	Aliases []string `json:"aliases" binding:"omitempty,dive,min=1,max=200"`
	Remark  string   `json:"remark" binding:"max=500"`
}

// RenameCounterpartyRequest represents a request to rename a counterparty
type RenameCounterpartyRequest struct {
	Name string `json:"name" binding:"required,min=1,max=200"`
}

// MapAliasRequest represents a request to bind an alias to a counterparty
type MapAliasRequest struct {
	Alias string `json:"alias" binding:"required,min=1,max=200"`
}

// ListCounterpartiesRequest represents counterparty list query parameters
type ListCounterpartiesRequest struct {
	dto.ListRequest
	Name string `form:"name"`
}

// Create godoc
// @Summary      Create a new counterparty
// @Tags         counterparties
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body CreateCounterpartyRequest true "Counterparty creation request"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /partners/counterparties [post]
func (h *CounterpartyHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreateCounterpartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	counterparty, err := h.counterpartyService.CreateCounterparty(c.Request.Context(), partnerapp.CreateCounterpartyRequest{
		TenantID: tenantID,
		Name:     req.Name,
		Aliases:  req.Aliases,
		Remark:   req.Remark,
		ActorID:  getActorID(c),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, counterparty)
}

// GetByID godoc
// @Summary      Get counterparty by ID
// @Tags         counterparties
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Counterparty ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /partners/counterparties/{id} [get]
func (h *CounterpartyHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	counterpartyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid counterparty ID format")
		return
	}

	counterparty, err := h.counterpartyService.GetCounterparty(c.Request.Context(), tenantID, counterpartyID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, counterparty)
}

// List godoc
// @Summary      List counterparties
// @Tags         counterparties
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Success      200 {object} dto.Response
// @Router       /partners/counterparties [get]
func (h *CounterpartyHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req ListCounterpartiesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	filter := partner.CounterpartyFilter{Name: req.Name}
	filter.Page = req.Page
	filter.PageSize = req.PageSize
	filter.Search = req.Search

	result, err := h.counterpartyService.ListCounterparties(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Rename godoc
// @Summary      Rename a counterparty
// @Tags         counterparties
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Counterparty ID" format(uuid)
// @Param        request body RenameCounterpartyRequest true "New canonical name"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /partners/counterparties/{id}/name [put]
func (h *CounterpartyHandler) Rename(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	counterpartyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid counterparty ID format")
		return
	}

	var req RenameCounterpartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	counterparty, err := h.counterpartyService.RenameCounterparty(c.Request.Context(), tenantID, counterpartyID, req.Name, getActorID(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, counterparty)
}

// MapAlias godoc
// @Summary      Bind an alias to a counterparty and resolve matching transactions
// @Tags         counterparties
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Counterparty ID" format(uuid)
// @Param        request body MapAliasRequest true "Alias to bind"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /partners/counterparties/{id}/aliases [post]
func (h *CounterpartyHandler) MapAlias(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	counterpartyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid counterparty ID format")
		return
	}

	var req MapAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.aliasService.MapAlias(c.Request.Context(), partnerapp.MapAliasRequest{
		TenantID:       tenantID,
		CounterpartyID: counterpartyID,
		Alias:          req.Alias,
		ActorID:        getActorID(c),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// ListUnmatchedNames godoc
// @Summary      List raw names of unresolved transactions
// @Tags         counterparties
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Success      200 {object} dto.Response
// @Router       /partners/unmatched-names [get]
func (h *CounterpartyHandler) ListUnmatchedNames(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	names, err := h.aliasService.ListUnmatched(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, names)
}
