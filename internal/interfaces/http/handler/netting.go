package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	settlementapp "github.com/settleflow/backend/internal/application/settlement"
	"github.com/settleflow/backend/internal/domain/settlement"
	"github.com/settleflow/backend/internal/interfaces/http/dto"
)

// NettingHandler handles netting-related API endpoints
type NettingHandler struct {
	BaseHandler
	nettingService *settlementapp.NettingService
}

// NewNettingHandler creates a new NettingHandler
func NewNettingHandler(nettingService *settlementapp.NettingService) *NettingHandler {
	return &NettingHandler{
		nettingService: nettingService,
	}
}

// NettingLineRequest represents one voucher line in a netting draft
type NettingLineRequest struct {
	VoucherID string  `json:"voucher_id" binding:"required,uuid"`
	Amount    float64 `json:"amount" binding:"required,gt=0"`
}

// CreateNettingDraftRequest represents a request to create a netting draft
type CreateNettingDraftRequest struct {
	CounterpartyID string               `json:"counterparty_id" binding:"required,uuid"`
	NettingDate    string               `json:"netting_date" binding:"omitempty"`
	Lines          []NettingLineRequest `json:"lines" binding:"required,min=2,dive"`
	Remark         string               `json:"remark" binding:"max=500"`
}

// CancelNettingRequest represents a request to cancel a netting record
type CancelNettingRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ListNettingsRequest represents netting list query parameters
type ListNettingsRequest struct {
	dto.ListRequest
	CounterpartyID string `form:"counterparty_id" binding:"omitempty,uuid"`
	Status         string `form:"status" binding:"omitempty,oneof=DRAFT CONFIRMED CANCELLED"`
}

// GetEligible godoc
// @Summary      List open vouchers eligible for netting with a counterparty
// @Tags         nettings
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        counterparty_id query string true "Counterparty ID" format(uuid)
// @Success      200 {object} dto.Response
// @Router       /settlement/nettings/eligible [get]
func (h *NettingHandler) GetEligible(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	counterpartyID, err := uuid.Parse(c.Query("counterparty_id"))
	if err != nil {
		h.BadRequest(c, "counterparty_id must be a valid UUID")
		return
	}

	eligible, err := h.nettingService.GetEligible(c.Request.Context(), tenantID, counterpartyID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, eligible)
}

// CreateDraft godoc
// @Summary      Create a balanced netting draft
// @Tags         nettings
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body CreateNettingDraftRequest true "Netting draft request"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/nettings [post]
func (h *NettingHandler) CreateDraft(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreateNettingDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var nettingDate time.Time
	if req.NettingDate != "" {
		nettingDate, err = time.Parse("2006-01-02", req.NettingDate)
		if err != nil {
			h.BadRequest(c, "netting_date must be in YYYY-MM-DD format")
			return
		}
	}

	lines := make([]settlementapp.NettingLineRequest, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, settlementapp.NettingLineRequest{
			VoucherID: uuid.MustParse(l.VoucherID),
			Amount:    decimal.NewFromFloat(l.Amount),
		})
	}

	record, err := h.nettingService.CreateDraft(c.Request.Context(), settlementapp.CreateDraftRequest{
		TenantID:       tenantID,
		CounterpartyID: uuid.MustParse(req.CounterpartyID),
		NettingDate:    nettingDate,
		Lines:          lines,
		Remark:         req.Remark,
		ActorID:        getActorID(c),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, record)
}

// Confirm godoc
// @Summary      Confirm a netting draft and settle its vouchers
// @Tags         nettings
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Netting ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/nettings/{id}/confirm [post]
func (h *NettingHandler) Confirm(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	nettingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid netting ID format")
		return
	}

	record, err := h.nettingService.Confirm(c.Request.Context(), tenantID, nettingID, getActorID(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, record)
}

// Cancel godoc
// @Summary      Cancel a netting record
// @Tags         nettings
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Netting ID" format(uuid)
// @Param        request body CancelNettingRequest false "Cancellation reason"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/nettings/{id}/cancel [post]
func (h *NettingHandler) Cancel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	nettingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid netting ID format")
		return
	}

	var req CancelNettingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	record, err := h.nettingService.Cancel(c.Request.Context(), tenantID, nettingID, req.Reason, getActorID(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, record)
}

// GetByID godoc
// @Summary      Get netting record by ID
// @Tags         nettings
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Netting ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/nettings/{id} [get]
func (h *NettingHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	nettingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid netting ID format")
		return
	}

	record, err := h.nettingService.GetNetting(c.Request.Context(), tenantID, nettingID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, record)
}

// List godoc
// @Summary      List netting records
// @Tags         nettings
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Success      200 {object} dto.Response
// @Router       /settlement/nettings [get]
func (h *NettingHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req ListNettingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	filter := settlement.NettingFilter{}
	filter.Page = req.Page
	filter.PageSize = req.PageSize
	filter.Search = req.Search

	if req.CounterpartyID != "" {
		id := uuid.MustParse(req.CounterpartyID)
		filter.CounterpartyID = &id
	}
	if req.Status != "" {
		status := settlement.NettingStatus(req.Status)
		filter.Status = &status
	}

	result, err := h.nettingService.ListNettings(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}
