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

// ChangeRequestHandler handles voucher change request API endpoints
type ChangeRequestHandler struct {
	BaseHandler
	changeService *settlementapp.ChangeService
}

// NewChangeRequestHandler creates a new ChangeRequestHandler
func NewChangeRequestHandler(changeService *settlementapp.ChangeService) *ChangeRequestHandler {
	return &ChangeRequestHandler{
		changeService: changeService,
	}
}

// SubmitChangeRequest represents a request to propose a voucher revision
type SubmitChangeRequest struct {
	VoucherID      string  `json:"voucher_id" binding:"required,uuid"`
	CounterpartyID string  `json:"counterparty_id" binding:"required,uuid"`
	Side           string  `json:"side" binding:"required,oneof=SALES PURCHASE"`
	TradeDate      string  `json:"trade_date" binding:"required"`
	VoucherNumber  string  `json:"voucher_number" binding:"required,min=1,max=50"`
	TotalAmount    float64 `json:"total_amount" binding:"required,gt=0"`
	Remark         string  `json:"remark" binding:"max=500"`
	Reason         string  `json:"reason" binding:"required,max=500"`
}

// ReviewChangeRequest represents an approve or reject note
type ReviewChangeRequest struct {
	Note string `json:"note" binding:"max=500"`
}

// ListChangeRequestsRequest represents change request list query parameters
type ListChangeRequestsRequest struct {
	dto.ListRequest
	VoucherID string `form:"voucher_id" binding:"omitempty,uuid"`
	Status    string `form:"status" binding:"omitempty,oneof=PENDING APPROVED REJECTED"`
}

// Submit godoc
// @Summary      Submit a voucher change request for review
// @Tags         change-requests
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body SubmitChangeRequest true "Change request"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/change-requests [post]
func (h *ChangeRequestHandler) Submit(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req SubmitChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	tradeDate, err := time.Parse("2006-01-02", req.TradeDate)
	if err != nil {
		h.BadRequest(c, "trade_date must be in YYYY-MM-DD format")
		return
	}

	request, err := h.changeService.Submit(c.Request.Context(), settlementapp.SubmitChangeRequest{
		TenantID:  tenantID,
		VoucherID: uuid.MustParse(req.VoucherID),
		NewData: settlement.VoucherRevision{
			CounterpartyID: uuid.MustParse(req.CounterpartyID),
			Side:           settlement.VoucherSide(req.Side),
			TradeDate:      tradeDate,
			VoucherNumber:  req.VoucherNumber,
			TotalAmount:    decimal.NewFromFloat(req.TotalAmount),
			Remark:         req.Remark,
		},
		Reason:  req.Reason,
		ActorID: getActorID(c),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, request)
}

// Approve godoc
// @Summary      Approve a pending change request
// @Tags         change-requests
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Change request ID" format(uuid)
// @Param        request body ReviewChangeRequest false "Review note"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/change-requests/{id}/approve [post]
func (h *ChangeRequestHandler) Approve(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid change request ID format")
		return
	}

	var req ReviewChangeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	request, err := h.changeService.Approve(c.Request.Context(), tenantID, requestID, req.Note, getActorID(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, request)
}

// Reject godoc
// @Summary      Reject a pending change request
// @Tags         change-requests
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Change request ID" format(uuid)
// @Param        request body ReviewChangeRequest false "Review note"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/change-requests/{id}/reject [post]
func (h *ChangeRequestHandler) Reject(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid change request ID format")
		return
	}

	var req ReviewChangeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	request, err := h.changeService.Reject(c.Request.Context(), tenantID, requestID, req.Note, getActorID(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, request)
}

// GetByID godoc
// @Summary      Get change request by ID
// @Tags         change-requests
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Change request ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/change-requests/{id} [get]
func (h *ChangeRequestHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid change request ID format")
		return
	}

	request, err := h.changeService.GetRequest(c.Request.Context(), tenantID, requestID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, request)
}

// List godoc
// @Summary      List change requests
// @Tags         change-requests
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Success      200 {object} dto.Response
// @Router       /settlement/change-requests [get]
func (h *ChangeRequestHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req ListChangeRequestsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	filter := settlement.ChangeRequestFilter{}
	filter.Page = req.Page
	filter.PageSize = req.PageSize

	if req.VoucherID != "" {
		id := uuid.MustParse(req.VoucherID)
		filter.VoucherID = &id
	}
	if req.Status != "" {
		status := settlement.ChangeRequestStatus(req.Status)
		filter.Status = &status
	}

	result, err := h.changeService.ListRequests(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}
