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

// VoucherHandler handles voucher-related API endpoints
type VoucherHandler struct {
	BaseHandler
	voucherService *settlementapp.VoucherService
}

// NewVoucherHandler creates a new VoucherHandler
func NewVoucherHandler(voucherService *settlementapp.VoucherService) *VoucherHandler {
	return &VoucherHandler{
		voucherService: voucherService,
	}
}

// CreateVoucherRequest represents a request to create a new voucher
type CreateVoucherRequest struct {
	CounterpartyID string  `json:"counterparty_id" binding:"required,uuid"`
	Side           string  `json:"side" binding:"required,oneof=SALES PURCHASE"`
	TradeDate      string  `json:"trade_date" binding:"required"`
	VoucherNumber  string  `json:"voucher_number" binding:"required,min=1,max=50"`
	TotalAmount    float64 `json:"total_amount" binding:"required,gt=0"`
	Remark         string  `json:"remark" binding:"max=500"`
}

// SetModerationRequest represents a request to change a moderation state
type SetModerationRequest struct {
	State string `json:"state" binding:"required,oneof=NONE ON_HOLD HIDDEN CANCELLED"`
}

// ListVouchersRequest represents voucher list query parameters
type ListVouchersRequest struct {
	dto.ListRequest
	CounterpartyID string `form:"counterparty_id" binding:"omitempty,uuid"`
	Side           string `form:"side" binding:"omitempty,oneof=SALES PURCHASE"`
	Status         string `form:"status" binding:"omitempty,oneof=OPEN PARTIAL SETTLED"`
	Moderation     string `form:"moderation" binding:"omitempty,oneof=NONE ON_HOLD HIDDEN CANCELLED"`
	TradeDateFrom  string `form:"trade_date_from"`
	TradeDateTo    string `form:"trade_date_to"`
}

// Create godoc
// @Summary      Create a new voucher
// @Tags         vouchers
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body CreateVoucherRequest true "Voucher creation request"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/vouchers [post]
func (h *VoucherHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	tradeDate, err := time.Parse("2006-01-02", req.TradeDate)
	if err != nil {
		h.BadRequest(c, "trade_date must be in YYYY-MM-DD format")
		return
	}

	voucher, err := h.voucherService.CreateVoucher(c.Request.Context(), settlementapp.CreateVoucherRequest{
		TenantID:       tenantID,
		CounterpartyID: uuid.MustParse(req.CounterpartyID),
		Side:           settlement.VoucherSide(req.Side),
		TradeDate:      tradeDate,
		VoucherNumber:  req.VoucherNumber,
		TotalAmount:    decimal.NewFromFloat(req.TotalAmount),
		Remark:         req.Remark,
		ActorID:        getActorID(c),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, voucher)
}

// GetByID godoc
// @Summary      Get voucher by ID
// @Tags         vouchers
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Voucher ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/vouchers/{id} [get]
func (h *VoucherHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	voucherID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid voucher ID format")
		return
	}

	voucher, err := h.voucherService.GetVoucher(c.Request.Context(), tenantID, voucherID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, voucher)
}

// List godoc
// @Summary      List vouchers
// @Tags         vouchers
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Success      200 {object} dto.Response
// @Router       /settlement/vouchers [get]
func (h *VoucherHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req ListVouchersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	filter := settlement.VoucherFilter{}
	filter.Page = req.Page
	filter.PageSize = req.PageSize
	filter.Search = req.Search

	if req.CounterpartyID != "" {
		id := uuid.MustParse(req.CounterpartyID)
		filter.CounterpartyID = &id
	}
	if req.Side != "" {
		side := settlement.VoucherSide(req.Side)
		filter.Side = &side
	}
	if req.Status != "" {
		status := settlement.SettlementStatus(req.Status)
		filter.Status = &status
	}
	if req.Moderation != "" {
		state := settlement.ModerationState(req.Moderation)
		filter.Moderation = &state
	}
	if req.TradeDateFrom != "" {
		from, err := time.Parse("2006-01-02", req.TradeDateFrom)
		if err != nil {
			h.BadRequest(c, "trade_date_from must be in YYYY-MM-DD format")
			return
		}
		filter.TradeDateFrom = &from
	}
	if req.TradeDateTo != "" {
		to, err := time.Parse("2006-01-02", req.TradeDateTo)
		if err != nil {
			h.BadRequest(c, "trade_date_to must be in YYYY-MM-DD format")
			return
		}
		filter.TradeDateTo = &to
	}

	result, err := h.voucherService.ListVouchers(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// SetModeration godoc
// @Summary      Set voucher moderation state
// @Tags         vouchers
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Voucher ID" format(uuid)
// @Param        request body SetModerationRequest true "Moderation state"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/vouchers/{id}/moderation [put]
func (h *VoucherHandler) SetModeration(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	voucherID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid voucher ID format")
		return
	}

	var req SetModerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	voucher, err := h.voucherService.SetModeration(c.Request.Context(), tenantID, voucherID,
		settlement.ModerationState(req.State), getActorID(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, voucher)
}

// CounterpartySummary godoc
// @Summary      Get open balance summary for a counterparty
// @Tags         vouchers
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Counterparty ID" format(uuid)
// @Success      200 {object} dto.Response
// @Router       /settlement/counterparties/{id}/summary [get]
func (h *VoucherHandler) CounterpartySummary(c *gin.Context) {
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

	summary, err := h.voucherService.GetCounterpartySummary(c.Request.Context(), tenantID, counterpartyID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, summary)
}
