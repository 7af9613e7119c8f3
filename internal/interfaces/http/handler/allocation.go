package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	settlementapp "github.com/settleflow/backend/internal/application/settlement"
	"github.com/settleflow/backend/internal/domain/settlement"
	"github.com/settleflow/backend/internal/interfaces/http/dto"
)

// AllocationHandler handles allocation-related API endpoints
type AllocationHandler struct {
	BaseHandler
	allocationService *settlementapp.AllocationService
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(allocationService *settlementapp.AllocationService) *AllocationHandler {
	return &AllocationHandler{
		allocationService: allocationService,
	}
}

// ManualPairingRequest represents one caller-chosen voucher pairing
type ManualPairingRequest struct {
	VoucherID string  `json:"voucher_id" binding:"required,uuid"`
	Amount    float64 `json:"amount" binding:"required,gt=0"`
}

// ManualAllocateRequest represents a request to allocate exact amounts
type ManualAllocateRequest struct {
	Pairings []ManualPairingRequest `json:"pairings" binding:"required,min=1,dive"`
}

// DeleteAllocationRequest represents a request to reverse an allocation
type DeleteAllocationRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ListAllocationsRequest represents allocation list query parameters
type ListAllocationsRequest struct {
	dto.ListRequest
	TransactionID string `form:"transaction_id" binding:"omitempty,uuid"`
	VoucherID     string `form:"voucher_id" binding:"omitempty,uuid"`
	Status        string `form:"status" binding:"omitempty,oneof=ACTIVE REVERSED"`
	Method        string `form:"method" binding:"omitempty,oneof=AUTO MANUAL NETTING"`
}

// AutoAllocate godoc
// @Summary      Auto-allocate a transaction across open vouchers
// @Tags         allocations
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Transaction ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/transactions/{id}/allocations/auto [post]
func (h *AllocationHandler) AutoAllocate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID format")
		return
	}

	result, err := h.allocationService.AutoAllocate(c.Request.Context(), settlementapp.AutoAllocateRequest{
		TenantID:      tenantID,
		TransactionID: transactionID,
		ActorID:       getActorID(c),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// ManualAllocate godoc
// @Summary      Allocate exact amounts to chosen vouchers
// @Tags         allocations
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Transaction ID" format(uuid)
// @Param        request body ManualAllocateRequest true "Manual allocation request"
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/transactions/{id}/allocations/manual [post]
func (h *AllocationHandler) ManualAllocate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID format")
		return
	}

	var req ManualAllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	pairings := make([]settlement.ManualAllocationRequest, 0, len(req.Pairings))
	for _, p := range req.Pairings {
		pairings = append(pairings, settlement.ManualAllocationRequest{
			VoucherID: uuid.MustParse(p.VoucherID),
			Amount:    decimal.NewFromFloat(p.Amount),
		})
	}

	result, err := h.allocationService.ManualAllocate(c.Request.Context(), settlementapp.ManualAllocateRequest{
		TenantID:      tenantID,
		TransactionID: transactionID,
		Pairings:      pairings,
		ActorID:       getActorID(c),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Delete godoc
// @Summary      Reverse an allocation and restore balances
// @Tags         allocations
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Allocation ID" format(uuid)
// @Param        request body DeleteAllocationRequest false "Reversal reason"
// @Success      204 "No Content"
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/allocations/{id} [delete]
func (h *AllocationHandler) Delete(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	allocationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid allocation ID format")
		return
	}

	var req DeleteAllocationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	err = h.allocationService.DeleteAllocation(c.Request.Context(), settlementapp.DeleteAllocationRequest{
		TenantID:     tenantID,
		AllocationID: allocationID,
		Reason:       req.Reason,
		ActorID:      getActorID(c),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// GetByID godoc
// @Summary      Get allocation by ID
// @Tags         allocations
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Allocation ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/allocations/{id} [get]
func (h *AllocationHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	allocationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid allocation ID format")
		return
	}

	allocation, err := h.allocationService.GetAllocation(c.Request.Context(), tenantID, allocationID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, allocation)
}

// List godoc
// @Summary      List allocations
// @Tags         allocations
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Success      200 {object} dto.Response
// @Router       /settlement/allocations [get]
func (h *AllocationHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req ListAllocationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	filter := settlement.AllocationFilter{}
	filter.Page = req.Page
	filter.PageSize = req.PageSize

	if req.TransactionID != "" {
		id := uuid.MustParse(req.TransactionID)
		filter.TransactionID = &id
	}
	if req.VoucherID != "" {
		id := uuid.MustParse(req.VoucherID)
		filter.VoucherID = &id
	}
	if req.Status != "" {
		status := settlement.AllocationStatus(req.Status)
		filter.Status = &status
	}
	if req.Method != "" {
		method := settlement.AllocationMethod(req.Method)
		filter.Method = &method
	}

	result, err := h.allocationService.ListAllocations(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}
