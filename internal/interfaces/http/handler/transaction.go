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

// TransactionHandler handles cash transaction API endpoints
type TransactionHandler struct {
	BaseHandler
	transactionService *settlementapp.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(transactionService *settlementapp.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

// CreateTransactionRequest represents a request to record a cash transaction
type CreateTransactionRequest struct {
	CounterpartyName string  `json:"counterparty_name" binding:"required,min=1,max=200"`
	Type             string  `json:"type" binding:"required,oneof=DEPOSIT WITHDRAWAL"`
	TransactionDate  string  `json:"transaction_date" binding:"required"`
	Amount           float64 `json:"amount" binding:"required,gt=0"`
	Source           string  `json:"source" binding:"omitempty,oneof=MANUAL BANK_IMPORT"`
	Remark           string  `json:"remark" binding:"max=500"`
}

// ListTransactionsRequest represents transaction list query parameters
type ListTransactionsRequest struct {
	dto.ListRequest
	CounterpartyID string `form:"counterparty_id" binding:"omitempty,uuid"`
	Type           string `form:"type" binding:"omitempty,oneof=DEPOSIT WITHDRAWAL"`
	Source         string `form:"source" binding:"omitempty,oneof=MANUAL BANK_IMPORT NETTING"`
	Moderation     string `form:"moderation" binding:"omitempty,oneof=NONE ON_HOLD HIDDEN CANCELLED"`
	Unresolved     *bool  `form:"unresolved"`
	DateFrom       string `form:"date_from"`
	DateTo         string `form:"date_to"`
}

// Create godoc
// @Summary      Record a cash transaction
// @Description  Records a deposit or withdrawal. The counterparty name is
// @Description  resolved against canonical names and aliases; unresolved
// @Description  names are kept for later alias mapping.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body CreateTransactionRequest true "Transaction request"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/transactions [post]
func (h *TransactionHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	txDate, err := time.Parse("2006-01-02", req.TransactionDate)
	if err != nil {
		h.BadRequest(c, "transaction_date must be in YYYY-MM-DD format")
		return
	}

	source := settlement.SourceManual
	if req.Source != "" {
		source = settlement.TransactionSource(req.Source)
	}

	tx, err := h.transactionService.CreateTransaction(c.Request.Context(), settlementapp.CreateTransactionRequest{
		TenantID:         tenantID,
		CounterpartyName: req.CounterpartyName,
		Type:             settlement.TransactionType(req.Type),
		TransactionDate:  txDate,
		Amount:           decimal.NewFromFloat(req.Amount),
		Source:           source,
		Remark:           req.Remark,
		ActorID:          getActorID(c),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, tx)
}

// GetByID godoc
// @Summary      Get cash transaction by ID
// @Tags         transactions
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Transaction ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /settlement/transactions/{id} [get]
func (h *TransactionHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	txID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID format")
		return
	}

	tx, err := h.transactionService.GetTransaction(c.Request.Context(), tenantID, txID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, tx)
}

// List godoc
// @Summary      List cash transactions
// @Tags         transactions
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Success      200 {object} dto.Response
// @Router       /settlement/transactions [get]
func (h *TransactionHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req ListTransactionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	filter := settlement.TransactionFilter{}
	filter.Page = req.Page
	filter.PageSize = req.PageSize
	filter.Search = req.Search
	filter.Unresolved = req.Unresolved

	if req.CounterpartyID != "" {
		id := uuid.MustParse(req.CounterpartyID)
		filter.CounterpartyID = &id
	}
	if req.Type != "" {
		txType := settlement.TransactionType(req.Type)
		filter.Type = &txType
	}
	if req.Source != "" {
		source := settlement.TransactionSource(req.Source)
		filter.Source = &source
	}
	if req.Moderation != "" {
		state := settlement.ModerationState(req.Moderation)
		filter.Moderation = &state
	}
	if req.DateFrom != "" {
		from, err := time.Parse("2006-01-02", req.DateFrom)
		if err != nil {
			h.BadRequest(c, "date_from must be in YYYY-MM-DD format")
			return
		}
		filter.DateFrom = &from
	}
	if req.DateTo != "" {
		to, err := time.Parse("2006-01-02", req.DateTo)
		if err != nil {
			h.BadRequest(c, "date_to must be in YYYY-MM-DD format")
			return
		}
		filter.DateTo = &to
	}

	result, err := h.transactionService.ListTransactions(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// SetModeration godoc
// @Summary      Set transaction moderation state
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Transaction ID" format(uuid)
// @Param        request body SetModerationRequest true "Moderation state"
// @Success      200 {object} dto.Response
// @Router       /settlement/transactions/{id}/moderation [put]
func (h *TransactionHandler) SetModeration(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	txID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID format")
		return
	}

	var req SetModerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	tx, err := h.transactionService.SetModeration(c.Request.Context(), tenantID, txID,
		settlement.ModerationState(req.State), getActorID(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, tx)
}
