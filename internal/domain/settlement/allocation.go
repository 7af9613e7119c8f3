package settlement

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/settleflow/backend/internal/domain/shared"
	"github.com/settleflow/backend/internal/domain/shared/valueobject"
)

// AllocationStatus represents the lifecycle of an allocation record
type AllocationStatus string

const (
	AllocationStatusActive   AllocationStatus = "ACTIVE"
	AllocationStatusReversed AllocationStatus = "REVERSED"
)

// AllocationMethod records how an allocation was produced
type AllocationMethod string

const (
	AllocationMethodAuto    AllocationMethod = "AUTO"
	AllocationMethodManual  AllocationMethod = "MANUAL"
	AllocationMethodNetting AllocationMethod = "NETTING"
)

// IsValid checks if the allocation method is valid
func (m AllocationMethod) IsValid() bool {
	switch m {
	case AllocationMethodAuto, AllocationMethodManual, AllocationMethodNetting:
		return true
	}
	return false
}

// Allocation links a cash transaction to a voucher for a specific amount.
// Deleting an allocation never removes the row: it flips to REVERSED so the
// audit trail stays intact.
type Allocation struct {
	shared.TenantAggregateRoot
	TransactionID  uuid.UUID        `json:"transaction_id"`
	VoucherID      uuid.UUID        `json:"voucher_id"`
	Amount         decimal.Decimal  `json:"amount"`
	Method         AllocationMethod `json:"method"`
	Status         AllocationStatus `json:"status"`
	ReversedAt     *time.Time       `json:"reversed_at"`
	ReversalReason string           `json:"reversal_reason"`
}

// NewAllocation creates an active allocation record
func NewAllocation(
	tenantID uuid.UUID,
	transactionID uuid.UUID,
	voucherID uuid.UUID,
	amount valueobject.Money,
	method AllocationMethod,
) (*Allocation, error) {
	if transactionID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "Transaction ID cannot be empty")
	}
	if voucherID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "Voucher ID cannot be empty")
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.CodeValidation, "Allocation amount must be positive")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Allocation method is not valid")
	}

	alloc := &Allocation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		TransactionID:       transactionID,
		VoucherID:           voucherID,
		Amount:              amount.Amount(),
		Method:              method,
		Status:              AllocationStatusActive,
	}

	alloc.AddDomainEvent(NewAllocationCreatedEvent(alloc))

	return alloc, nil
}

// IsActive returns true while the allocation still binds balances
func (a *Allocation) IsActive() bool {
	return a.Status == AllocationStatusActive
}

// Reverse marks the allocation as reversed. Reversing twice is an error.
func (a *Allocation) Reverse(reason string) error {
	if a.Status == AllocationStatusReversed {
		return shared.NewDomainError(shared.CodeIllegalTransition,
			fmt.Sprintf("Allocation %s is already reversed", a.ID))
	}

	now := time.Now()
	a.Status = AllocationStatusReversed
	a.ReversedAt = &now
	a.ReversalReason = reason
	a.UpdatedAt = now
	a.IncrementVersion()

	a.AddDomainEvent(NewAllocationReversedEvent(a))

	return nil
}

// GetAmountMoney returns the allocation amount as Money
func (a *Allocation) GetAmountMoney() valueobject.Money {
	return valueobject.NewMoneyCNY(a.Amount)
}

// AllocationCreatedEvent fires when an allocation record is created
type AllocationCreatedEvent struct {
	shared.BaseDomainEvent
	TransactionID string           `json:"transaction_id"`
	VoucherID     string           `json:"voucher_id"`
	Amount        decimal.Decimal  `json:"amount"`
	Method        AllocationMethod `json:"method"`
}

// NewAllocationCreatedEvent creates an allocation created event
func NewAllocationCreatedEvent(a *Allocation) *AllocationCreatedEvent {
	return &AllocationCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("AllocationCreated", "Allocation", a.ID, a.TenantID),
		TransactionID:   a.TransactionID.String(),
		VoucherID:       a.VoucherID.String(),
		Amount:          a.Amount,
		Method:          a.Method,
	}
}

// AllocationReversedEvent fires when an allocation is reversed
type AllocationReversedEvent struct {
	shared.BaseDomainEvent
	TransactionID string          `json:"transaction_id"`
	VoucherID     string          `json:"voucher_id"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
}

// NewAllocationReversedEvent creates an allocation reversed event
func NewAllocationReversedEvent(a *Allocation) *AllocationReversedEvent {
	return &AllocationReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("AllocationReversed", "Allocation", a.ID, a.TenantID),
		TransactionID:   a.TransactionID.String(),
		VoucherID:       a.VoucherID.String(),
		Amount:          a.Amount,
		Reason:          a.ReversalReason,
	}
}

// BeforeState returns the allocation status before the reversal
func (e *AllocationReversedEvent) BeforeState() any {
	return AllocationStatusActive
}

// AfterState returns the allocation status after the reversal
func (e *AllocationReversedEvent) AfterState() any {
	return AllocationStatusReversed
}
