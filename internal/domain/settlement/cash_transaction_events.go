package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/settleflow/backend/internal/domain/shared"
)

// CashTransactionCreatedEvent fires when a cash transaction is recorded
type CashTransactionCreatedEvent struct {
	shared.BaseDomainEvent
	Type     TransactionType   `json:"type"`
	Amount   decimal.Decimal   `json:"amount"`
	Source   TransactionSource `json:"source"`
	RawName  string            `json:"raw_name"`
	Resolved bool              `json:"resolved"`
}

// NewCashTransactionCreatedEvent creates a transaction created event
func NewCashTransactionCreatedEvent(tx *CashTransaction) *CashTransactionCreatedEvent {
	return &CashTransactionCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CashTransactionCreated", "CashTransaction", tx.ID, tx.TenantID),
		Type:            tx.Type,
		Amount:          tx.Amount,
		Source:          tx.Source,
		RawName:         tx.RawName,
		Resolved:        tx.IsResolved(),
	}
}

// CashTransactionAllocationAppliedEvent fires when an allocation consumes part of a transaction
type CashTransactionAllocationAppliedEvent struct {
	shared.BaseDomainEvent
	Amount          decimal.Decimal `json:"amount"`
	AllocatedAfter  decimal.Decimal `json:"allocated_after"`
	UnallocatedLeft decimal.Decimal `json:"unallocated_left"`
}

// NewCashTransactionAllocationAppliedEvent creates an allocation applied event
func NewCashTransactionAllocationAppliedEvent(tx *CashTransaction, amount decimal.Decimal) *CashTransactionAllocationAppliedEvent {
	return &CashTransactionAllocationAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CashTransactionAllocationApplied", "CashTransaction", tx.ID, tx.TenantID),
		Amount:          amount,
		AllocatedAfter:  tx.AllocatedAmount,
		UnallocatedLeft: tx.Unallocated(),
	}
}

// BeforeState returns the allocated amount before the allocation
func (e *CashTransactionAllocationAppliedEvent) BeforeState() any {
	return e.AllocatedAfter.Sub(e.Amount)
}

// AfterState returns the allocated amount after the allocation
func (e *CashTransactionAllocationAppliedEvent) AfterState() any {
	return e.AllocatedAfter
}

// CashTransactionAllocationReversedEvent fires when a reversal frees part of a transaction
type CashTransactionAllocationReversedEvent struct {
	shared.BaseDomainEvent
	Amount          decimal.Decimal `json:"amount"`
	AllocatedAfter  decimal.Decimal `json:"allocated_after"`
	UnallocatedLeft decimal.Decimal `json:"unallocated_left"`
}

// NewCashTransactionAllocationReversedEvent creates an allocation reversed event
func NewCashTransactionAllocationReversedEvent(tx *CashTransaction, amount decimal.Decimal) *CashTransactionAllocationReversedEvent {
	return &CashTransactionAllocationReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CashTransactionAllocationReversed", "CashTransaction", tx.ID, tx.TenantID),
		Amount:          amount,
		AllocatedAfter:  tx.AllocatedAmount,
		UnallocatedLeft: tx.Unallocated(),
	}
}

// BeforeState returns the allocated amount before the reversal
func (e *CashTransactionAllocationReversedEvent) BeforeState() any {
	return e.AllocatedAfter.Add(e.Amount)
}

// AfterState returns the allocated amount after the reversal
func (e *CashTransactionAllocationReversedEvent) AfterState() any {
	return e.AllocatedAfter
}

// CashTransactionResolvedEvent fires when a raw counterparty name is bound to a counterparty
type CashTransactionResolvedEvent struct {
	shared.BaseDomainEvent
	CounterpartyID   string `json:"counterparty_id"`
	CounterpartyName string `json:"counterparty_name"`
	RawName          string `json:"raw_name"`
}

// NewCashTransactionResolvedEvent creates a transaction resolved event
func NewCashTransactionResolvedEvent(tx *CashTransaction) *CashTransactionResolvedEvent {
	var cpID string
	if tx.CounterpartyID != nil {
		cpID = tx.CounterpartyID.String()
	}
	return &CashTransactionResolvedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent("CashTransactionResolved", "CashTransaction", tx.ID, tx.TenantID),
		CounterpartyID:   cpID,
		CounterpartyName: tx.CounterpartyName,
		RawName:          tx.RawName,
	}
}
