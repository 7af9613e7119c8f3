package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/settleflow/backend/internal/domain/shared"
)

// VoucherCreatedEvent is raised when a new voucher is created
type VoucherCreatedEvent struct {
	shared.BaseDomainEvent
	VoucherID      uuid.UUID       `json:"voucher_id"`
	VoucherNumber  string          `json:"voucher_number"`
	CounterpartyID uuid.UUID       `json:"counterparty_id"`
	Side           VoucherSide     `json:"side"`
	TradeDate      time.Time       `json:"trade_date"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// EventType returns the event type name
func (e *VoucherCreatedEvent) EventType() string {
	return "VoucherCreated"
}

// NewVoucherCreatedEvent creates a new VoucherCreatedEvent
func NewVoucherCreatedEvent(v *Voucher) *VoucherCreatedEvent {
	return &VoucherCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("VoucherCreated", "Voucher", v.ID, v.TenantID),
		VoucherID:       v.ID,
		VoucherNumber:   v.VoucherNumber,
		CounterpartyID:  v.CounterpartyID,
		Side:            v.Side,
		TradeDate:       v.TradeDate,
		TotalAmount:     v.TotalAmount,
	}
}

// VoucherAllocationAppliedEvent is raised when allocation increases the voucher's allocated amount
type VoucherAllocationAppliedEvent struct {
	shared.BaseDomainEvent
	VoucherID       uuid.UUID       `json:"voucher_id"`
	VoucherNumber   string          `json:"voucher_number"`
	Amount          decimal.Decimal `json:"amount"`
	AllocatedBefore decimal.Decimal `json:"allocated_before"`
	AllocatedAfter  decimal.Decimal `json:"allocated_after"`
}

// EventType returns the event type name
func (e *VoucherAllocationAppliedEvent) EventType() string {
	return "VoucherAllocationApplied"
}

// NewVoucherAllocationAppliedEvent creates a new VoucherAllocationAppliedEvent
func NewVoucherAllocationAppliedEvent(v *Voucher, amount decimal.Decimal) *VoucherAllocationAppliedEvent {
	return &VoucherAllocationAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("VoucherAllocationApplied", "Voucher", v.ID, v.TenantID),
		VoucherID:       v.ID,
		VoucherNumber:   v.VoucherNumber,
		Amount:          amount,
		AllocatedBefore: v.AllocatedAmount.Sub(amount),
		AllocatedAfter:  v.AllocatedAmount,
	}
}

// BeforeState returns the allocated amount before the allocation
func (e *VoucherAllocationAppliedEvent) BeforeState() any {
	return e.AllocatedBefore
}

// AfterState returns the allocated amount after the allocation
func (e *VoucherAllocationAppliedEvent) AfterState() any {
	return e.AllocatedAfter
}

// VoucherAllocationReversedEvent is raised when a reversal decreases the voucher's allocated amount
type VoucherAllocationReversedEvent struct {
	shared.BaseDomainEvent
	VoucherID       uuid.UUID       `json:"voucher_id"`
	VoucherNumber   string          `json:"voucher_number"`
	Amount          decimal.Decimal `json:"amount"`
	AllocatedBefore decimal.Decimal `json:"allocated_before"`
	AllocatedAfter  decimal.Decimal `json:"allocated_after"`
}

// EventType returns the event type name
func (e *VoucherAllocationReversedEvent) EventType() string {
	return "VoucherAllocationReversed"
}

// NewVoucherAllocationReversedEvent creates a new VoucherAllocationReversedEvent
func NewVoucherAllocationReversedEvent(v *Voucher, amount decimal.Decimal) *VoucherAllocationReversedEvent {
	return &VoucherAllocationReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("VoucherAllocationReversed", "Voucher", v.ID, v.TenantID),
		VoucherID:       v.ID,
		VoucherNumber:   v.VoucherNumber,
		Amount:          amount,
		AllocatedBefore: v.AllocatedAmount.Add(amount),
		AllocatedAfter:  v.AllocatedAmount,
	}
}

// BeforeState returns the allocated amount before the reversal
func (e *VoucherAllocationReversedEvent) BeforeState() any {
	return e.AllocatedBefore
}

// AfterState returns the allocated amount after the reversal
func (e *VoucherAllocationReversedEvent) AfterState() any {
	return e.AllocatedAfter
}

// VoucherRevisedEvent is raised when an approved change request rewrites voucher fields
type VoucherRevisedEvent struct {
	shared.BaseDomainEvent
	VoucherID uuid.UUID       `json:"voucher_id"`
	Before    VoucherRevision `json:"before"`
	After     VoucherRevision `json:"after"`
}

// EventType returns the event type name
func (e *VoucherRevisedEvent) EventType() string {
	return "VoucherRevised"
}

// NewVoucherRevisedEvent creates a new VoucherRevisedEvent
func NewVoucherRevisedEvent(v *Voucher, before, after VoucherRevision) *VoucherRevisedEvent {
	return &VoucherRevisedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("VoucherRevised", "Voucher", v.ID, v.TenantID),
		VoucherID:       v.ID,
		Before:          before,
		After:           after,
	}
}

// BeforeState returns the voucher fields before the revision
func (e *VoucherRevisedEvent) BeforeState() any {
	return e.Before
}

// AfterState returns the voucher fields after the revision
func (e *VoucherRevisedEvent) AfterState() any {
	return e.After
}
