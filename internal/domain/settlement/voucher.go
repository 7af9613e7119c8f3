package settlement

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/settleflow/backend/internal/domain/shared"
	"github.com/settleflow/backend/internal/domain/shared/valueobject"
)

// VoucherSide distinguishes receivables from payables
type VoucherSide string

const (
	SideSales    VoucherSide = "SALES"    // AR: counterparty owes the business
	SidePurchase VoucherSide = "PURCHASE" // AP: the business owes the counterparty
)

// IsValid checks if the side is valid
func (s VoucherSide) IsValid() bool {
	return s == SideSales || s == SidePurchase
}

// String returns the string representation
func (s VoucherSide) String() string {
	return string(s)
}

// SettlementStatus is the derived settlement progress of a voucher
type SettlementStatus string

const (
	SettlementStatusOpen    SettlementStatus = "OPEN"    // Nothing allocated yet
	SettlementStatusPartial SettlementStatus = "PARTIAL" // 0 < allocated < total
	SettlementStatusSettled SettlementStatus = "SETTLED" // Fully allocated
)

// Voucher represents a sales or purchase voucher aggregate root.
// Its balance is always derived: balance = total_amount - allocated_amount,
// with 0 <= balance <= total_amount as a hard invariant.
type Voucher struct {
	shared.TenantAggregateRoot
	CounterpartyID   uuid.UUID       `json:"counterparty_id"`
	CounterpartyName string          `json:"counterparty_name"` // Denormalized for display
	Side             VoucherSide     `json:"side"`
	TradeDate        time.Time       `json:"trade_date"`
	VoucherNumber    string          `json:"voucher_number"` // Unique per tenant and side
	TotalAmount      decimal.Decimal `json:"total_amount"`
	AllocatedAmount  decimal.Decimal `json:"allocated_amount"`
	Moderation       ModerationState `json:"moderation"`
	Remark           string          `json:"remark"`
}

// NewVoucher creates a new voucher
func NewVoucher(
	tenantID uuid.UUID,
	counterpartyID uuid.UUID,
	counterpartyName string,
	side VoucherSide,
	tradeDate time.Time,
	voucherNumber string,
	totalAmount valueobject.Money,
) (*Voucher, error) {
	if counterpartyID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "Counterparty ID cannot be empty")
	}
	if counterpartyName == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Counterparty name cannot be empty")
	}
	if !side.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Voucher side is not valid")
	}
	if tradeDate.IsZero() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Trade date is required")
	}
	if voucherNumber == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Voucher number cannot be empty")
	}
	if len(voucherNumber) > 50 {
		return nil, shared.NewDomainError(shared.CodeValidation, "Voucher number cannot exceed 50 characters")
	}
	if totalAmount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.CodeValidation, "Total amount must be positive")
	}

	v := &Voucher{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CounterpartyID:      counterpartyID,
		CounterpartyName:    counterpartyName,
		Side:                side,
		TradeDate:           tradeDate,
		VoucherNumber:       voucherNumber,
		TotalAmount:         totalAmount.Amount(),
		AllocatedAmount:     decimal.Zero,
		Moderation:          ModerationNone,
	}

	v.AddDomainEvent(NewVoucherCreatedEvent(v))

	return v, nil
}

// Balance returns the outstanding amount still open for allocation
func (v *Voucher) Balance() decimal.Decimal {
	return v.TotalAmount.Sub(v.AllocatedAmount)
}

// Status derives the settlement status from the allocated amount
func (v *Voucher) Status() SettlementStatus {
	switch {
	case v.AllocatedAmount.IsZero():
		return SettlementStatusOpen
	case v.AllocatedAmount.LessThan(v.TotalAmount):
		return SettlementStatusPartial
	default:
		return SettlementStatusSettled
	}
}

// IsOpen returns true if the voucher still carries an outstanding balance
func (v *Voucher) IsOpen() bool {
	return v.Balance().GreaterThan(decimal.Zero)
}

// CanMutate returns true if allocation changes are permitted
func (v *Voucher) CanMutate() bool {
	return !v.Moderation.BlocksMutation()
}

// ApplyAllocation increases the allocated amount. The caller links the
// matching Allocation record; this method only guards the balance invariant.
func (v *Voucher) ApplyAllocation(amount valueobject.Money) error {
	if !v.CanMutate() {
		return shared.NewDomainError(shared.CodeModerationLocked,
			fmt.Sprintf("Voucher %s is %s and cannot be mutated", v.VoucherNumber, v.Moderation))
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(shared.CodeValidation, "Allocation amount must be positive")
	}
	if amount.Amount().GreaterThan(v.Balance()) {
		return shared.NewDomainError(shared.CodeInsufficientBalance,
			fmt.Sprintf("Allocation amount %s exceeds voucher %s balance %s",
				amount.Amount(), v.VoucherNumber, v.Balance()))
	}

	v.AllocatedAmount = v.AllocatedAmount.Add(amount.Amount())
	v.UpdatedAt = time.Now()
	v.IncrementVersion()

	v.AddDomainEvent(NewVoucherAllocationAppliedEvent(v, amount.Amount()))

	return nil
}

// ReverseAllocation decreases the allocated amount when an allocation is reversed
func (v *Voucher) ReverseAllocation(amount valueobject.Money) error {
	if !v.CanMutate() {
		return shared.NewDomainError(shared.CodeModerationLocked,
			fmt.Sprintf("Voucher %s is %s and cannot be mutated", v.VoucherNumber, v.Moderation))
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(shared.CodeValidation, "Reversal amount must be positive")
	}
	if amount.Amount().GreaterThan(v.AllocatedAmount) {
		return shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("Reversal amount %s exceeds voucher %s allocated amount %s",
				amount.Amount(), v.VoucherNumber, v.AllocatedAmount))
	}

	v.AllocatedAmount = v.AllocatedAmount.Sub(amount.Amount())
	v.UpdatedAt = time.Now()
	v.IncrementVersion()

	v.AddDomainEvent(NewVoucherAllocationReversedEvent(v, amount.Amount()))

	return nil
}

// VoucherRevision is the set of voucher fields an approved change request may rewrite
type VoucherRevision struct {
	CounterpartyID   uuid.UUID       `json:"counterparty_id"`
	CounterpartyName string          `json:"counterparty_name"`
	Side             VoucherSide     `json:"side"`
	TradeDate        time.Time       `json:"trade_date"`
	VoucherNumber    string          `json:"voucher_number"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Remark           string          `json:"remark"`
}

// SnapshotRevision captures the voucher's current revisable fields
func (v *Voucher) SnapshotRevision() VoucherRevision {
	return VoucherRevision{
		CounterpartyID:   v.CounterpartyID,
		CounterpartyName: v.CounterpartyName,
		Side:             v.Side,
		TradeDate:        v.TradeDate,
		VoucherNumber:    v.VoucherNumber,
		TotalAmount:      v.TotalAmount,
		Remark:           v.Remark,
	}
}

// ApplyRevision rewrites the voucher fields from an approved change request.
// A revision that would push the total below the already allocated amount is
// rejected: existing allocations must be removed first.
func (v *Voucher) ApplyRevision(rev VoucherRevision) error {
	if !rev.Side.IsValid() {
		return shared.NewDomainError(shared.CodeValidation, "Voucher side is not valid")
	}
	if rev.VoucherNumber == "" {
		return shared.NewDomainError(shared.CodeValidation, "Voucher number cannot be empty")
	}
	if rev.TotalAmount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(shared.CodeValidation, "Total amount must be positive")
	}
	if rev.TotalAmount.LessThan(v.AllocatedAmount) {
		return shared.NewDomainError(shared.CodeAllocationConflict,
			fmt.Sprintf("New total amount %s is below allocated amount %s on voucher %s",
				rev.TotalAmount, v.AllocatedAmount, v.VoucherNumber))
	}

	before := v.SnapshotRevision()
	v.CounterpartyID = rev.CounterpartyID
	v.CounterpartyName = rev.CounterpartyName
	v.Side = rev.Side
	v.TradeDate = rev.TradeDate
	v.VoucherNumber = rev.VoucherNumber
	v.TotalAmount = rev.TotalAmount
	v.Remark = rev.Remark
	v.UpdatedAt = time.Now()
	v.IncrementVersion()

	v.AddDomainEvent(NewVoucherRevisedEvent(v, before, rev))

	return nil
}

// SetModeration applies an externally decided moderation state
func (v *Voucher) SetModeration(state ModerationState) error {
	if !state.IsValid() {
		return shared.NewDomainError(shared.CodeValidation, "Moderation state is not valid")
	}

	v.Moderation = state
	v.UpdatedAt = time.Now()
	v.IncrementVersion()

	return nil
}

// Helper methods

// GetTotalAmountMoney returns total amount as Money
func (v *Voucher) GetTotalAmountMoney() valueobject.Money {
	return valueobject.NewMoneyCNY(v.TotalAmount)
}

// GetBalanceMoney returns the outstanding balance as Money
func (v *Voucher) GetBalanceMoney() valueobject.Money {
	return valueobject.NewMoneyCNY(v.Balance())
}
