package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/settleflow/backend/internal/domain/shared"
	"github.com/settleflow/backend/internal/domain/shared/valueobject"
)

// TransactionType distinguishes incoming from outgoing cash
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"    // Cash received, settles sales vouchers (AR)
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL" // Cash paid out, settles purchase vouchers (AP)
)

// IsValid checks if the transaction type is valid
func (t TransactionType) IsValid() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeWithdrawal
}

// String returns the string representation
func (t TransactionType) String() string {
	return string(t)
}

// TargetSide returns the voucher side this transaction type settles
func (t TransactionType) TargetSide() VoucherSide {
	if t == TransactionTypeDeposit {
		return SideSales
	}
	return SidePurchase
}

// TransactionSource records how the transaction entered the system
type TransactionSource string

const (
	SourceManual     TransactionSource = "MANUAL"
	SourceBankImport TransactionSource = "BANK_IMPORT"
	SourceNetting    TransactionSource = "NETTING" // Synthesized by netting confirm
)

// IsValid checks if the source is valid
func (s TransactionSource) IsValid() bool {
	switch s {
	case SourceManual, SourceBankImport, SourceNetting:
		return true
	}
	return false
}

// TransactionStatus is the derived allocation progress of a transaction.
// Moderation states override the derived value when set.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"   // Nothing allocated yet
	TransactionStatusPartial   TransactionStatus = "PARTIAL"   // 0 < allocated < amount
	TransactionStatusAllocated TransactionStatus = "ALLOCATED" // Fully allocated
	TransactionStatusOnHold    TransactionStatus = "ON_HOLD"
	TransactionStatusHidden    TransactionStatus = "HIDDEN"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// DeriveTransactionStatus is the single derivation function for transaction
// status: moderation overrides win, otherwise the status follows the
// unallocated remainder.
func DeriveTransactionStatus(amount, allocated decimal.Decimal, moderation ModerationState) TransactionStatus {
	switch moderation {
	case ModerationOnHold:
		return TransactionStatusOnHold
	case ModerationHidden:
		return TransactionStatusHidden
	case ModerationCancelled:
		return TransactionStatusCancelled
	}

	unallocated := amount.Sub(allocated)
	switch {
	case unallocated.Equal(amount):
		return TransactionStatusPending
	case unallocated.GreaterThan(decimal.Zero):
		return TransactionStatusPartial
	default:
		return TransactionStatusAllocated
	}
}

// CashTransaction represents a cash movement aggregate root. The counterparty
// is nullable until the free-text name from ingestion has been resolved.
// Invariant: 0 <= allocated_amount <= amount.
type CashTransaction struct {
	shared.TenantAggregateRoot
	CounterpartyID   *uuid.UUID        `json:"counterparty_id"`
	CounterpartyName string            `json:"counterparty_name"` // Denormalized once resolved
	RawName          string            `json:"raw_name"`          // Free-text name as ingested
	Type             TransactionType   `json:"type"`
	TransactionDate  time.Time         `json:"transaction_date"`
	Amount           decimal.Decimal   `json:"amount"`
	AllocatedAmount  decimal.Decimal   `json:"allocated_amount"`
	Source           TransactionSource `json:"source"`
	Moderation       ModerationState   `json:"moderation"`
	Remark           string            `json:"remark"`
}

// NewCashTransaction creates a new cash transaction. Pass a nil counterparty
// ID for transactions whose free-text name is not yet resolved.
func NewCashTransaction(
	tenantID uuid.UUID,
	counterpartyID *uuid.UUID,
	counterpartyName string,
	rawName string,
	txType TransactionType,
	transactionDate time.Time,
	amount valueobject.Money,
	source TransactionSource,
) (*CashTransaction, error) {
	if !txType.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Transaction type is not valid")
	}
	if transactionDate.IsZero() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Transaction date is required")
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.CodeValidation, "Amount must be positive")
	}
	if !source.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Transaction source is not valid")
	}
	if counterpartyID == nil && strings.TrimSpace(rawName) == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Unresolved transaction requires a raw counterparty name")
	}

	tx := &CashTransaction{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CounterpartyID:      counterpartyID,
		CounterpartyName:    counterpartyName,
		RawName:             strings.TrimSpace(rawName),
		Type:                txType,
		TransactionDate:     transactionDate,
		Amount:              amount.Amount(),
		AllocatedAmount:     decimal.Zero,
		Source:              source,
		Moderation:          ModerationNone,
	}

	tx.AddDomainEvent(NewCashTransactionCreatedEvent(tx))

	return tx, nil
}

// Unallocated returns the portion not yet matched to any voucher
func (tx *CashTransaction) Unallocated() decimal.Decimal {
	return tx.Amount.Sub(tx.AllocatedAmount)
}

// Status derives the current transaction status
func (tx *CashTransaction) Status() TransactionStatus {
	return DeriveTransactionStatus(tx.Amount, tx.AllocatedAmount, tx.Moderation)
}

// IsResolved returns true once the transaction is bound to a counterparty
func (tx *CashTransaction) IsResolved() bool {
	return tx.CounterpartyID != nil
}

// CanMutate returns true if allocation changes are permitted
func (tx *CashTransaction) CanMutate() bool {
	return !tx.Moderation.BlocksMutation()
}

// ApplyAllocation increases the allocated amount, guarding the invariant
// that allocations never exceed the transaction amount.
func (tx *CashTransaction) ApplyAllocation(amount valueobject.Money) error {
	if !tx.CanMutate() {
		return shared.NewDomainError(shared.CodeModerationLocked,
			fmt.Sprintf("Transaction %s is %s and cannot be mutated", tx.ID, tx.Moderation))
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(shared.CodeValidation, "Allocation amount must be positive")
	}
	if amount.Amount().GreaterThan(tx.Unallocated()) {
		return shared.NewDomainError(shared.CodeInsufficientBalance,
			fmt.Sprintf("Allocation amount %s exceeds transaction %s unallocated amount %s",
				amount.Amount(), tx.ID, tx.Unallocated()))
	}

	tx.AllocatedAmount = tx.AllocatedAmount.Add(amount.Amount())
	tx.UpdatedAt = time.Now()
	tx.IncrementVersion()

	tx.AddDomainEvent(NewCashTransactionAllocationAppliedEvent(tx, amount.Amount()))

	return nil
}

// ReverseAllocation decreases the allocated amount when an allocation is reversed
func (tx *CashTransaction) ReverseAllocation(amount valueobject.Money) error {
	if !tx.CanMutate() {
		return shared.NewDomainError(shared.CodeModerationLocked,
			fmt.Sprintf("Transaction %s is %s and cannot be mutated", tx.ID, tx.Moderation))
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(shared.CodeValidation, "Reversal amount must be positive")
	}
	if amount.Amount().GreaterThan(tx.AllocatedAmount) {
		return shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("Reversal amount %s exceeds transaction %s allocated amount %s",
				amount.Amount(), tx.ID, tx.AllocatedAmount))
	}

	tx.AllocatedAmount = tx.AllocatedAmount.Sub(amount.Amount())
	tx.UpdatedAt = time.Now()
	tx.IncrementVersion()

	tx.AddDomainEvent(NewCashTransactionAllocationReversedEvent(tx, amount.Amount()))

	return nil
}

// AssignCounterparty binds the transaction to a resolved counterparty.
// Re-assigning the same counterparty is a no-op; re-assigning a different one
// is only allowed while nothing has been allocated.
func (tx *CashTransaction) AssignCounterparty(counterpartyID uuid.UUID, counterpartyName string) error {
	if counterpartyID == uuid.Nil {
		return shared.NewDomainError(shared.CodeValidation, "Counterparty ID cannot be empty")
	}
	if tx.CounterpartyID != nil {
		if *tx.CounterpartyID == counterpartyID {
			return nil
		}
		if tx.AllocatedAmount.GreaterThan(decimal.Zero) {
			return shared.NewDomainError(shared.CodeIllegalTransition,
				fmt.Sprintf("Transaction %s already has allocations against counterparty %s", tx.ID, *tx.CounterpartyID))
		}
	}

	tx.CounterpartyID = &counterpartyID
	tx.CounterpartyName = counterpartyName
	tx.UpdatedAt = time.Now()
	tx.IncrementVersion()

	tx.AddDomainEvent(NewCashTransactionResolvedEvent(tx))

	return nil
}

// SetModeration applies an externally decided moderation state
func (tx *CashTransaction) SetModeration(state ModerationState) error {
	if !state.IsValid() {
		return shared.NewDomainError(shared.CodeValidation, "Moderation state is not valid")
	}

	tx.Moderation = state
	tx.UpdatedAt = time.Now()
	tx.IncrementVersion()

	return nil
}

// Helper methods

// GetAmountMoney returns the amount as Money
func (tx *CashTransaction) GetAmountMoney() valueobject.Money {
	return valueobject.NewMoneyCNY(tx.Amount)
}

// GetUnallocatedMoney returns the unallocated remainder as Money
func (tx *CashTransaction) GetUnallocatedMoney() valueobject.Money {
	return valueobject.NewMoneyCNY(tx.Unallocated())
}

// IsFullyAllocated returns true when nothing remains unallocated
func (tx *CashTransaction) IsFullyAllocated() bool {
	return tx.Unallocated().IsZero()
}
