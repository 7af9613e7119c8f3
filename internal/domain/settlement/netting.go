package settlement

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/settleflow/backend/internal/domain/shared"
)

// NettingStatus represents the lifecycle of a netting record
type NettingStatus string

const (
	NettingStatusDraft     NettingStatus = "DRAFT"
	NettingStatusConfirmed NettingStatus = "CONFIRMED"
	NettingStatusCancelled NettingStatus = "CANCELLED"
)

// IsValid checks if the netting status is valid
func (s NettingStatus) IsValid() bool {
	switch s {
	case NettingStatusDraft, NettingStatusConfirmed, NettingStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s NettingStatus) String() string {
	return string(s)
}

// NettingLine is a voucher participating in a netting record, captured with
// the amount taken from it and its version at draft time for stale detection.
type NettingLine struct {
	VoucherID      uuid.UUID       `json:"voucher_id"`
	VoucherNumber  string          `json:"voucher_number"`
	Side           VoucherSide     `json:"side"`
	Amount         decimal.Decimal `json:"amount"`
	VoucherVersion int             `json:"voucher_version"`
}

// NettingLines is stored as JSONB
type NettingLines []NettingLine

// Value implements driver.Valuer for JSONB storage
func (l NettingLines) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]NettingLine{})
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB retrieval
func (l *NettingLines) Scan(value interface{}) error {
	if value == nil {
		*l = NettingLines{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("failed to scan NettingLines: unsupported type")
		}
	}
	return json.Unmarshal(bytes, l)
}

// NettingRecord offsets a counterparty's sales vouchers against its purchase
// vouchers without cash movement. Invariant: sales total equals purchase
// total, always.
type NettingRecord struct {
	shared.TenantAggregateRoot
	CounterpartyID          uuid.UUID     `json:"counterparty_id"`
	CounterpartyName        string        `json:"counterparty_name"`
	NettingDate             time.Time     `json:"netting_date"`
	Status                  NettingStatus `json:"status"`
	Lines                   NettingLines  `json:"lines" gorm:"type:jsonb"`
	NettedAmount            decimal.Decimal `json:"netted_amount"`
	DepositTransactionID    *uuid.UUID    `json:"deposit_transaction_id"`
	WithdrawalTransactionID *uuid.UUID    `json:"withdrawal_transaction_id"`
	ConfirmedAt             *time.Time    `json:"confirmed_at"`
	CancelledAt             *time.Time    `json:"cancelled_at"`
	Remark                  string        `json:"remark"`
}

// NewNettingDraft creates a draft netting record. The line amounts on each
// side must sum to the same total or the draft is rejected.
func NewNettingDraft(
	tenantID uuid.UUID,
	counterpartyID uuid.UUID,
	counterpartyName string,
	nettingDate time.Time,
	lines NettingLines,
	remark string,
) (*NettingRecord, error) {
	if counterpartyID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "Counterparty ID cannot be empty")
	}
	if nettingDate.IsZero() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Netting date cannot be empty")
	}
	if len(lines) < 2 {
		return nil, shared.NewDomainError(shared.CodeValidation, "Netting requires at least one voucher on each side")
	}

	salesTotal := decimal.Zero
	purchaseTotal := decimal.Zero
	seen := make(map[uuid.UUID]bool, len(lines))
	for _, line := range lines {
		if line.Amount.LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewDomainError(shared.CodeValidation,
				fmt.Sprintf("Netting amount for voucher %s must be positive", line.VoucherNumber))
		}
		if seen[line.VoucherID] {
			return nil, shared.NewDomainError(shared.CodeValidation,
				fmt.Sprintf("Voucher %s appears more than once in the netting", line.VoucherNumber))
		}
		seen[line.VoucherID] = true

		switch line.Side {
		case SideSales:
			salesTotal = salesTotal.Add(line.Amount)
		case SidePurchase:
			purchaseTotal = purchaseTotal.Add(line.Amount)
		default:
			return nil, shared.NewDomainError(shared.CodeValidation,
				fmt.Sprintf("Voucher %s has an invalid side", line.VoucherNumber))
		}
	}

	if salesTotal.IsZero() || purchaseTotal.IsZero() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Netting requires vouchers on both sides")
	}
	if !salesTotal.Equal(purchaseTotal) {
		return nil, shared.NewDomainError(shared.CodeUnbalancedNetting,
			fmt.Sprintf("Netting is unbalanced: sales %s, purchases %s", salesTotal, purchaseTotal))
	}

	record := &NettingRecord{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CounterpartyID:      counterpartyID,
		CounterpartyName:    counterpartyName,
		NettingDate:         nettingDate,
		Status:              NettingStatusDraft,
		Lines:               lines,
		NettedAmount:        salesTotal,
		Remark:              remark,
	}

	record.AddDomainEvent(NewNettingDraftedEvent(record))

	return record, nil
}

// SalesLines returns the sales-side lines
func (n *NettingRecord) SalesLines() NettingLines {
	return n.linesBySide(SideSales)
}

// PurchaseLines returns the purchase-side lines
func (n *NettingRecord) PurchaseLines() NettingLines {
	return n.linesBySide(SidePurchase)
}

func (n *NettingRecord) linesBySide(side VoucherSide) NettingLines {
	out := make(NettingLines, 0, len(n.Lines))
	for _, line := range n.Lines {
		if line.Side == side {
			out = append(out, line)
		}
	}
	return out
}

// SalesTotal returns the summed sales-side amount
func (n *NettingRecord) SalesTotal() decimal.Decimal {
	return n.totalBySide(SideSales)
}

// PurchaseTotal returns the summed purchase-side amount
func (n *NettingRecord) PurchaseTotal() decimal.Decimal {
	return n.totalBySide(SidePurchase)
}

func (n *NettingRecord) totalBySide(side VoucherSide) decimal.Decimal {
	total := decimal.Zero
	for _, line := range n.Lines {
		if line.Side == side {
			total = total.Add(line.Amount)
		}
	}
	return total
}

// IsDraft returns true while the record has not been confirmed or cancelled
func (n *NettingRecord) IsDraft() bool {
	return n.Status == NettingStatusDraft
}

// MarkConfirmed transitions the draft to confirmed, recording the two
// synthetic transactions created by the confirmation.
func (n *NettingRecord) MarkConfirmed(depositTxID, withdrawalTxID uuid.UUID) error {
	if n.Status != NettingStatusDraft {
		return shared.NewDomainError(shared.CodeIllegalTransition,
			fmt.Sprintf("Netting %s is %s, only drafts can be confirmed", n.ID, n.Status))
	}
	if depositTxID == uuid.Nil || withdrawalTxID == uuid.Nil {
		return shared.NewDomainError(shared.CodeValidation, "Confirmation requires both synthetic transaction IDs")
	}

	now := time.Now()
	n.Status = NettingStatusConfirmed
	n.DepositTransactionID = &depositTxID
	n.WithdrawalTransactionID = &withdrawalTxID
	n.ConfirmedAt = &now
	n.UpdatedAt = now
	n.IncrementVersion()

	n.AddDomainEvent(NewNettingConfirmedEvent(n))

	return nil
}

// MarkCancelled transitions a draft or confirmed record to cancelled. The
// application layer reverses the confirmed side effects before calling this.
func (n *NettingRecord) MarkCancelled(reason string) error {
	if n.Status == NettingStatusCancelled {
		return shared.NewDomainError(shared.CodeIllegalTransition,
			fmt.Sprintf("Netting %s is already cancelled", n.ID))
	}

	now := time.Now()
	previous := n.Status
	n.Status = NettingStatusCancelled
	n.CancelledAt = &now
	if reason != "" {
		n.Remark = reason
	}
	n.UpdatedAt = now
	n.IncrementVersion()

	n.AddDomainEvent(NewNettingCancelledEvent(n, previous))

	return nil
}
