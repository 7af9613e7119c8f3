package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/settleflow/backend/internal/domain/shared"
)

// NettingDraftedEvent fires when a balanced netting draft is created
type NettingDraftedEvent struct {
	shared.BaseDomainEvent
	CounterpartyID string          `json:"counterparty_id"`
	NettingDate    time.Time       `json:"netting_date"`
	NettedAmount   decimal.Decimal `json:"netted_amount"`
	LineCount      int             `json:"line_count"`
}

// NewNettingDraftedEvent creates a netting drafted event
func NewNettingDraftedEvent(n *NettingRecord) *NettingDraftedEvent {
	return &NettingDraftedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("NettingDrafted", "NettingRecord", n.ID, n.TenantID),
		CounterpartyID:  n.CounterpartyID.String(),
		NettingDate:     n.NettingDate,
		NettedAmount:    n.NettedAmount,
		LineCount:       len(n.Lines),
	}
}

// NettingConfirmedEvent fires when a draft is confirmed and balances move
type NettingConfirmedEvent struct {
	shared.BaseDomainEvent
	CounterpartyID          string          `json:"counterparty_id"`
	NettedAmount            decimal.Decimal `json:"netted_amount"`
	DepositTransactionID    string          `json:"deposit_transaction_id"`
	WithdrawalTransactionID string          `json:"withdrawal_transaction_id"`
}

// NewNettingConfirmedEvent creates a netting confirmed event
func NewNettingConfirmedEvent(n *NettingRecord) *NettingConfirmedEvent {
	var depositID, withdrawalID string
	if n.DepositTransactionID != nil {
		depositID = n.DepositTransactionID.String()
	}
	if n.WithdrawalTransactionID != nil {
		withdrawalID = n.WithdrawalTransactionID.String()
	}
	return &NettingConfirmedEvent{
		BaseDomainEvent:         shared.NewBaseDomainEvent("NettingConfirmed", "NettingRecord", n.ID, n.TenantID),
		CounterpartyID:          n.CounterpartyID.String(),
		NettedAmount:            n.NettedAmount,
		DepositTransactionID:    depositID,
		WithdrawalTransactionID: withdrawalID,
	}
}

// BeforeState returns the netting status before confirmation
func (e *NettingConfirmedEvent) BeforeState() any {
	return NettingStatusDraft
}

// AfterState returns the netting status after confirmation
func (e *NettingConfirmedEvent) AfterState() any {
	return NettingStatusConfirmed
}

// NettingCancelledEvent fires when a draft or confirmed record is cancelled
type NettingCancelledEvent struct {
	shared.BaseDomainEvent
	CounterpartyID string          `json:"counterparty_id"`
	NettedAmount   decimal.Decimal `json:"netted_amount"`
	PreviousStatus NettingStatus   `json:"previous_status"`
}

// NewNettingCancelledEvent creates a netting cancelled event
func NewNettingCancelledEvent(n *NettingRecord, previous NettingStatus) *NettingCancelledEvent {
	return &NettingCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("NettingCancelled", "NettingRecord", n.ID, n.TenantID),
		CounterpartyID:  n.CounterpartyID.String(),
		NettedAmount:    n.NettedAmount,
		PreviousStatus:  previous,
	}
}

// BeforeState returns the netting status before cancellation
func (e *NettingCancelledEvent) BeforeState() any {
	return e.PreviousStatus
}

// AfterState returns the netting status after cancellation
func (e *NettingCancelledEvent) AfterState() any {
	return NettingStatusCancelled
}
