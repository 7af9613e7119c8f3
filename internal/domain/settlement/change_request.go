package settlement

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/settleflow/backend/internal/domain/shared"
)

// ChangeRequestStatus represents the lifecycle of a voucher change request
type ChangeRequestStatus string

const (
	ChangeRequestStatusPending  ChangeRequestStatus = "PENDING"
	ChangeRequestStatusApproved ChangeRequestStatus = "APPROVED"
	ChangeRequestStatusRejected ChangeRequestStatus = "REJECTED"
)

// IsValid checks if the change request status is valid
func (s ChangeRequestStatus) IsValid() bool {
	switch s {
	case ChangeRequestStatusPending, ChangeRequestStatusApproved, ChangeRequestStatusRejected:
		return true
	}
	return false
}

// String returns the string representation
func (s ChangeRequestStatus) String() string {
	return string(s)
}

// RevisionSnapshot wraps VoucherRevision for JSONB storage
type RevisionSnapshot VoucherRevision

// Value implements driver.Valuer for JSONB storage
func (r RevisionSnapshot) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner for JSONB retrieval
func (r *RevisionSnapshot) Scan(value interface{}) error {
	if value == nil {
		*r = RevisionSnapshot{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("failed to scan RevisionSnapshot: unsupported type")
		}
	}
	return json.Unmarshal(bytes, r)
}

// FieldChange describes a single field differing between the old and new data
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// VoucherChangeRequest captures a proposed voucher edit awaiting review.
// The old and new snapshots are immutable once submitted.
type VoucherChangeRequest struct {
	shared.TenantAggregateRoot
	VoucherID      uuid.UUID           `json:"voucher_id"`
	VoucherVersion int                 `json:"voucher_version"` // Version the snapshot was taken from
	Status         ChangeRequestStatus `json:"status"`
	OldData        RevisionSnapshot    `json:"old_data" gorm:"type:jsonb"`
	NewData        RevisionSnapshot    `json:"new_data" gorm:"type:jsonb"`
	Reason         string              `json:"reason"`
	Requester      *uuid.UUID          `json:"requester"`
	Approver       *uuid.UUID          `json:"approver"`
	DecidedAt      *time.Time          `json:"decided_at"`
	DecisionNote   string              `json:"decision_note"`
}

// NewVoucherChangeRequest creates a pending change request. A request whose
// new data matches the current data field for field is rejected up front.
func NewVoucherChangeRequest(
	tenantID uuid.UUID,
	voucher *Voucher,
	newData VoucherRevision,
	reason string,
	requester *uuid.UUID,
) (*VoucherChangeRequest, error) {
	if voucher == nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "Voucher cannot be nil")
	}

	req := &VoucherChangeRequest{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		VoucherID:           voucher.ID,
		VoucherVersion:      voucher.Version,
		Status:              ChangeRequestStatusPending,
		OldData:             RevisionSnapshot(voucher.SnapshotRevision()),
		NewData:             RevisionSnapshot(newData),
		Reason:              reason,
		Requester:           requester,
	}

	if len(req.Diff()) == 0 {
		return nil, shared.NewDomainError(shared.CodeValidation, "Change request proposes no changes")
	}

	req.AddDomainEvent(NewChangeRequestSubmittedEvent(req))

	return req, nil
}

// Diff returns the fields that differ between the old and new snapshots
func (r *VoucherChangeRequest) Diff() []FieldChange {
	changes := make([]FieldChange, 0)
	oldData := VoucherRevision(r.OldData)
	newData := VoucherRevision(r.NewData)

	if oldData.CounterpartyID != newData.CounterpartyID {
		changes = append(changes, FieldChange{
			Field: "counterparty_id",
			Old:   oldData.CounterpartyID.String(),
			New:   newData.CounterpartyID.String(),
		})
	}
	if oldData.Side != newData.Side {
		changes = append(changes, FieldChange{
			Field: "side",
			Old:   oldData.Side.String(),
			New:   newData.Side.String(),
		})
	}
	if !oldData.TradeDate.Equal(newData.TradeDate) {
		changes = append(changes, FieldChange{
			Field: "trade_date",
			Old:   oldData.TradeDate.Format("2006-01-02"),
			New:   newData.TradeDate.Format("2006-01-02"),
		})
	}
	if oldData.VoucherNumber != newData.VoucherNumber {
		changes = append(changes, FieldChange{
			Field: "voucher_number",
			Old:   oldData.VoucherNumber,
			New:   newData.VoucherNumber,
		})
	}
	if !oldData.TotalAmount.Equal(newData.TotalAmount) {
		changes = append(changes, FieldChange{
			Field: "total_amount",
			Old:   oldData.TotalAmount.String(),
			New:   newData.TotalAmount.String(),
		})
	}
	if oldData.Remark != newData.Remark {
		changes = append(changes, FieldChange{
			Field: "remark",
			Old:   oldData.Remark,
			New:   newData.Remark,
		})
	}

	return changes
}

// IsPending returns true while awaiting a decision
func (r *VoucherChangeRequest) IsPending() bool {
	return r.Status == ChangeRequestStatusPending
}

// Approve marks the request approved. The revision is applied to the voucher
// by the application layer inside the same transaction.
func (r *VoucherChangeRequest) Approve(note string, approver *uuid.UUID) error {
	if r.Status != ChangeRequestStatusPending {
		return shared.NewDomainError(shared.CodeIllegalTransition,
			fmt.Sprintf("Change request %s is %s, only pending requests can be approved", r.ID, r.Status))
	}

	now := time.Now()
	r.Status = ChangeRequestStatusApproved
	r.Approver = approver
	r.DecidedAt = &now
	r.DecisionNote = note
	r.UpdatedAt = now
	r.IncrementVersion()

	r.AddDomainEvent(NewChangeRequestDecidedEvent(r))

	return nil
}

// Reject marks the request rejected without touching the voucher
func (r *VoucherChangeRequest) Reject(note string, approver *uuid.UUID) error {
	if r.Status != ChangeRequestStatusPending {
		return shared.NewDomainError(shared.CodeIllegalTransition,
			fmt.Sprintf("Change request %s is %s, only pending requests can be rejected", r.ID, r.Status))
	}

	now := time.Now()
	r.Status = ChangeRequestStatusRejected
	r.Approver = approver
	r.DecidedAt = &now
	r.DecisionNote = note
	r.UpdatedAt = now
	r.IncrementVersion()

	r.AddDomainEvent(NewChangeRequestDecidedEvent(r))

	return nil
}

// NewRevision returns the proposed revision
func (r *VoucherChangeRequest) NewRevision() VoucherRevision {
	return VoucherRevision(r.NewData)
}

// ChangeRequestSubmittedEvent fires when a change request enters review
type ChangeRequestSubmittedEvent struct {
	shared.BaseDomainEvent
	VoucherID string        `json:"voucher_id"`
	Changes   []FieldChange `json:"changes"`
	Reason    string        `json:"reason"`
}

// NewChangeRequestSubmittedEvent creates a change request submitted event
func NewChangeRequestSubmittedEvent(r *VoucherChangeRequest) *ChangeRequestSubmittedEvent {
	return &ChangeRequestSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ChangeRequestSubmitted", "VoucherChangeRequest", r.ID, r.TenantID),
		VoucherID:       r.VoucherID.String(),
		Changes:         r.Diff(),
		Reason:          r.Reason,
	}
}

// ChangeRequestDecidedEvent fires when a change request is approved or rejected
type ChangeRequestDecidedEvent struct {
	shared.BaseDomainEvent
	VoucherID string              `json:"voucher_id"`
	Status    ChangeRequestStatus `json:"status"`
	Note      string              `json:"note"`
}

// NewChangeRequestDecidedEvent creates a change request decided event
func NewChangeRequestDecidedEvent(r *VoucherChangeRequest) *ChangeRequestDecidedEvent {
	return &ChangeRequestDecidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ChangeRequestDecided", "VoucherChangeRequest", r.ID, r.TenantID),
		VoucherID:       r.VoucherID.String(),
		Status:          r.Status,
		Note:            r.DecisionNote,
	}
}

// BeforeState returns the request status before the decision
func (e *ChangeRequestDecidedEvent) BeforeState() any {
	return ChangeRequestStatusPending
}

// AfterState returns the request status after the decision
func (e *ChangeRequestDecidedEvent) AfterState() any {
	return e.Status
}
