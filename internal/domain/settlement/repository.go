package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/settleflow/backend/internal/domain/shared"
)

// VoucherFilter narrows voucher listings
type VoucherFilter struct {
	shared.Filter
	CounterpartyID *uuid.UUID
	Side           *VoucherSide
	Status         *SettlementStatus
	Moderation     *ModerationState
	TradeDateFrom  *time.Time
	TradeDateTo    *time.Time
}

// VoucherRepository persists voucher aggregates
type VoucherRepository interface {
	// FindByID finds a voucher by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Voucher, error)
	// FindByIDForTenant finds a voucher scoped to a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Voucher, error)
	// FindByIDsForTenant finds multiple vouchers scoped to a tenant
	FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*Voucher, error)
	// FindByNumberForTenant finds a voucher by its number
	FindByNumberForTenant(ctx context.Context, tenantID uuid.UUID, number string) (*Voucher, error)
	// FindOpenByCounterpartyAndSide returns open, unmoderated vouchers ordered
	// by trade date ascending then voucher number ascending
	FindOpenByCounterpartyAndSide(ctx context.Context, tenantID, counterpartyID uuid.UUID, side VoucherSide) ([]*Voucher, error)
	// FindAllForTenant lists vouchers matching the filter
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter VoucherFilter) ([]*Voucher, error)
	// CountForTenant counts vouchers matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter VoucherFilter) (int64, error)
	// Save persists a voucher
	Save(ctx context.Context, voucher *Voucher) error
	// SaveWithLock persists a voucher with optimistic locking
	SaveWithLock(ctx context.Context, voucher *Voucher) error
	// Delete removes a voucher
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// TransactionFilter narrows cash transaction listings
type TransactionFilter struct {
	shared.Filter
	CounterpartyID *uuid.UUID
	Type           *TransactionType
	Source         *TransactionSource
	Moderation     *ModerationState
	Unresolved     *bool
	DateFrom       *time.Time
	DateTo         *time.Time
}

// UnmatchedName is a projection over unresolved transactions grouped by the
// raw counterparty name from ingestion.
type UnmatchedName struct {
	RawName     string    `json:"raw_name"`
	Occurrences int64     `json:"occurrences"`
	FirstSeen   time.Time `json:"first_seen"`
}

// CashTransactionRepository persists cash transaction aggregates
type CashTransactionRepository interface {
	// FindByID finds a transaction by ID
	FindByID(ctx context.Context, id uuid.UUID) (*CashTransaction, error)
	// FindByIDForTenant finds a transaction scoped to a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*CashTransaction, error)
	// FindAllForTenant lists transactions matching the filter
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter TransactionFilter) ([]*CashTransaction, error)
	// CountForTenant counts transactions matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter TransactionFilter) (int64, error)
	// ListUnmatchedNames groups unresolved transactions by raw name
	ListUnmatchedNames(ctx context.Context, tenantID uuid.UUID) ([]UnmatchedName, error)
	// FindUnresolvedByRawName returns unresolved transactions carrying the raw name
	FindUnresolvedByRawName(ctx context.Context, tenantID uuid.UUID, rawName string) ([]*CashTransaction, error)
	// Save persists a transaction
	Save(ctx context.Context, tx *CashTransaction) error
	// SaveWithLock persists a transaction with optimistic locking
	SaveWithLock(ctx context.Context, tx *CashTransaction) error
}

// AllocationFilter narrows allocation listings
type AllocationFilter struct {
	shared.Filter
	TransactionID *uuid.UUID
	VoucherID     *uuid.UUID
	Status        *AllocationStatus
	Method        *AllocationMethod
}

// AllocationRepository persists allocation records
type AllocationRepository interface {
	// FindByID finds an allocation by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Allocation, error)
	// FindByIDForTenant finds an allocation scoped to a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Allocation, error)
	// FindActiveByTransaction returns active allocations for a transaction
	FindActiveByTransaction(ctx context.Context, tenantID, transactionID uuid.UUID) ([]*Allocation, error)
	// FindActiveByVoucher returns active allocations for a voucher
	FindActiveByVoucher(ctx context.Context, tenantID, voucherID uuid.UUID) ([]*Allocation, error)
	// FindAllForTenant lists allocations matching the filter
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter AllocationFilter) ([]*Allocation, error)
	// CountForTenant counts allocations matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter AllocationFilter) (int64, error)
	// Save persists an allocation
	Save(ctx context.Context, alloc *Allocation) error
	// SaveWithLock persists an allocation with optimistic locking
	SaveWithLock(ctx context.Context, alloc *Allocation) error
}

// NettingFilter narrows netting listings
type NettingFilter struct {
	shared.Filter
	CounterpartyID *uuid.UUID
	Status         *NettingStatus
}

// NettingRepository persists netting records
type NettingRepository interface {
	// FindByID finds a netting record by ID
	FindByID(ctx context.Context, id uuid.UUID) (*NettingRecord, error)
	// FindByIDForTenant finds a netting record scoped to a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*NettingRecord, error)
	// FindAllForTenant lists netting records matching the filter
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter NettingFilter) ([]*NettingRecord, error)
	// CountForTenant counts netting records matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter NettingFilter) (int64, error)
	// Save persists a netting record
	Save(ctx context.Context, record *NettingRecord) error
	// SaveWithLock persists a netting record with optimistic locking
	SaveWithLock(ctx context.Context, record *NettingRecord) error
}

// ChangeRequestFilter narrows change request listings
type ChangeRequestFilter struct {
	shared.Filter
	VoucherID *uuid.UUID
	Status    *ChangeRequestStatus
}

// ChangeRequestRepository persists voucher change requests
type ChangeRequestRepository interface {
	// FindByID finds a change request by ID
	FindByID(ctx context.Context, id uuid.UUID) (*VoucherChangeRequest, error)
	// FindByIDForTenant finds a change request scoped to a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*VoucherChangeRequest, error)
	// FindPendingByVoucher returns pending requests against a voucher
	FindPendingByVoucher(ctx context.Context, tenantID, voucherID uuid.UUID) ([]*VoucherChangeRequest, error)
	// FindAllForTenant lists change requests matching the filter
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ChangeRequestFilter) ([]*VoucherChangeRequest, error)
	// CountForTenant counts change requests matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter ChangeRequestFilter) (int64, error)
	// Save persists a change request
	Save(ctx context.Context, req *VoucherChangeRequest) error
	// SaveWithLock persists a change request with optimistic locking
	SaveWithLock(ctx context.Context, req *VoucherChangeRequest) error
}
