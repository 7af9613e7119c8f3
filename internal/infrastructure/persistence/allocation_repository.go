package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/settleflow/backend/internal/domain/settlement"
	"github.com/settleflow/backend/internal/domain/shared"
)

// GormAllocationRepository implements AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

func (r *GormAllocationRepository) conn(ctx context.Context) *gorm.DB {
	return dbFromContext(ctx, r.db)
}

// FindByID finds an allocation by ID
func (r *GormAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Allocation, error) {
	var alloc settlement.Allocation
	if err := r.conn(ctx).First(&alloc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &alloc, nil
}

// FindByIDForTenant finds an allocation by ID for a specific tenant
func (r *GormAllocationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*settlement.Allocation, error) {
	var alloc settlement.Allocation
	if err := r.conn(ctx).
		First(&alloc, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &alloc, nil
}

// FindActiveByTransaction returns active allocations for a transaction
func (r *GormAllocationRepository) FindActiveByTransaction(ctx context.Context, tenantID, transactionID uuid.UUID) ([]*settlement.Allocation, error) {
	var allocs []*settlement.Allocation
	if err := r.conn(ctx).
		Where("tenant_id = ? AND transaction_id = ? AND status = ?",
			tenantID, transactionID, settlement.AllocationStatusActive).
		Order("created_at ASC").
		Find(&allocs).Error; err != nil {
		return nil, err
	}
	return allocs, nil
}

// FindActiveByVoucher returns active allocations for a voucher
func (r *GormAllocationRepository) FindActiveByVoucher(ctx context.Context, tenantID, voucherID uuid.UUID) ([]*settlement.Allocation, error) {
	var allocs []*settlement.Allocation
	if err := r.conn(ctx).
		Where("tenant_id = ? AND voucher_id = ? AND status = ?",
			tenantID, voucherID, settlement.AllocationStatusActive).
		Order("created_at ASC").
		Find(&allocs).Error; err != nil {
		return nil, err
	}
	return allocs, nil
}

// FindAllForTenant finds all allocations for a tenant with filtering
func (r *GormAllocationRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter settlement.AllocationFilter) ([]*settlement.Allocation, error) {
	var allocs []*settlement.Allocation
	query := applyAllocationFilter(r.conn(ctx).Where("tenant_id = ?", tenantID), filter)

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	if err := query.Order("created_at DESC").Find(&allocs).Error; err != nil {
		return nil, err
	}
	return allocs, nil
}

// CountForTenant counts allocations for a tenant with filtering
func (r *GormAllocationRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter settlement.AllocationFilter) (int64, error) {
	var count int64
	query := applyAllocationFilter(
		r.conn(ctx).Model(&settlement.Allocation{}).Where("tenant_id = ?", tenantID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyAllocationFilter(query *gorm.DB, filter settlement.AllocationFilter) *gorm.DB {
	if filter.TransactionID != nil {
		query = query.Where("transaction_id = ?", *filter.TransactionID)
	}
	if filter.VoucherID != nil {
		query = query.Where("voucher_id = ?", *filter.VoucherID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Method != nil {
		query = query.Where("method = ?", *filter.Method)
	}
	return query
}

// Save creates or updates an allocation
func (r *GormAllocationRepository) Save(ctx context.Context, alloc *settlement.Allocation) error {
	return r.conn(ctx).Save(alloc).Error
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormAllocationRepository) SaveWithLock(ctx context.Context, alloc *settlement.Allocation) error {
	result := r.conn(ctx).
		Model(alloc).
		Where("id = ? AND version = ?", alloc.ID, alloc.Version-1).
		Select("*").
		Updates(alloc)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeStaleState, "Allocation was modified concurrently")
	}
	return nil
}

// Ensure GormAllocationRepository implements the interface
var _ settlement.AllocationRepository = (*GormAllocationRepository)(nil)
