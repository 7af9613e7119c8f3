package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/settleflow/backend/internal/domain/settlement"
	"github.com/settleflow/backend/internal/domain/shared"
)

// GormChangeRequestRepository implements ChangeRequestRepository using GORM
type GormChangeRequestRepository struct {
	db *gorm.DB
}

// NewGormChangeRequestRepository creates a new GormChangeRequestRepository
func NewGormChangeRequestRepository(db *gorm.DB) *GormChangeRequestRepository {
	return &GormChangeRequestRepository{db: db}
}

func (r *GormChangeRequestRepository) conn(ctx context.Context) *gorm.DB {
	return dbFromContext(ctx, r.db)
}

// FindByID finds a change request by ID
func (r *GormChangeRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.VoucherChangeRequest, error) {
	var req settlement.VoucherChangeRequest
	if err := r.conn(ctx).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// FindByIDForTenant finds a change request by ID for a specific tenant
func (r *GormChangeRequestRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*settlement.VoucherChangeRequest, error) {
	var req settlement.VoucherChangeRequest
	if err := r.conn(ctx).
		First(&req, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// FindPendingByVoucher returns pending change requests against a voucher
func (r *GormChangeRequestRepository) FindPendingByVoucher(ctx context.Context, tenantID, voucherID uuid.UUID) ([]*settlement.VoucherChangeRequest, error) {
	var reqs []*settlement.VoucherChangeRequest
	if err := r.conn(ctx).
		Where("tenant_id = ? AND voucher_id = ? AND status = ?",
			tenantID, voucherID, settlement.ChangeRequestStatusPending).
		Order("created_at ASC").
		Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

// FindAllForTenant finds all change requests for a tenant with filtering
func (r *GormChangeRequestRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter settlement.ChangeRequestFilter) ([]*settlement.VoucherChangeRequest, error) {
	var reqs []*settlement.VoucherChangeRequest
	query := applyChangeRequestFilter(r.conn(ctx).Where("tenant_id = ?", tenantID), filter)

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	if err := query.Order("created_at DESC").Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

// CountForTenant counts change requests for a tenant with filtering
func (r *GormChangeRequestRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter settlement.ChangeRequestFilter) (int64, error) {
	var count int64
	query := applyChangeRequestFilter(
		r.conn(ctx).Model(&settlement.VoucherChangeRequest{}).Where("tenant_id = ?", tenantID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyChangeRequestFilter(query *gorm.DB, filter settlement.ChangeRequestFilter) *gorm.DB {
	if filter.VoucherID != nil {
		query = query.Where("voucher_id = ?", *filter.VoucherID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// Save creates or updates a change request
func (r *GormChangeRequestRepository) Save(ctx context.Context, req *settlement.VoucherChangeRequest) error {
	return r.conn(ctx).Save(req).Error
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormChangeRequestRepository) SaveWithLock(ctx context.Context, req *settlement.VoucherChangeRequest) error {
	result := r.conn(ctx).
		Model(req).
		Where("id = ? AND version = ?", req.ID, req.Version-1).
		Select("*").
		Updates(req)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeStaleState, "Change request was modified concurrently")
	}
	return nil
}

// Ensure GormChangeRequestRepository implements the interface
var _ settlement.ChangeRequestRepository = (*GormChangeRequestRepository)(nil)
