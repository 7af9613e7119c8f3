package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/settleflow/backend/internal/domain/settlement"
	"github.com/settleflow/backend/internal/domain/shared"
)

// GormNettingRepository implements NettingRepository using GORM
type GormNettingRepository struct {
	db *gorm.DB
}

// NewGormNettingRepository creates a new GormNettingRepository
func NewGormNettingRepository(db *gorm.DB) *GormNettingRepository {
	return &GormNettingRepository{db: db}
}

func (r *GormNettingRepository) conn(ctx context.Context) *gorm.DB {
	return dbFromContext(ctx, r.db)
}

// FindByID finds a netting record by ID
func (r *GormNettingRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.NettingRecord, error) {
	var record settlement.NettingRecord
	if err := r.conn(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// FindByIDForTenant finds a netting record by ID for a specific tenant
func (r *GormNettingRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*settlement.NettingRecord, error) {
	var record settlement.NettingRecord
	if err := r.conn(ctx).
		First(&record, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// FindAllForTenant finds all netting records for a tenant with filtering
func (r *GormNettingRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter settlement.NettingFilter) ([]*settlement.NettingRecord, error) {
	var records []*settlement.NettingRecord
	query := applyNettingFilter(r.conn(ctx).Where("tenant_id = ?", tenantID), filter)

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// CountForTenant counts netting records for a tenant with filtering
func (r *GormNettingRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter settlement.NettingFilter) (int64, error) {
	var count int64
	query := applyNettingFilter(
		r.conn(ctx).Model(&settlement.NettingRecord{}).Where("tenant_id = ?", tenantID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyNettingFilter(query *gorm.DB, filter settlement.NettingFilter) *gorm.DB {
	if filter.CounterpartyID != nil {
		query = query.Where("counterparty_id = ?", *filter.CounterpartyID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Search != "" {
		query = query.Where("counterparty_name ILIKE ?", "%"+filter.Search+"%")
	}
	return query
}

// Save creates or updates a netting record
func (r *GormNettingRepository) Save(ctx context.Context, record *settlement.NettingRecord) error {
	return r.conn(ctx).Save(record).Error
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormNettingRepository) SaveWithLock(ctx context.Context, record *settlement.NettingRecord) error {
	result := r.conn(ctx).
		Model(record).
		Where("id = ? AND version = ?", record.ID, record.Version-1).
		Select("*").
		Updates(record)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeStaleState, "Netting record was modified concurrently")
	}
	return nil
}

// Ensure GormNettingRepository implements the interface
var _ settlement.NettingRepository = (*GormNettingRepository)(nil)
