package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/settleflow/backend/internal/domain/settlement"
	"github.com/settleflow/backend/internal/domain/shared"
)

// GormVoucherRepository implements VoucherRepository using GORM
type GormVoucherRepository struct {
	db *gorm.DB
}

// NewGormVoucherRepository creates a new GormVoucherRepository
func NewGormVoucherRepository(db *gorm.DB) *GormVoucherRepository {
	return &GormVoucherRepository{db: db}
}

func (r *GormVoucherRepository) conn(ctx context.Context) *gorm.DB {
	return dbFromContext(ctx, r.db)
}

// FindByID finds a voucher by ID
func (r *GormVoucherRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Voucher, error) {
	var voucher settlement.Voucher
	if err := r.conn(ctx).First(&voucher, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &voucher, nil
}

// FindByIDForTenant finds a voucher by ID for a specific tenant
func (r *GormVoucherRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*settlement.Voucher, error) {
	var voucher settlement.Voucher
	if err := r.conn(ctx).
		First(&voucher, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &voucher, nil
}

// FindByIDsForTenant finds multiple vouchers by ID for a specific tenant
func (r *GormVoucherRepository) FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*settlement.Voucher, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var vouchers []*settlement.Voucher
	if err := r.conn(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&vouchers).Error; err != nil {
		return nil, err
	}
	return vouchers, nil
}

// FindByNumberForTenant finds a voucher by its number for a tenant
func (r *GormVoucherRepository) FindByNumberForTenant(ctx context.Context, tenantID uuid.UUID, number string) (*settlement.Voucher, error) {
	var voucher settlement.Voucher
	if err := r.conn(ctx).
		First(&voucher, "voucher_number = ? AND tenant_id = ?", number, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &voucher, nil
}

// FindOpenByCounterpartyAndSide returns open, unmoderated vouchers for a
// counterparty and side, ordered by trade date then voucher number. This
// ordering fixes the consumption sequence for oldest-first allocation.
func (r *GormVoucherRepository) FindOpenByCounterpartyAndSide(ctx context.Context, tenantID, counterpartyID uuid.UUID, side settlement.VoucherSide) ([]*settlement.Voucher, error) {
	var vouchers []*settlement.Voucher
	if err := r.conn(ctx).
		Where("tenant_id = ? AND counterparty_id = ? AND side = ?", tenantID, counterpartyID, side).
		Where("allocated_amount < total_amount").
		Where("moderation = ?", settlement.ModerationNone).
		Order("trade_date ASC, voucher_number ASC").
		Find(&vouchers).Error; err != nil {
		return nil, err
	}
	return vouchers, nil
}

// FindAllForTenant finds all vouchers for a tenant with filtering
func (r *GormVoucherRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter settlement.VoucherFilter) ([]*settlement.Voucher, error) {
	var vouchers []*settlement.Voucher
	query := applyVoucherFilter(r.conn(ctx).Where("tenant_id = ?", tenantID), filter)

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	if err := query.Order("trade_date DESC, voucher_number DESC").Find(&vouchers).Error; err != nil {
		return nil, err
	}
	return vouchers, nil
}

// CountForTenant counts vouchers for a tenant with filtering
func (r *GormVoucherRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter settlement.VoucherFilter) (int64, error) {
	var count int64
	query := applyVoucherFilter(
		r.conn(ctx).Model(&settlement.Voucher{}).Where("tenant_id = ?", tenantID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyVoucherFilter(query *gorm.DB, filter settlement.VoucherFilter) *gorm.DB {
	if filter.CounterpartyID != nil {
		query = query.Where("counterparty_id = ?", *filter.CounterpartyID)
	}
	if filter.Side != nil {
		query = query.Where("side = ?", *filter.Side)
	}
	if filter.Status != nil {
		// Settlement status is derived from the amounts, never stored
		switch *filter.Status {
		case settlement.SettlementStatusOpen:
			query = query.Where("allocated_amount = 0")
		case settlement.SettlementStatusPartial:
			query = query.Where("allocated_amount > 0 AND allocated_amount < total_amount")
		case settlement.SettlementStatusSettled:
			query = query.Where("allocated_amount >= total_amount")
		}
	}
	if filter.Moderation != nil {
		query = query.Where("moderation = ?", *filter.Moderation)
	}
	if filter.TradeDateFrom != nil {
		query = query.Where("trade_date >= ?", *filter.TradeDateFrom)
	}
	if filter.TradeDateTo != nil {
		query = query.Where("trade_date <= ?", *filter.TradeDateTo)
	}
	if filter.Search != "" {
		query = query.Where("voucher_number ILIKE ? OR counterparty_name ILIKE ?",
			"%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	return query
}

// Save creates or updates a voucher
func (r *GormVoucherRepository) Save(ctx context.Context, voucher *settlement.Voucher) error {
	return r.conn(ctx).Save(voucher).Error
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormVoucherRepository) SaveWithLock(ctx context.Context, voucher *settlement.Voucher) error {
	result := r.conn(ctx).
		Model(voucher).
		Where("id = ? AND version = ?", voucher.ID, voucher.Version-1).
		Select("*").
		Updates(voucher)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeStaleState, "Voucher was modified concurrently")
	}
	return nil
}

// Delete removes a voucher for a tenant
func (r *GormVoucherRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.conn(ctx).Delete(&settlement.Voucher{}, "id = ? AND tenant_id = ?", id, tenantID).Error
}

// Ensure GormVoucherRepository implements the interface
var _ settlement.VoucherRepository = (*GormVoucherRepository)(nil)
