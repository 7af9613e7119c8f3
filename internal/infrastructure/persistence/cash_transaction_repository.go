package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/settleflow/backend/internal/domain/settlement"
	"github.com/settleflow/backend/internal/domain/shared"
)

// GormCashTransactionRepository implements CashTransactionRepository using GORM
type GormCashTransactionRepository struct {
	db *gorm.DB
}

// NewGormCashTransactionRepository creates a new GormCashTransactionRepository
func NewGormCashTransactionRepository(db *gorm.DB) *GormCashTransactionRepository {
	return &GormCashTransactionRepository{db: db}
}

func (r *GormCashTransactionRepository) conn(ctx context.Context) *gorm.DB {
	return dbFromContext(ctx, r.db)
}

// FindByID finds a cash transaction by ID
func (r *GormCashTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.CashTransaction, error) {
	var tx settlement.CashTransaction
	if err := r.conn(ctx).First(&tx, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

// FindByIDForTenant finds a cash transaction by ID for a specific tenant
func (r *GormCashTransactionRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*settlement.CashTransaction, error) {
	var tx settlement.CashTransaction
	if err := r.conn(ctx).
		First(&tx, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

// FindAllForTenant finds all cash transactions for a tenant with filtering
func (r *GormCashTransactionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter settlement.TransactionFilter) ([]*settlement.CashTransaction, error) {
	var txs []*settlement.CashTransaction
	query := applyTransactionFilter(r.conn(ctx).Where("tenant_id = ?", tenantID), filter)

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	if err := query.Order("transaction_date DESC, created_at DESC").Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// CountForTenant counts cash transactions for a tenant with filtering
func (r *GormCashTransactionRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter settlement.TransactionFilter) (int64, error) {
	var count int64
	query := applyTransactionFilter(
		r.conn(ctx).Model(&settlement.CashTransaction{}).Where("tenant_id = ?", tenantID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyTransactionFilter(query *gorm.DB, filter settlement.TransactionFilter) *gorm.DB {
	if filter.CounterpartyID != nil {
		query = query.Where("counterparty_id = ?", *filter.CounterpartyID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.Moderation != nil {
		query = query.Where("moderation = ?", *filter.Moderation)
	}
	if filter.Unresolved != nil {
		if *filter.Unresolved {
			query = query.Where("counterparty_id IS NULL")
		} else {
			query = query.Where("counterparty_id IS NOT NULL")
		}
	}
	if filter.DateFrom != nil {
		query = query.Where("transaction_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("transaction_date <= ?", *filter.DateTo)
	}
	if filter.Search != "" {
		query = query.Where("counterparty_name ILIKE ? OR raw_name ILIKE ?",
			"%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	return query
}

// ListUnmatchedNames groups unresolved transactions by their raw ingestion name
func (r *GormCashTransactionRepository) ListUnmatchedNames(ctx context.Context, tenantID uuid.UUID) ([]settlement.UnmatchedName, error) {
	var names []settlement.UnmatchedName
	if err := r.conn(ctx).
		Model(&settlement.CashTransaction{}).
		Select("raw_name, COUNT(*) AS occurrences, MIN(created_at) AS first_seen").
		Where("tenant_id = ? AND counterparty_id IS NULL AND raw_name <> ''", tenantID).
		Where("moderation NOT IN ?", []settlement.ModerationState{
			settlement.ModerationHidden, settlement.ModerationCancelled,
		}).
		Group("raw_name").
		Order("occurrences DESC, raw_name ASC").
		Scan(&names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

// FindUnresolvedByRawName returns unresolved transactions carrying the raw name
func (r *GormCashTransactionRepository) FindUnresolvedByRawName(ctx context.Context, tenantID uuid.UUID, rawName string) ([]*settlement.CashTransaction, error) {
	var txs []*settlement.CashTransaction
	if err := r.conn(ctx).
		Where("tenant_id = ? AND counterparty_id IS NULL AND raw_name = ?", tenantID, rawName).
		Order("created_at ASC").
		Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// Save creates or updates a cash transaction
func (r *GormCashTransactionRepository) Save(ctx context.Context, tx *settlement.CashTransaction) error {
	return r.conn(ctx).Save(tx).Error
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormCashTransactionRepository) SaveWithLock(ctx context.Context, tx *settlement.CashTransaction) error {
	result := r.conn(ctx).
		Model(tx).
		Where("id = ? AND version = ?", tx.ID, tx.Version-1).
		Select("*").
		Updates(tx)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeStaleState, "Cash transaction was modified concurrently")
	}
	return nil
}

// Ensure GormCashTransactionRepository implements the interface
var _ settlement.CashTransactionRepository = (*GormCashTransactionRepository)(nil)
