package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/settleflow/backend/internal/domain/partner"
	"github.com/settleflow/backend/internal/domain/shared"
)

// GormCounterpartyRepository implements CounterpartyRepository using GORM
type GormCounterpartyRepository struct {
	db *gorm.DB
}

// NewGormCounterpartyRepository creates a new GormCounterpartyRepository
func NewGormCounterpartyRepository(db *gorm.DB) *GormCounterpartyRepository {
	return &GormCounterpartyRepository{db: db}
}

func (r *GormCounterpartyRepository) conn(ctx context.Context) *gorm.DB {
	return dbFromContext(ctx, r.db)
}

// FindByID finds a counterparty by ID
func (r *GormCounterpartyRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Counterparty, error) {
	var cp partner.Counterparty
	if err := r.conn(ctx).First(&cp, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cp, nil
}

// FindByIDForTenant finds a counterparty by ID for a specific tenant
func (r *GormCounterpartyRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*partner.Counterparty, error) {
	var cp partner.Counterparty
	if err := r.conn(ctx).
		First(&cp, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cp, nil
}

// FindByName finds a counterparty by its canonical name for a tenant
func (r *GormCounterpartyRepository) FindByName(ctx context.Context, tenantID uuid.UUID, name string) (*partner.Counterparty, error) {
	var cp partner.Counterparty
	if err := r.conn(ctx).
		First(&cp, "name = ? AND tenant_id = ?", name, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cp, nil
}

// ResolveName finds the counterparty whose canonical name or alias list
// matches the given free-text name. The alias match uses JSONB containment
// against the aliases array.
func (r *GormCounterpartyRepository) ResolveName(ctx context.Context, tenantID uuid.UUID, name string) (*partner.Counterparty, error) {
	aliasNeedle, err := json.Marshal([]string{name})
	if err != nil {
		return nil, err
	}

	var cp partner.Counterparty
	if err := r.conn(ctx).
		Where("tenant_id = ?", tenantID).
		Where("name = ? OR aliases @> ?", name, string(aliasNeedle)).
		First(&cp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cp, nil
}

// FindAllForTenant finds all counterparties for a tenant with filtering
func (r *GormCounterpartyRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter partner.CounterpartyFilter) ([]partner.Counterparty, error) {
	var cps []partner.Counterparty
	query := r.conn(ctx).Where("tenant_id = ?", tenantID)

	if filter.Name != "" {
		query = query.Where("name = ?", filter.Name)
	}
	if filter.Search != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Search+"%")
	}

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 0 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	if err := query.Order("name ASC").Find(&cps).Error; err != nil {
		return nil, err
	}
	return cps, nil
}

// CountForTenant counts counterparties for a tenant
func (r *GormCounterpartyRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter partner.CounterpartyFilter) (int64, error) {
	var count int64
	query := r.conn(ctx).Model(&partner.Counterparty{}).Where("tenant_id = ?", tenantID)

	if filter.Name != "" {
		query = query.Where("name = ?", filter.Name)
	}
	if filter.Search != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Search+"%")
	}

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a counterparty
func (r *GormCounterpartyRepository) Save(ctx context.Context, cp *partner.Counterparty) error {
	return r.conn(ctx).Save(cp).Error
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormCounterpartyRepository) SaveWithLock(ctx context.Context, cp *partner.Counterparty) error {
	result := r.conn(ctx).
		Model(cp).
		Where("id = ? AND version = ?", cp.ID, cp.Version-1).
		Select("*").
		Updates(cp)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeStaleState, "Counterparty was modified concurrently")
	}
	return nil
}

// Ensure GormCounterpartyRepository implements the interface
var _ partner.CounterpartyRepository = (*GormCounterpartyRepository)(nil)
