package persistence

import (
	"context"

	"github.com/settleflow/backend/internal/domain/shared"
	"gorm.io/gorm"
)

type txContextKey struct{}

// GormTransactionManager runs units of work inside a single database
// transaction. The transactional *gorm.DB is carried in the context so
// that repositories called within the unit of work join the same
// transaction transparently.
type GormTransactionManager struct {
	db *gorm.DB
}

// NewGormTransactionManager creates a transaction manager backed by the given database
func NewGormTransactionManager(db *Database) *GormTransactionManager {
	return &GormTransactionManager{db: db.DB}
}

// InTx executes fn within a database transaction. If the context already
// carries a transaction, fn joins it instead of opening a nested one.
func (m *GormTransactionManager) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

// dbFromContext returns the transactional DB carried by ctx, or the base
// connection when no transaction is in progress.
func dbFromContext(ctx context.Context, base *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return tx
	}
	return base.WithContext(ctx)
}

var _ shared.TransactionManager = (*GormTransactionManager)(nil)
