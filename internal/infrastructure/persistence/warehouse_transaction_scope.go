package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/wms/backend/internal/application/warehouse"
	"github.com/wms/backend/internal/domain/handling"
	"github.com/wms/backend/internal/domain/job"
	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/location"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Both legs of a posting run inside one Execute call, so the OUT and IN
// ledger entries commit or roll back together.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos warehouse.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to all warehouse
// repositories scoped to one transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Locations returns the storage location repository scoped to the current transaction
func (r *gormTransactionalRepositories) Locations() location.StorageLocationRepository {
	return NewGormStorageLocationRepository(r.tx)
}

// Reservations returns the capacity reservation repository scoped to the current transaction
func (r *gormTransactionalRepositories) Reservations() location.CapacityReservationRepository {
	return NewGormCapacityReservationRepository(r.tx)
}

// Units returns the handling unit repository scoped to the current transaction
func (r *gormTransactionalRepositories) Units() handling.HandlingUnitRepository {
	return NewGormHandlingUnitRepository(r.tx)
}

// UnitTypes returns the handling unit type repository scoped to the current transaction
func (r *gormTransactionalRepositories) UnitTypes() handling.HandlingUnitTypeRepository {
	return NewGormHandlingUnitTypeRepository(r.tx)
}

// Ledger returns the stock ledger repository scoped to the current transaction
func (r *gormTransactionalRepositories) Ledger() ledger.Repository {
	return NewGormStockLedgerRepository(r.tx)
}

// Jobs returns the warehouse job repository scoped to the current transaction
func (r *gormTransactionalRepositories) Jobs() job.Repository {
	return NewGormWarehouseJobRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ warehouse.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ warehouse.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
