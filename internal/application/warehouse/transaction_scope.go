package warehouse

import (
	"context"

	"github.com/wms/backend/internal/domain/handling"
	"github.com/wms/backend/internal/domain/job"
	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/location"
)

// TransactionScope provides transactional access to warehouse repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically. Both legs of a posting go through one Execute call so
// the OUT and IN ledger entries can never land separately.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all warehouse repositories
// within one transaction.
//
// Aggregate boundary notes:
//   - Locations: repository for the StorageLocation aggregate root; capacity
//     and reservation state changes go through it.
//   - Reservations: cross-aggregate reservation queries (expiry sweeps,
//     per-job lookups). Reservations are child entities of StorageLocation
//     with separate storage for query performance.
//   - Ledger: append-only; no updates ever happen through it.
type TransactionalRepositories interface {
	// Locations returns the storage location repository scoped to the current transaction
	Locations() location.StorageLocationRepository
	// Reservations returns the capacity reservation repository scoped to the current transaction
	Reservations() location.CapacityReservationRepository
	// Units returns the handling unit repository scoped to the current transaction
	Units() handling.HandlingUnitRepository
	// UnitTypes returns the handling unit type repository scoped to the current transaction
	UnitTypes() handling.HandlingUnitTypeRepository
	// Ledger returns the stock ledger repository scoped to the current transaction
	Ledger() ledger.Repository
	// Jobs returns the warehouse job repository scoped to the current transaction
	Jobs() job.Repository
}

// NoOpTransactionScope runs functions without a real transaction. Useful
// for tests and for wiring against stores without transaction support.
type NoOpTransactionScope struct {
	locations    location.StorageLocationRepository
	reservations location.CapacityReservationRepository
	units        handling.HandlingUnitRepository
	unitTypes    handling.HandlingUnitTypeRepository
	ledgerRepo   ledger.Repository
	jobs         job.Repository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories
func NewNoOpTransactionScope(
	locations location.StorageLocationRepository,
	reservations location.CapacityReservationRepository,
	units handling.HandlingUnitRepository,
	unitTypes handling.HandlingUnitTypeRepository,
	ledgerRepo ledger.Repository,
	jobs job.Repository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		locations:    locations,
		reservations: reservations,
		units:        units,
		unitTypes:    unitTypes,
		ledgerRepo:   ledgerRepo,
		jobs:         jobs,
	}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Locations returns the storage location repository
func (s *NoOpTransactionScope) Locations() location.StorageLocationRepository {
	return s.locations
}

// Reservations returns the capacity reservation repository
func (s *NoOpTransactionScope) Reservations() location.CapacityReservationRepository {
	return s.reservations
}

// Units returns the handling unit repository
func (s *NoOpTransactionScope) Units() handling.HandlingUnitRepository {
	return s.units
}

// UnitTypes returns the handling unit type repository
func (s *NoOpTransactionScope) UnitTypes() handling.HandlingUnitTypeRepository {
	return s.unitTypes
}

// Ledger returns the stock ledger repository
func (s *NoOpTransactionScope) Ledger() ledger.Repository {
	return s.ledgerRepo
}

// Jobs returns the warehouse job repository
func (s *NoOpTransactionScope) Jobs() job.Repository {
	return s.jobs
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
