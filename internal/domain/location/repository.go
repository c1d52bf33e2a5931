package location

import (
	"context"

	"github.com/google/uuid"
	"github.com/wms/backend/internal/domain/shared"
)

// StorageLocationRepository defines the interface for storage location persistence
type StorageLocationRepository interface {
	// FindByID finds a storage location by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*StorageLocation, error)

	// FindByCode finds a storage location by its leaf code
	FindByCode(ctx context.Context, code string) (*StorageLocation, error)

	// FindActive finds all active storage locations ordered by code
	FindActive(ctx context.Context) ([]StorageLocation, error)

	// FindCandidates finds active locations whose tag set covers the given
	// storage-type requirement, ordered by code for deterministic allocation
	FindCandidates(ctx context.Context, required []StorageType) ([]StorageLocation, error)

	// FindAll finds all storage locations matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]StorageLocation, error)

	// Save creates or updates a storage location
	Save(ctx context.Context, loc *StorageLocation) error

	// SaveWithLock saves with optimistic locking (checks version).
	// Returns shared.ErrConcurrencyConflict when the version check fails.
	SaveWithLock(ctx context.Context, loc *StorageLocation) error

	// Count counts storage locations
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}

// CapacityReservationRepository defines the interface for reservation persistence.
//
// CapacityReservation is a child entity within the StorageLocation aggregate.
// State transitions (create, release, confirm) go through StorageLocation
// methods; this repository exists for cross-aggregate reads (expiry sweeps,
// per-job lookups) and for persisting settled state.
type CapacityReservationRepository interface {
	// FindByID finds a reservation by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*CapacityReservation, error)

	// FindByLocation finds all reservations for a location
	FindByLocation(ctx context.Context, locationID uuid.UUID) ([]CapacityReservation, error)

	// FindActiveByJob finds outstanding reservations for a job
	FindActiveByJob(ctx context.Context, jobID string) ([]CapacityReservation, error)

	// FindExpired finds expired but unsettled reservations
	FindExpired(ctx context.Context) ([]CapacityReservation, error)

	// Save creates or updates a reservation
	Save(ctx context.Context, res *CapacityReservation) error
}
