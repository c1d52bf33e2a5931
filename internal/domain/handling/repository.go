package handling

import (
	"context"

	"github.com/google/uuid"
	"github.com/wms/backend/internal/domain/shared"
)

// HandlingUnitRepository defines the interface for handling unit persistence
type HandlingUnitRepository interface {
	// FindByID finds a handling unit by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*HandlingUnit, error)

	// FindByLocation finds all units anchored at a location
	FindByLocation(ctx context.Context, locationID uuid.UUID) ([]HandlingUnit, error)

	// FindFreeByType finds unanchored units of the given type, oldest first
	FindFreeByType(ctx context.Context, typeCode string, limit int) ([]HandlingUnit, error)

	// FindAll finds handling units matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]HandlingUnit, error)

	// Save creates or updates a handling unit
	Save(ctx context.Context, unit *HandlingUnit) error

	// SaveWithLock saves with optimistic locking (checks version).
	// The anchoring invariant relies on this: two concurrent assignments of
	// the same unit race on the version column and only one commits.
	SaveWithLock(ctx context.Context, unit *HandlingUnit) error
}

// HandlingUnitTypeRepository defines the interface for handling unit type reference data
type HandlingUnitTypeRepository interface {
	// FindByCode finds a handling unit type by its code
	FindByCode(ctx context.Context, code string) (*HandlingUnitType, error)

	// FindAll finds all handling unit types
	FindAll(ctx context.Context) ([]HandlingUnitType, error)

	// Save creates or updates a handling unit type
	Save(ctx context.Context, huType *HandlingUnitType) error
}
