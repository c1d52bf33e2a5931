package job

import (
	"context"

	"github.com/google/uuid"
	"github.com/wms/backend/internal/domain/shared"
)

// Repository defines the interface for warehouse job persistence
type Repository interface {
	// FindByID finds a job with its lines and rows by ID
	FindByID(ctx context.Context, id uuid.UUID) (*WarehouseJob, error)

	// FindByCode finds a job by its code
	FindByCode(ctx context.Context, code string) (*WarehouseJob, error)

	// FindByStatus finds jobs in the given status
	FindByStatus(ctx context.Context, status JobStatus, filter shared.Filter) ([]WarehouseJob, error)

	// FindAll finds jobs matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]WarehouseJob, error)

	// Save creates or updates a job with its lines and rows
	Save(ctx context.Context, j *WarehouseJob) error

	// SaveWithLock saves with optimistic locking (checks version).
	// Returns shared.ErrConcurrencyConflict when the version check fails.
	SaveWithLock(ctx context.Context, j *WarehouseJob) error

	// Count counts jobs matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}
