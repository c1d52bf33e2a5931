package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wms/backend/internal/domain/location"
	"github.com/wms/backend/internal/domain/shared"
)

// GormCapacityReservationRepository implements CapacityReservationRepository using GORM.
// Reservations are child rows of the storage_locations aggregate; this
// repository exists for cross-location queries (expiry sweeps, per-job
// lookups), writes normally go through the StorageLocation aggregate.
type GormCapacityReservationRepository struct {
	db *gorm.DB
}

// NewGormCapacityReservationRepository creates a new GormCapacityReservationRepository
func NewGormCapacityReservationRepository(db *gorm.DB) *GormCapacityReservationRepository {
	return &GormCapacityReservationRepository{db: db}
}

// FindByID finds a reservation by its ID
func (r *GormCapacityReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*location.CapacityReservation, error) {
	var res location.CapacityReservation
	if err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// FindByLocation finds all reservations for a location
func (r *GormCapacityReservationRepository) FindByLocation(ctx context.Context, locationID uuid.UUID) ([]location.CapacityReservation, error) {
	var reservations []location.CapacityReservation
	if err := r.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("created_at ASC").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// FindActiveByJob finds outstanding reservations for a job
func (r *GormCapacityReservationRepository) FindActiveByJob(ctx context.Context, jobID string) ([]location.CapacityReservation, error) {
	var reservations []location.CapacityReservation
	if err := r.db.WithContext(ctx).
		Where("job_id = ? AND released = false AND confirmed = false", jobID).
		Order("created_at ASC").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// FindExpired finds expired but unsettled reservations
func (r *GormCapacityReservationRepository) FindExpired(ctx context.Context) ([]location.CapacityReservation, error) {
	var reservations []location.CapacityReservation
	if err := r.db.WithContext(ctx).
		Where("released = false AND confirmed = false AND expire_at < ?", time.Now()).
		Order("expire_at ASC").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// Save creates or updates a reservation
func (r *GormCapacityReservationRepository) Save(ctx context.Context, res *location.CapacityReservation) error {
	return r.db.WithContext(ctx).Save(res).Error
}

// Ensure GormCapacityReservationRepository implements CapacityReservationRepository
var _ location.CapacityReservationRepository = (*GormCapacityReservationRepository)(nil)
