package location

import (
	"time"

	"github.com/google/uuid"
	"github.com/wms/backend/internal/domain/shared"
)

// CapacityReservation is a soft, time-bounded hold on a storage location's
// capacity, placed during allocation and settled by a ledger posting.
// Unconfirmed reservations are released by the expiry sweeper.
type CapacityReservation struct {
	shared.BaseEntity
	LocationID uuid.UUID  `gorm:"type:uuid;not null;index"`
	Held       Capacity   `gorm:"embedded;embeddedPrefix:held_"`
	JobID      string     `gorm:"type:varchar(50);not null;index:idx_capres_job"`
	RowID      string     `gorm:"type:varchar(50);not null;index:idx_capres_job"`
	ExpireAt   time.Time  `gorm:"not null;index"`
	Released   bool       `gorm:"not null;default:false"` // hold returned (cancel or expiry)
	Confirmed  bool       `gorm:"not null;default:false"` // hold converted to occupancy by posting
	SettledAt  *time.Time `gorm:"type:timestamp"`
}

// TableName returns the table name for GORM
func (CapacityReservation) TableName() string {
	return "capacity_reservations"
}

// NewCapacityReservation creates a new capacity reservation
func NewCapacityReservation(locationID uuid.UUID, held Capacity, jobID, rowID string, expireAt time.Time) *CapacityReservation {
	return &CapacityReservation{
		BaseEntity: shared.NewBaseEntity(),
		LocationID: locationID,
		Held:       held,
		JobID:      jobID,
		RowID:      rowID,
		ExpireAt:   expireAt,
	}
}

// IsActive returns true if the reservation is still holding capacity
func (r *CapacityReservation) IsActive() bool {
	return !r.Released && !r.Confirmed
}

// IsExpired returns true if the reservation has passed its expiry window
func (r *CapacityReservation) IsExpired() bool {
	return time.Now().After(r.ExpireAt)
}

// Release marks the reservation as released (cancellation or expiry)
func (r *CapacityReservation) Release() {
	now := time.Now()
	r.Released = true
	r.SettledAt = &now
	r.UpdatedAt = now
}

// Confirm marks the reservation as confirmed by a posting
func (r *CapacityReservation) Confirm() {
	now := time.Now()
	r.Confirmed = true
	r.SettledAt = &now
	r.UpdatedAt = now
}

// TimeUntilExpiry returns the duration until the hold expires, negative if already expired
func (r *CapacityReservation) TimeUntilExpiry() time.Duration {
	return time.Until(r.ExpireAt)
}
