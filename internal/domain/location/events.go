package location

import (
	"github.com/google/uuid"
	"github.com/wms/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeStorageLocation = "StorageLocation"

// Event type constants
const (
	EventTypeCapacityReserved   = "CapacityReserved"
	EventTypeCapacityReleased   = "CapacityReleased"
	EventTypeReservationExpired = "ReservationExpired"
	EventTypeOccupancyRebuilt   = "OccupancyRebuilt"
)

// CapacityReservedEvent is raised when a soft hold is placed on a location
type CapacityReservedEvent struct {
	shared.BaseDomainEvent
	LocationID    uuid.UUID `json:"location_id"`
	LocationCode  string    `json:"location_code"`
	Held          Capacity  `json:"held"`
	ReservationID uuid.UUID `json:"reservation_id"`
	JobID         string    `json:"job_id"`
}

// NewCapacityReservedEvent creates a new CapacityReservedEvent
func NewCapacityReservedEvent(l *StorageLocation, held Capacity, reservationID uuid.UUID, jobID string) *CapacityReservedEvent {
	return &CapacityReservedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCapacityReserved, AggregateTypeStorageLocation, l.ID),
		LocationID:      l.ID,
		LocationCode:    l.Code,
		Held:            held,
		ReservationID:   reservationID,
		JobID:           jobID,
	}
}

// EventType returns the event type name
func (e *CapacityReservedEvent) EventType() string {
	return EventTypeCapacityReserved
}

// CapacityReleasedEvent is raised when a soft hold is returned to headroom
type CapacityReleasedEvent struct {
	shared.BaseDomainEvent
	LocationID    uuid.UUID `json:"location_id"`
	LocationCode  string    `json:"location_code"`
	Held          Capacity  `json:"held"`
	ReservationID uuid.UUID `json:"reservation_id"`
	JobID         string    `json:"job_id"`
}

// NewCapacityReleasedEvent creates a new CapacityReleasedEvent
func NewCapacityReleasedEvent(l *StorageLocation, held Capacity, reservationID uuid.UUID, jobID string) *CapacityReleasedEvent {
	return &CapacityReleasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCapacityReleased, AggregateTypeStorageLocation, l.ID),
		LocationID:      l.ID,
		LocationCode:    l.Code,
		Held:            held,
		ReservationID:   reservationID,
		JobID:           jobID,
	}
}

// EventType returns the event type name
func (e *CapacityReleasedEvent) EventType() string {
	return EventTypeCapacityReleased
}

// ReservationExpiredEvent is raised when the sweeper releases an expired hold
type ReservationExpiredEvent struct {
	shared.BaseDomainEvent
	LocationID    uuid.UUID `json:"location_id"`
	ReservationID uuid.UUID `json:"reservation_id"`
	Held          Capacity  `json:"held"`
	JobID         string    `json:"job_id"`
	RowID         string    `json:"row_id"`
}

// NewReservationExpiredEvent creates a new ReservationExpiredEvent
func NewReservationExpiredEvent(locationID uuid.UUID, res *CapacityReservation) *ReservationExpiredEvent {
	return &ReservationExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReservationExpired, AggregateTypeStorageLocation, locationID),
		LocationID:      locationID,
		ReservationID:   res.ID,
		Held:            res.Held,
		JobID:           res.JobID,
		RowID:           res.RowID,
	}
}

// EventType returns the event type name
func (e *ReservationExpiredEvent) EventType() string {
	return EventTypeReservationExpired
}

// OccupancyRebuiltEvent is raised after the startup rebuild recomputes a
// location's occupancy from the ledger
type OccupancyRebuiltEvent struct {
	shared.BaseDomainEvent
	LocationID uuid.UUID `json:"location_id"`
	Occupied   Capacity  `json:"occupied"`
}

// NewOccupancyRebuiltEvent creates a new OccupancyRebuiltEvent
func NewOccupancyRebuiltEvent(l *StorageLocation) *OccupancyRebuiltEvent {
	return &OccupancyRebuiltEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOccupancyRebuilt, AggregateTypeStorageLocation, l.ID),
		LocationID:      l.ID,
		Occupied:        l.Occupied,
	}
}

// EventType returns the event type name
func (e *OccupancyRebuiltEvent) EventType() string {
	return EventTypeOccupancyRebuilt
}
