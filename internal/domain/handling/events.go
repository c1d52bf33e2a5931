package handling

import (
	"github.com/google/uuid"
	"github.com/wms/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeHandlingUnit = "HandlingUnit"

// Event type constants
const (
	EventTypeHandlingUnitCreated  = "HandlingUnitCreated"
	EventTypeHandlingUnitAssigned = "HandlingUnitAssigned"
	EventTypeHandlingUnitReleased = "HandlingUnitReleased"
)

// HandlingUnitCreatedEvent is raised when a new handling unit enters the pool
type HandlingUnitCreatedEvent struct {
	shared.BaseDomainEvent
	HandlingUnitID uuid.UUID `json:"handling_unit_id"`
	TypeCode       string    `json:"type_code"`
}

// NewHandlingUnitCreatedEvent creates a new HandlingUnitCreatedEvent
func NewHandlingUnitCreatedEvent(u *HandlingUnit) *HandlingUnitCreatedEvent {
	return &HandlingUnitCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeHandlingUnitCreated, AggregateTypeHandlingUnit, u.ID),
		HandlingUnitID:  u.ID,
		TypeCode:        u.TypeCode,
	}
}

// EventType returns the event type name
func (e *HandlingUnitCreatedEvent) EventType() string {
	return EventTypeHandlingUnitCreated
}

// HandlingUnitAssignedEvent is raised when a unit is anchored to a location
type HandlingUnitAssignedEvent struct {
	shared.BaseDomainEvent
	HandlingUnitID uuid.UUID `json:"handling_unit_id"`
	LocationID     uuid.UUID `json:"location_id"`
}

// NewHandlingUnitAssignedEvent creates a new HandlingUnitAssignedEvent
func NewHandlingUnitAssignedEvent(u *HandlingUnit, locationID uuid.UUID) *HandlingUnitAssignedEvent {
	return &HandlingUnitAssignedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeHandlingUnitAssigned, AggregateTypeHandlingUnit, u.ID),
		HandlingUnitID:  u.ID,
		LocationID:      locationID,
	}
}

// EventType returns the event type name
func (e *HandlingUnitAssignedEvent) EventType() string {
	return EventTypeHandlingUnitAssigned
}

// HandlingUnitReleasedEvent is raised when a unit is retired from the pool
type HandlingUnitReleasedEvent struct {
	shared.BaseDomainEvent
	HandlingUnitID uuid.UUID `json:"handling_unit_id"`
	TypeCode       string    `json:"type_code"`
}

// NewHandlingUnitReleasedEvent creates a new HandlingUnitReleasedEvent
func NewHandlingUnitReleasedEvent(u *HandlingUnit) *HandlingUnitReleasedEvent {
	return &HandlingUnitReleasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeHandlingUnitReleased, AggregateTypeHandlingUnit, u.ID),
		HandlingUnitID:  u.ID,
		TypeCode:        u.TypeCode,
	}
}

// EventType returns the event type name
func (e *HandlingUnitReleasedEvent) EventType() string {
	return EventTypeHandlingUnitReleased
}
