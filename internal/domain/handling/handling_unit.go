package handling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/shared"
)

// HandlingUnitStatus represents the lifecycle status of a handling unit
type HandlingUnitStatus string

const (
	HandlingUnitStatusFree      HandlingUnitStatus = "FREE"       // exists, not anchored anywhere
	HandlingUnitStatusAssigned  HandlingUnitStatus = "ASSIGNED"   // anchored to one storage location
	HandlingUnitStatusInTransit HandlingUnitStatus = "IN_TRANSIT" // between locations during a posting phase
	HandlingUnitStatusReleased  HandlingUnitStatus = "RELEASED"   // retired, last item removed
)

// IsValid checks if the status is a valid HandlingUnitStatus
func (s HandlingUnitStatus) IsValid() bool {
	switch s {
	case HandlingUnitStatusFree, HandlingUnitStatusAssigned, HandlingUnitStatusInTransit, HandlingUnitStatusReleased:
		return true
	}
	return false
}

// String returns the string representation of HandlingUnitStatus
func (s HandlingUnitStatus) String() string {
	return string(s)
}

// HandlingUnitType is read-only reference data describing a container class:
// how much item quantity one unit holds and the footprint one unit consumes
// at a storage location.
type HandlingUnitType struct {
	shared.BaseEntity
	Code        string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name        string          `gorm:"type:varchar(100);not null"`
	MaxQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"` // item quantity one unit can hold
	Volume      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Weight      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (HandlingUnitType) TableName() string {
	return "handling_unit_types"
}

// NewHandlingUnitType creates a new handling unit type
func NewHandlingUnitType(code, name string, maxQuantity, volume, weight decimal.Decimal) (*HandlingUnitType, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_HU_TYPE", "Handling unit type code cannot be empty")
	}
	if maxQuantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_HU_TYPE", "Handling unit type must hold a positive quantity")
	}
	return &HandlingUnitType{
		BaseEntity:  shared.NewBaseEntity(),
		Code:        code,
		Name:        name,
		MaxQuantity: maxQuantity,
		Volume:      volume,
		Weight:      weight,
	}, nil
}

// HandlingUnit represents one physical container (pallet, box). A unit is
// anchored to at most one storage location at any instant; a second
// assignment while anchored elsewhere is rejected, never overwritten.
type HandlingUnit struct {
	shared.BaseAggregateRoot
	TypeCode    string             `gorm:"type:varchar(50);not null;index"`
	MaxQuantity decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	Volume      decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	Weight      decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	LocationID  *uuid.UUID         `gorm:"type:uuid;index"`
	Status      HandlingUnitStatus `gorm:"type:varchar(20);not null;default:'FREE'"`
	ReleasedAt  *time.Time         `gorm:"type:timestamp"`
}

// TableName returns the table name for GORM
func (HandlingUnit) TableName() string {
	return "handling_units"
}

// NewHandlingUnit creates a free handling unit of the given type
func NewHandlingUnit(huType *HandlingUnitType) *HandlingUnit {
	unit := &HandlingUnit{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TypeCode:          huType.Code,
		MaxQuantity:       huType.MaxQuantity,
		Volume:            huType.Volume,
		Weight:            huType.Weight,
		Status:            HandlingUnitStatusFree,
	}
	unit.AddDomainEvent(NewHandlingUnitCreatedEvent(unit))
	return unit
}

// IsAnchored returns true if the unit currently resides at a storage location
func (u *HandlingUnit) IsAnchored() bool {
	return u.LocationID != nil
}

// AssignTo anchors the unit to a storage location. Assigning an already
// anchored unit to a different location fails with the anchoring violation;
// re-assignment to the same location is a no-op so posting retries stay safe.
func (u *HandlingUnit) AssignTo(locationID uuid.UUID) error {
	if u.Status == HandlingUnitStatusReleased {
		return shared.NewDomainError("HU_RELEASED", fmt.Sprintf("Handling unit %s has been released", u.ID))
	}
	if u.LocationID != nil {
		if *u.LocationID == locationID {
			return nil
		}
		return shared.ErrAnchoringViolation
	}

	u.LocationID = &locationID
	u.Status = HandlingUnitStatusAssigned
	u.UpdatedAt = time.Now()
	u.IncrementVersion()

	u.AddDomainEvent(NewHandlingUnitAssignedEvent(u, locationID))

	return nil
}

// MarkInTransit flags the unit as moving between locations while keeping its
// current anchor until the destination posting lands.
func (u *HandlingUnit) MarkInTransit() error {
	if u.Status != HandlingUnitStatusAssigned {
		return shared.ErrInvalidTransition
	}
	u.Status = HandlingUnitStatusInTransit
	u.UpdatedAt = time.Now()
	u.IncrementVersion()
	return nil
}

// MoveTo re-anchors an in-transit unit at its destination
func (u *HandlingUnit) MoveTo(locationID uuid.UUID) error {
	if u.Status != HandlingUnitStatusInTransit {
		return shared.ErrInvalidTransition
	}
	u.LocationID = &locationID
	u.Status = HandlingUnitStatusAssigned
	u.UpdatedAt = time.Now()
	u.IncrementVersion()

	u.AddDomainEvent(NewHandlingUnitAssignedEvent(u, locationID))

	return nil
}

// Unanchor detaches the unit from its location, returning it to the free
// pool. Used when a pick empties the unit's position without retiring it.
func (u *HandlingUnit) Unanchor() error {
	if u.Status == HandlingUnitStatusReleased {
		return shared.ErrInvalidTransition
	}
	u.LocationID = nil
	u.Status = HandlingUnitStatusFree
	u.UpdatedAt = time.Now()
	u.IncrementVersion()
	return nil
}

// Release retires the unit. The caller must have verified the unit holds no
// remaining stock; the registry checks the ledger balance before calling.
func (u *HandlingUnit) Release() error {
	if u.Status == HandlingUnitStatusReleased {
		return shared.ErrInvalidTransition
	}
	now := time.Now()
	u.LocationID = nil
	u.Status = HandlingUnitStatusReleased
	u.ReleasedAt = &now
	u.UpdatedAt = now
	u.IncrementVersion()

	u.AddDomainEvent(NewHandlingUnitReleasedEvent(u))

	return nil
}

// SplitQuantity divides a requested quantity into per-unit loads no larger
// than the type's max quantity. The last load carries the remainder.
func SplitQuantity(total decimal.Decimal, huType *HandlingUnitType) ([]decimal.Decimal, error) {
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity to split must be positive")
	}
	if huType.MaxQuantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_HU_TYPE", "Handling unit type must hold a positive quantity")
	}

	loads := make([]decimal.Decimal, 0)
	remaining := total
	for remaining.GreaterThan(decimal.Zero) {
		load := decimal.Min(remaining, huType.MaxQuantity)
		loads = append(loads, load)
		remaining = remaining.Sub(load)
	}
	return loads, nil
}
