package location

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/shared"
)

// StorageType tags a location (and an item requirement) with a storage class.
type StorageType string

const (
	StorageTypeAmbient        StorageType = "AMBIENT"
	StorageTypeTempControlled StorageType = "TEMP_CONTROLLED"
	StorageTypeHazardous      StorageType = "HAZARDOUS"
)

// String returns the string representation of the storage type
func (t StorageType) String() string {
	return string(t)
}

// ParseStorageTypes parses a comma-separated tag list into storage types.
// Empty segments are skipped.
func ParseStorageTypes(s string) []StorageType {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	types := make([]StorageType, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			types = append(types, StorageType(p))
		}
	}
	return types
}

// JoinStorageTypes renders storage types as a comma-separated tag list
func JoinStorageTypes(types []StorageType) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ",")
}

// LocationStatus represents the lifecycle status of a storage location
type LocationStatus string

const (
	LocationStatusActive     LocationStatus = "ACTIVE"
	LocationStatusInactive   LocationStatus = "INACTIVE"
	LocationStatusQuarantine LocationStatus = "QUARANTINE"
)

// IsValid checks if the status is a valid LocationStatus
func (s LocationStatus) IsValid() bool {
	switch s {
	case LocationStatusActive, LocationStatusInactive, LocationStatusQuarantine:
		return true
	}
	return false
}

// String returns the string representation of LocationStatus
func (s LocationStatus) String() string {
	return string(s)
}

// Path identifies a location's position in the physical hierarchy
// (Site → Building → Zone → Aisle → Bay → Level).
type Path struct {
	Site     string `gorm:"type:varchar(30);not null"`
	Building string `gorm:"type:varchar(30);not null"`
	Zone     string `gorm:"type:varchar(30);not null"`
	Aisle    string `gorm:"type:varchar(30)"`
	Bay      string `gorm:"type:varchar(30)"`
	Level    string `gorm:"type:varchar(30)"`
}

// String renders the hierarchical path with "/" separators, omitting empty tail segments
func (p Path) String() string {
	segments := []string{p.Site, p.Building, p.Zone, p.Aisle, p.Bay, p.Level}
	end := len(segments)
	for end > 0 && segments[end-1] == "" {
		end--
	}
	return strings.Join(segments[:end], "/")
}

// Capacity is a storage-location capacity figure (ceiling or occupancy).
// A zero UnitCount ceiling means the location does not limit unit count.
type Capacity struct {
	Volume    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Weight    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UnitCount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// Add returns the component-wise sum of two capacity figures
func (c Capacity) Add(other Capacity) Capacity {
	return Capacity{
		Volume:    c.Volume.Add(other.Volume),
		Weight:    c.Weight.Add(other.Weight),
		UnitCount: c.UnitCount.Add(other.UnitCount),
	}
}

// Sub returns the component-wise difference of two capacity figures
func (c Capacity) Sub(other Capacity) Capacity {
	return Capacity{
		Volume:    c.Volume.Sub(other.Volume),
		Weight:    c.Weight.Sub(other.Weight),
		UnitCount: c.UnitCount.Sub(other.UnitCount),
	}
}

// IsZero returns true if all components are zero
func (c Capacity) IsZero() bool {
	return c.Volume.IsZero() && c.Weight.IsZero() && c.UnitCount.IsZero()
}

// IsNegative returns true if any component is negative
func (c Capacity) IsNegative() bool {
	return c.Volume.IsNegative() || c.Weight.IsNegative() || c.UnitCount.IsNegative()
}

// FitsWithin reports whether this figure fits within the given ceiling.
// Ceiling components of zero are treated as unconstrained.
func (c Capacity) FitsWithin(ceiling Capacity) bool {
	if ceiling.Volume.GreaterThan(decimal.Zero) && c.Volume.GreaterThan(ceiling.Volume) {
		return false
	}
	if ceiling.Weight.GreaterThan(decimal.Zero) && c.Weight.GreaterThan(ceiling.Weight) {
		return false
	}
	if ceiling.UnitCount.GreaterThan(decimal.Zero) && c.UnitCount.GreaterThan(ceiling.UnitCount) {
		return false
	}
	return true
}

// StorageLocation represents a leaf storage location in the warehouse hierarchy.
// It is the aggregate root for capacity tracking: occupancy and soft
// reservations are mutated only through ledger postings and the reservation
// methods below, never set directly.
type StorageLocation struct {
	shared.BaseAggregateRoot
	Code     string         `gorm:"type:varchar(50);not null;uniqueIndex"`
	Path     Path           `gorm:"embedded;embeddedPrefix:path_"`
	TypeTags string         `gorm:"type:varchar(255);not null;default:''"` // comma-separated storage-type tags
	Status   LocationStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'"`

	Ceiling  Capacity `gorm:"embedded;embeddedPrefix:ceiling_"`
	Occupied Capacity `gorm:"embedded;embeddedPrefix:occupied_"` // committed by ledger postings
	Reserved Capacity `gorm:"embedded;embeddedPrefix:reserved_"` // soft holds awaiting posting

	// AllowOverride permits occupancy above the ceiling for this location.
	AllowOverride bool `gorm:"not null;default:false"`
	// WarningThresholdPercent triggers a soft warning when projected
	// utilization crosses it (0 disables the warning).
	WarningThresholdPercent int `gorm:"not null;default:0"`

	Reservations []CapacityReservation `gorm:"foreignKey:LocationID;references:ID"`
}

// TableName returns the table name for GORM
func (StorageLocation) TableName() string {
	return "storage_locations"
}

// NewStorageLocation creates a new storage location
func NewStorageLocation(code string, path Path, tags []StorageType, ceiling Capacity) (*StorageLocation, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_LOCATION_CODE", "Location code cannot be empty")
	}
	if path.Site == "" {
		return nil, shared.NewDomainError("INVALID_LOCATION_PATH", "Location path must include a site")
	}
	if ceiling.IsNegative() {
		return nil, shared.NewDomainError("INVALID_CAPACITY", "Capacity ceiling cannot be negative")
	}

	return &StorageLocation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Path:              path,
		TypeTags:          JoinStorageTypes(tags),
		Status:            LocationStatusActive,
		Ceiling:           ceiling,
		Reservations:      make([]CapacityReservation, 0),
	}, nil
}

// StorageTypes returns the location's declared storage-type tag set
func (l *StorageLocation) StorageTypes() []StorageType {
	return ParseStorageTypes(l.TypeTags)
}

// Accepts reports whether the item's required tags are a subset of the
// location's declared tag set. An item with no requirement is accepted
// anywhere.
func (l *StorageLocation) Accepts(required []StorageType) bool {
	if len(required) == 0 {
		return true
	}
	declared := make(map[StorageType]struct{})
	for _, t := range l.StorageTypes() {
		declared[t] = struct{}{}
	}
	for _, r := range required {
		if _, ok := declared[r]; !ok {
			return false
		}
	}
	return true
}

// IsActive returns true if the location can receive stock
func (l *StorageLocation) IsActive() bool {
	return l.Status == LocationStatusActive
}

// Committed returns occupancy plus outstanding soft reservations
func (l *StorageLocation) Committed() Capacity {
	return l.Occupied.Add(l.Reserved)
}

// CapacityAvailable reports whether the given demand fits in the remaining
// headroom (ceiling minus occupied minus reserved). Locations with the
// override flag always report availability.
func (l *StorageLocation) CapacityAvailable(demand Capacity) bool {
	if l.AllowOverride {
		return true
	}
	return l.Committed().Add(demand).FitsWithin(l.Ceiling)
}

// UtilizationPercent returns the projected unit-count utilization after the
// given demand, or 0 when the location has no unit-count ceiling.
func (l *StorageLocation) UtilizationPercent(demand Capacity) int {
	if l.Ceiling.UnitCount.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	projected := l.Committed().UnitCount.Add(demand.UnitCount)
	return int(projected.Mul(decimal.NewFromInt(100)).Div(l.Ceiling.UnitCount).IntPart())
}

// Reserve places a soft hold on the location's capacity. The hold must be
// confirmed by a ledger posting before expireAt or it is swept back.
// Returns the created reservation.
func (l *StorageLocation) Reserve(demand Capacity, jobID, rowID string, expireAt time.Time) (*CapacityReservation, error) {
	if demand.IsNegative() || demand.IsZero() {
		return nil, shared.NewDomainError("INVALID_CAPACITY", "Reservation demand must be positive")
	}
	if !l.IsActive() {
		return nil, shared.NewDomainError("LOCATION_INACTIVE", fmt.Sprintf("Location %s is not active", l.Code))
	}
	if !l.CapacityAvailable(demand) {
		return nil, shared.ErrCapacityConflict
	}

	l.Reserved = l.Reserved.Add(demand)
	l.UpdatedAt = time.Now()
	l.IncrementVersion()

	reservation := NewCapacityReservation(l.ID, demand, jobID, rowID, expireAt)
	l.Reservations = append(l.Reservations, *reservation)

	l.AddDomainEvent(NewCapacityReservedEvent(l, demand, reservation.ID, jobID))

	return reservation, nil
}

// ReleaseReservation returns a reservation's hold to available headroom
// (cancellation or expiry).
func (l *StorageLocation) ReleaseReservation(reservationID uuid.UUID) error {
	idx := l.findActiveReservation(reservationID)
	if idx < 0 {
		return shared.NewDomainError("RESERVATION_NOT_FOUND", "Capacity reservation not found or already settled")
	}

	res := &l.Reservations[idx]
	l.Reserved = l.Reserved.Sub(res.Held)
	if l.Reserved.IsNegative() {
		l.Reserved = Capacity{}
	}
	res.Release()
	l.UpdatedAt = time.Now()
	l.IncrementVersion()

	l.AddDomainEvent(NewCapacityReleasedEvent(l, res.Held, res.ID, res.JobID))

	return nil
}

// ConfirmReservation converts a soft hold into committed occupancy at
// posting time. The posting engine re-checks capacity here because
// concurrent jobs may have consumed headroom since allocation.
func (l *StorageLocation) ConfirmReservation(reservationID uuid.UUID) error {
	idx := l.findActiveReservation(reservationID)
	if idx < 0 {
		return shared.NewDomainError("RESERVATION_NOT_FOUND", "Capacity reservation not found or already settled")
	}

	res := &l.Reservations[idx]
	projected := l.Occupied.Add(res.Held)
	if !l.AllowOverride && !projected.FitsWithin(l.Ceiling) {
		return shared.ErrCapacityConflict
	}

	l.Reserved = l.Reserved.Sub(res.Held)
	if l.Reserved.IsNegative() {
		l.Reserved = Capacity{}
	}
	l.Occupied = projected
	res.Confirm()
	l.UpdatedAt = time.Now()
	l.IncrementVersion()

	return nil
}

// ApplyInbound raises committed occupancy without a reservation. Used for
// stocktake gains, where the goods are already physically present and the
// ceiling cannot be enforced after the fact.
func (l *StorageLocation) ApplyInbound(delta Capacity) error {
	if delta.IsNegative() {
		return shared.NewDomainError("INVALID_CAPACITY", "Inbound delta cannot be negative")
	}
	l.Occupied = l.Occupied.Add(delta)
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}

// ApplyOutbound reduces committed occupancy when stock leaves the location
// (pick postings and rebuilds).
func (l *StorageLocation) ApplyOutbound(delta Capacity) error {
	if delta.IsNegative() {
		return shared.NewDomainError("INVALID_CAPACITY", "Outbound delta cannot be negative")
	}
	l.Occupied = l.Occupied.Sub(delta)
	if l.Occupied.IsNegative() {
		l.Occupied = Capacity{}
	}
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}

// SetOccupied overwrites committed occupancy. Used only by the startup
// rebuild that recomputes occupancy from the ledger.
func (l *StorageLocation) SetOccupied(occupied Capacity) error {
	if occupied.IsNegative() {
		return shared.NewDomainError("INVALID_CAPACITY", "Occupancy cannot be negative")
	}
	l.Occupied = occupied
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}

// ActiveReservations returns all unsettled reservations
func (l *StorageLocation) ActiveReservations() []CapacityReservation {
	active := make([]CapacityReservation, 0)
	for _, res := range l.Reservations {
		if res.IsActive() {
			active = append(active, res)
		}
	}
	return active
}

// ExpiredReservations returns reservations past their expiry that are not yet settled
func (l *StorageLocation) ExpiredReservations() []CapacityReservation {
	expired := make([]CapacityReservation, 0)
	now := time.Now()
	for _, res := range l.Reservations {
		if res.IsActive() && res.ExpireAt.Before(now) {
			expired = append(expired, res)
		}
	}
	return expired
}

func (l *StorageLocation) findActiveReservation(id uuid.UUID) int {
	for idx := range l.Reservations {
		if l.Reservations[idx].ID == id && l.Reservations[idx].IsActive() {
			return idx
		}
	}
	return -1
}
