package allocation

import (
	"sort"

	"github.com/google/uuid"
	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/location"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/domain/shared/strategy"
)

// PolicyType defines the lot-selection policy for pick-type jobs
type PolicyType string

const (
	// PolicyTypeFIFO consumes the oldest lots first by ledger sequence
	PolicyTypeFIFO PolicyType = "FIFO"
	// PolicyTypeLIFO consumes the newest lots first by ledger sequence
	PolicyTypeLIFO PolicyType = "LIFO"
	// PolicyTypeLocationPreference consumes lots ordered by location code
	PolicyTypeLocationPreference PolicyType = "LOCATION_PREFERENCE"
)

// IsValid checks if the policy type is valid
func (t PolicyType) IsValid() bool {
	switch t {
	case PolicyTypeFIFO, PolicyTypeLIFO, PolicyTypeLocationPreference:
		return true
	}
	return false
}

// String returns the string representation
func (t PolicyType) String() string {
	return string(t)
}

// AllPolicyTypes returns all valid lot-selection policy types
func AllPolicyTypes() []PolicyType {
	return []PolicyType{PolicyTypeFIFO, PolicyTypeLIFO, PolicyTypeLocationPreference}
}

// LotSelectionStrategy orders candidate stock lots for greedy consumption.
// Ordering reads ledger sequence numbers, never wall-clock time, and breaks
// ties deterministically so allocation runs are reproducible given the same
// ledger state.
type LotSelectionStrategy interface {
	strategy.Strategy
	// PolicyType returns the lot-selection policy type
	PolicyType() PolicyType
	// OrderLots returns the lots in consumption order. locationCodes maps
	// location IDs to codes for tie-breaking; unknown IDs sort last.
	OrderLots(lots []ledger.StockLot, locationCodes map[uuid.UUID]string) []ledger.StockLot
}

// lotTieBreak orders equally eligible lots by location code, then handling
// unit ID, then batch.
func lotTieBreak(a, b ledger.StockLot, locationCodes map[uuid.UUID]string) bool {
	codeA, codeB := locationCodes[a.LocationID], locationCodes[b.LocationID]
	if codeA != codeB {
		return codeA < codeB
	}
	unitA, unitB := "", ""
	if a.HandlingUnitID != nil {
		unitA = a.HandlingUnitID.String()
	}
	if b.HandlingUnitID != nil {
		unitB = b.HandlingUnitID.String()
	}
	if unitA != unitB {
		return unitA < unitB
	}
	return a.Batch < b.Batch
}

// FIFOLotStrategy selects the lot with the oldest inbound ledger entry first
type FIFOLotStrategy struct {
	strategy.BaseStrategy
}

// NewFIFOLotStrategy creates a new FIFO lot-selection strategy
func NewFIFOLotStrategy() *FIFOLotStrategy {
	return &FIFOLotStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"fifo_lot_selection",
			strategy.StrategyTypePicking,
			"FIFO lot selection - consumes lots with the oldest ledger sequence first",
		),
	}
}

// PolicyType returns the lot-selection policy type
func (s *FIFOLotStrategy) PolicyType() PolicyType {
	return PolicyTypeFIFO
}

// OrderLots orders lots oldest first by first inbound sequence
func (s *FIFOLotStrategy) OrderLots(lots []ledger.StockLot, locationCodes map[uuid.UUID]string) []ledger.StockLot {
	sorted := make([]ledger.StockLot, len(lots))
	copy(sorted, lots)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FirstSequence != sorted[j].FirstSequence {
			return sorted[i].FirstSequence < sorted[j].FirstSequence
		}
		return lotTieBreak(sorted[i], sorted[j], locationCodes)
	})
	return sorted
}

// LIFOLotStrategy selects the lot with the newest inbound ledger entry first
type LIFOLotStrategy struct {
	strategy.BaseStrategy
}

// NewLIFOLotStrategy creates a new LIFO lot-selection strategy
func NewLIFOLotStrategy() *LIFOLotStrategy {
	return &LIFOLotStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"lifo_lot_selection",
			strategy.StrategyTypePicking,
			"LIFO lot selection - consumes lots with the newest ledger sequence first",
		),
	}
}

// PolicyType returns the lot-selection policy type
func (s *LIFOLotStrategy) PolicyType() PolicyType {
	return PolicyTypeLIFO
}

// OrderLots orders lots newest first by last inbound sequence
func (s *LIFOLotStrategy) OrderLots(lots []ledger.StockLot, locationCodes map[uuid.UUID]string) []ledger.StockLot {
	sorted := make([]ledger.StockLot, len(lots))
	copy(sorted, lots)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].LastSequence != sorted[j].LastSequence {
			return sorted[i].LastSequence > sorted[j].LastSequence
		}
		return lotTieBreak(sorted[i], sorted[j], locationCodes)
	})
	return sorted
}

// LocationPreferenceLotStrategy walks locations in code order, oldest lots
// first within each location. Useful when pick-path distance matters more
// than lot age.
type LocationPreferenceLotStrategy struct {
	strategy.BaseStrategy
}

// NewLocationPreferenceLotStrategy creates a new location-preference lot-selection strategy
func NewLocationPreferenceLotStrategy() *LocationPreferenceLotStrategy {
	return &LocationPreferenceLotStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"location_preference_lot_selection",
			strategy.StrategyTypePicking,
			"Location-preference lot selection - consumes lots in location code order",
		),
	}
}

// PolicyType returns the lot-selection policy type
func (s *LocationPreferenceLotStrategy) PolicyType() PolicyType {
	return PolicyTypeLocationPreference
}

// OrderLots orders lots by location code, then oldest first
func (s *LocationPreferenceLotStrategy) OrderLots(lots []ledger.StockLot, locationCodes map[uuid.UUID]string) []ledger.StockLot {
	sorted := make([]ledger.StockLot, len(lots))
	copy(sorted, lots)
	sort.SliceStable(sorted, func(i, j int) bool {
		codeI, codeJ := locationCodes[sorted[i].LocationID], locationCodes[sorted[j].LocationID]
		if codeI != codeJ {
			return codeI < codeJ
		}
		if sorted[i].FirstSequence != sorted[j].FirstSequence {
			return sorted[i].FirstSequence < sorted[j].FirstSequence
		}
		return lotTieBreak(sorted[i], sorted[j], locationCodes)
	})
	return sorted
}

// NewLotSelectionStrategy creates the strategy for the given policy type
func NewLotSelectionStrategy(policy PolicyType) (LotSelectionStrategy, error) {
	switch policy {
	case PolicyTypeFIFO:
		return NewFIFOLotStrategy(), nil
	case PolicyTypeLIFO:
		return NewLIFOLotStrategy(), nil
	case PolicyTypeLocationPreference:
		return NewLocationPreferenceLotStrategy(), nil
	}
	return nil, shared.NewDomainError("INVALID_POLICY", "Unknown lot-selection policy: "+policy.String())
}

// PlacementPolicy defines the destination ordering for putaway-type jobs
type PlacementPolicy string

const (
	// PlacementPolicyFirstFit walks candidate locations in code order
	PlacementPolicyFirstFit PlacementPolicy = "FIRST_FIT"
	// PlacementPolicyNearestToStock prefers locations already holding the item
	PlacementPolicyNearestToStock PlacementPolicy = "NEAREST_TO_STOCK"
)

// IsValid checks if the placement policy is valid
func (p PlacementPolicy) IsValid() bool {
	return p == PlacementPolicyFirstFit || p == PlacementPolicyNearestToStock
}

// String returns the string representation
func (p PlacementPolicy) String() string {
	return string(p)
}

// PlacementStrategy orders candidate destination locations for putaway
type PlacementStrategy interface {
	strategy.Strategy
	// Policy returns the placement policy type
	Policy() PlacementPolicy
	// OrderCandidates returns candidates in placement preference order.
	// stocked flags locations already holding the item being placed.
	OrderCandidates(candidates []location.StorageLocation, stocked map[uuid.UUID]bool) []location.StorageLocation
}

// FirstFitPlacementStrategy places into the first candidate with headroom,
// in location code order.
type FirstFitPlacementStrategy struct {
	strategy.BaseStrategy
}

// NewFirstFitPlacementStrategy creates a new first-fit placement strategy
func NewFirstFitPlacementStrategy() *FirstFitPlacementStrategy {
	return &FirstFitPlacementStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"first_fit_placement",
			strategy.StrategyTypePlacement,
			"First-fit placement - fills candidate locations in code order",
		),
	}
}

// Policy returns the placement policy type
func (s *FirstFitPlacementStrategy) Policy() PlacementPolicy {
	return PlacementPolicyFirstFit
}

// OrderCandidates orders candidates by location code
func (s *FirstFitPlacementStrategy) OrderCandidates(candidates []location.StorageLocation, _ map[uuid.UUID]bool) []location.StorageLocation {
	sorted := make([]location.StorageLocation, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Code < sorted[j].Code
	})
	return sorted
}

// NearestToStockPlacementStrategy prefers locations that already hold the
// item, falling back to code order.
type NearestToStockPlacementStrategy struct {
	strategy.BaseStrategy
}

// NewNearestToStockPlacementStrategy creates a new nearest-to-stock placement strategy
func NewNearestToStockPlacementStrategy() *NearestToStockPlacementStrategy {
	return &NearestToStockPlacementStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"nearest_to_stock_placement",
			strategy.StrategyTypePlacement,
			"Nearest-to-stock placement - prefers locations already holding the item",
		),
	}
}

// Policy returns the placement policy type
func (s *NearestToStockPlacementStrategy) Policy() PlacementPolicy {
	return PlacementPolicyNearestToStock
}

// OrderCandidates puts stocked locations first, then code order within each group
func (s *NearestToStockPlacementStrategy) OrderCandidates(candidates []location.StorageLocation, stocked map[uuid.UUID]bool) []location.StorageLocation {
	sorted := make([]location.StorageLocation, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := stocked[sorted[i].ID], stocked[sorted[j].ID]
		if si != sj {
			return si
		}
		return sorted[i].Code < sorted[j].Code
	})
	return sorted
}

// NewPlacementStrategy creates the strategy for the given placement policy
func NewPlacementStrategy(policy PlacementPolicy) (PlacementStrategy, error) {
	switch policy {
	case PlacementPolicyFirstFit:
		return NewFirstFitPlacementStrategy(), nil
	case PlacementPolicyNearestToStock:
		return NewNearestToStockPlacementStrategy(), nil
	}
	return nil, shared.NewDomainError("INVALID_POLICY", "Unknown placement policy: "+policy.String())
}
