package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wms/backend/internal/domain/handling"
	"github.com/wms/backend/internal/domain/job"
	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/location"
	"github.com/wms/backend/internal/domain/shared"
)

// Config carries the engine's policy knobs. It is passed in at
// construction; the engine holds no global mutable state.
type Config struct {
	PickPolicy          PolicyType
	Placement           PlacementPolicy
	ReservationTTL      time.Duration
	DefaultUnitTypeCode string
	MaxCapacityRetries  int
}

// LineFailure reports one line or unit that could not be allocated.
// Failures are collected and returned, never silently dropped; other
// lines of the same job may still succeed.
type LineFailure struct {
	LineNo   int    `json:"line_no"`
	ItemCode string `json:"item_code"`
	Code     string `json:"code"`
	Reason   string `json:"reason"`
}

// Result is the outcome of one allocation run
type Result struct {
	Rows     []job.AllocationRow `json:"rows"`
	Failures []LineFailure       `json:"failures"`
}

// Engine transforms a job's requested lines into concrete allocation rows,
// reserving capacity and anchoring handling units along the way.
type Engine struct {
	cfg       Config
	locations location.StorageLocationRepository
	units     handling.HandlingUnitRepository
	unitTypes handling.HandlingUnitTypeRepository
	entries   ledger.Repository
	lotOrder  LotSelectionStrategy
	placement PlacementStrategy
}

// NewEngine creates an allocation engine with the given policies
func NewEngine(
	cfg Config,
	locations location.StorageLocationRepository,
	units handling.HandlingUnitRepository,
	unitTypes handling.HandlingUnitTypeRepository,
	entries ledger.Repository,
) (*Engine, error) {
	lotOrder, err := NewLotSelectionStrategy(cfg.PickPolicy)
	if err != nil {
		return nil, err
	}
	placement, err := NewPlacementStrategy(cfg.Placement)
	if err != nil {
		return nil, err
	}
	if cfg.ReservationTTL <= 0 {
		return nil, shared.NewDomainError("INVALID_CONFIG", "Reservation TTL must be positive")
	}
	if cfg.MaxCapacityRetries < 0 {
		return nil, shared.NewDomainError("INVALID_CONFIG", "Capacity retry count cannot be negative")
	}
	return &Engine{
		cfg:       cfg,
		locations: locations,
		units:     units,
		unitTypes: unitTypes,
		entries:   entries,
		lotOrder:  lotOrder,
		placement: placement,
	}, nil
}

// Allocate plans all lines of the job according to its type. The returned
// result carries the planned rows plus per-line failures; the caller
// records both on the job aggregate.
func (e *Engine) Allocate(ctx context.Context, j *job.WarehouseJob) (*Result, error) {
	switch j.Type {
	case job.JobTypePutaway:
		return e.planPutaway(ctx, j)
	case job.JobTypePick:
		return e.planPick(ctx, j)
	case job.JobTypeMove, job.JobTypeVAS:
		// A VAS job is a move whose intervening processing step is
		// external to this engine.
		return e.planMove(ctx, j)
	case job.JobTypeStocktake:
		return e.planStocktake(ctx, j)
	}
	return nil, shared.NewDomainError("INVALID_JOB", fmt.Sprintf("Cannot allocate job type %s", j.Type))
}

func newRow(j *job.WarehouseJob, rowNo int, line *job.JobLine, qty decimal.Decimal) job.AllocationRow {
	return job.AllocationRow{
		BaseEntity: shared.NewBaseEntity(),
		JobID:      j.ID,
		RowNo:      rowNo,
		LineNo:     line.LineNo,
		ItemCode:   line.ItemCode,
		Batch:      line.Batch,
		Quantity:   qty,
		UOM:        line.UOM,
	}
}

// reserveAt places a soft hold on the location, retrying a bounded number
// of times when the optimistic save loses to a concurrent writer.
func (e *Engine) reserveAt(ctx context.Context, loc *location.StorageLocation, demand location.Capacity, jobCode, rowRef string) (*location.CapacityReservation, error) {
	expireAt := time.Now().Add(e.cfg.ReservationTTL)
	for attempt := 0; ; attempt++ {
		res, err := loc.Reserve(demand, jobCode, rowRef, expireAt)
		if err != nil {
			return nil, err
		}
		err = e.locations.SaveWithLock(ctx, loc)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) || attempt >= e.cfg.MaxCapacityRetries {
			return nil, err
		}
		fresh, ferr := e.locations.FindByID(ctx, loc.ID)
		if ferr != nil {
			return nil, ferr
		}
		*loc = *fresh
	}
}

// unitDemand is the capacity footprint one handling unit consumes at a location
func unitDemand(volume, weight decimal.Decimal) location.Capacity {
	return location.Capacity{
		Volume:    volume,
		Weight:    weight,
		UnitCount: decimal.NewFromInt(1),
	}
}

func (e *Engine) planPutaway(ctx context.Context, j *job.WarehouseJob) (*Result, error) {
	result := &Result{Rows: make([]job.AllocationRow, 0), Failures: make([]LineFailure, 0)}

	huType, err := e.unitTypes.FindByCode(ctx, e.cfg.DefaultUnitTypeCode)
	if err != nil {
		return nil, err
	}

	for idx := range j.Lines {
		line := &j.Lines[idx]
		required := location.ParseStorageTypes(line.RequiredStorage)

		loads, err := handling.SplitQuantity(line.Quantity, huType)
		if err != nil {
			result.Failures = append(result.Failures, LineFailure{
				LineNo: line.LineNo, ItemCode: line.ItemCode,
				Code: "ALLOCATION_FAILED", Reason: err.Error(),
			})
			continue
		}

		candidates, err := e.locations.FindCandidates(ctx, required)
		if err != nil {
			return nil, err
		}
		stocked, err := e.stockedLocations(ctx, line.ItemCode)
		if err != nil {
			return nil, err
		}
		ordered := e.placement.OrderCandidates(candidates, stocked)

		for _, load := range loads {
			row, ok := e.placeLoad(ctx, j, line, load, huType, ordered, len(result.Rows)+1)
			if !ok {
				// other units of the same line may still succeed
				result.Failures = append(result.Failures, LineFailure{
					LineNo: line.LineNo, ItemCode: line.ItemCode,
					Code:   shared.ErrAllocationFailed.Code,
					Reason: fmt.Sprintf("No compatible location with headroom for %s units of %s", load, line.ItemCode),
				})
				continue
			}
			result.Rows = append(result.Rows, *row)
		}
	}

	return result, nil
}

// placeLoad anchors one new handling unit at the first ordered candidate
// with headroom. A unit lands at exactly one destination; when no single
// candidate can take the whole unit the load fails rather than splitting.
func (e *Engine) placeLoad(ctx context.Context, j *job.WarehouseJob, line *job.JobLine, load decimal.Decimal, huType *handling.HandlingUnitType, ordered []location.StorageLocation, rowNo int) (*job.AllocationRow, bool) {
	demand := unitDemand(huType.Volume, huType.Weight)

	for idx := range ordered {
		loc := &ordered[idx]
		if !loc.CapacityAvailable(demand) {
			continue
		}

		row := newRow(j, rowNo, line, load)
		res, err := e.reserveAt(ctx, loc, demand, j.Code, row.ID.String())
		if err != nil {
			// headroom went to a concurrent job; try the next candidate
			continue
		}

		unit := handling.NewHandlingUnit(huType)
		if err := unit.AssignTo(loc.ID); err != nil {
			_ = loc.ReleaseReservation(res.ID)
			_ = e.locations.SaveWithLock(ctx, loc)
			continue
		}
		if err := e.units.Save(ctx, unit); err != nil {
			_ = loc.ReleaseReservation(res.ID)
			_ = e.locations.SaveWithLock(ctx, loc)
			continue
		}

		row.DestLocationID = &loc.ID
		row.HandlingUnitID = &unit.ID
		row.ReservationID = &res.ID
		return &row, true
	}
	return nil, false
}

// stockedLocations returns the set of locations already holding the item
func (e *Engine) stockedLocations(ctx context.Context, itemCode string) (map[uuid.UUID]bool, error) {
	lots, err := e.entries.FindLots(ctx, itemCode, nil)
	if err != nil {
		return nil, err
	}
	stocked := make(map[uuid.UUID]bool, len(lots))
	for _, lot := range lots {
		stocked[lot.LocationID] = true
	}
	return stocked, nil
}

// locationCodes maps active location IDs to codes for deterministic ordering
func (e *Engine) locationCodes(ctx context.Context) (map[uuid.UUID]string, error) {
	active, err := e.locations.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	codes := make(map[uuid.UUID]string, len(active))
	for _, loc := range active {
		codes[loc.ID] = loc.Code
	}
	return codes, nil
}

// pickableLots returns the line's candidate lots, excluding staging stock
func (e *Engine) pickableLots(ctx context.Context, j *job.WarehouseJob, line *job.JobLine) ([]ledger.StockLot, error) {
	lots, err := e.entries.FindLots(ctx, line.ItemCode, nil)
	if err != nil {
		return nil, err
	}
	filtered := make([]ledger.StockLot, 0, len(lots))
	for _, lot := range lots {
		if lot.LocationID == j.StagingLocationID {
			continue
		}
		if line.Batch != "" && lot.Batch != line.Batch {
			continue
		}
		filtered = append(filtered, lot)
	}
	return filtered, nil
}

func (e *Engine) planPick(ctx context.Context, j *job.WarehouseJob) (*Result, error) {
	result := &Result{Rows: make([]job.AllocationRow, 0), Failures: make([]LineFailure, 0)}

	codes, err := e.locationCodes(ctx)
	if err != nil {
		return nil, err
	}

	for idx := range j.Lines {
		line := &j.Lines[idx]

		lots, err := e.pickableLots(ctx, j, line)
		if err != nil {
			return nil, err
		}

		// the shortfall check runs before any row is planned so a
		// guaranteed-to-fail line makes no reservations at all
		available := decimal.Zero
		for _, lot := range lots {
			available = available.Add(lot.Quantity)
		}
		if available.LessThan(line.Quantity) {
			result.Failures = append(result.Failures, LineFailure{
				LineNo: line.LineNo, ItemCode: line.ItemCode,
				Code:   shared.ErrInsufficientStock.Code,
				Reason: fmt.Sprintf("Requested %s, available %s", line.Quantity, available),
			})
			continue
		}

		remaining := line.Quantity
		for _, lot := range e.lotOrder.OrderLots(lots, codes) {
			if remaining.LessThanOrEqual(decimal.Zero) {
				break
			}
			take := decimal.Min(remaining, lot.Quantity)
			row := newRow(j, len(result.Rows)+1, line, take)
			locID := lot.LocationID
			row.SourceLocationID = &locID
			row.HandlingUnitID = lot.HandlingUnitID
			row.Batch = lot.Batch
			result.Rows = append(result.Rows, row)
			remaining = remaining.Sub(take)
		}
	}

	return result, nil
}

// resolveDestination finds the move destination: the line's preferred
// location when set, otherwise the best placement candidate.
func (e *Engine) resolveDestination(ctx context.Context, line *job.JobLine, demand location.Capacity) (*location.StorageLocation, error) {
	if line.PreferredLocation != "" {
		dest, err := e.locations.FindByCode(ctx, line.PreferredLocation)
		if err != nil {
			return nil, err
		}
		if !dest.IsActive() {
			return nil, shared.NewDomainError("LOCATION_INACTIVE", fmt.Sprintf("Location %s is not active", dest.Code))
		}
		return dest, nil
	}

	required := location.ParseStorageTypes(line.RequiredStorage)
	candidates, err := e.locations.FindCandidates(ctx, required)
	if err != nil {
		return nil, err
	}
	stocked, err := e.stockedLocations(ctx, line.ItemCode)
	if err != nil {
		return nil, err
	}
	for _, cand := range e.placement.OrderCandidates(candidates, stocked) {
		if cand.CapacityAvailable(demand) {
			loc := cand
			return &loc, nil
		}
	}
	return nil, shared.ErrAllocationFailed
}

func (e *Engine) planMove(ctx context.Context, j *job.WarehouseJob) (*Result, error) {
	result := &Result{Rows: make([]job.AllocationRow, 0), Failures: make([]LineFailure, 0)}

	codes, err := e.locationCodes(ctx)
	if err != nil {
		return nil, err
	}

	for idx := range j.Lines {
		line := &j.Lines[idx]

		lots, err := e.pickableLots(ctx, j, line)
		if err != nil {
			return nil, err
		}

		demand := location.Capacity{UnitCount: decimal.NewFromInt(1)}
		dest, err := e.resolveDestination(ctx, line, demand)
		if err != nil {
			result.Failures = append(result.Failures, LineFailure{
				LineNo: line.LineNo, ItemCode: line.ItemCode,
				Code: shared.ErrAllocationFailed.Code, Reason: err.Error(),
			})
			continue
		}

		// stock already at the destination cannot move onto itself
		available := decimal.Zero
		sources := make([]ledger.StockLot, 0, len(lots))
		for _, lot := range lots {
			if lot.LocationID == dest.ID {
				continue
			}
			sources = append(sources, lot)
			available = available.Add(lot.Quantity)
		}
		if available.LessThan(line.Quantity) {
			result.Failures = append(result.Failures, LineFailure{
				LineNo: line.LineNo, ItemCode: line.ItemCode,
				Code:   shared.ErrInsufficientStock.Code,
				Reason: fmt.Sprintf("Requested %s, available %s outside destination", line.Quantity, available),
			})
			continue
		}

		remaining := line.Quantity
		for _, lot := range e.lotOrder.OrderLots(sources, codes) {
			if remaining.LessThanOrEqual(decimal.Zero) {
				break
			}
			take := decimal.Min(remaining, lot.Quantity)
			rowDemand := e.lotFootprint(ctx, lot)

			row := newRow(j, len(result.Rows)+1, line, take)
			res, err := e.reserveAt(ctx, dest, rowDemand, j.Code, row.ID.String())
			if err != nil {
				result.Failures = append(result.Failures, LineFailure{
					LineNo: line.LineNo, ItemCode: line.ItemCode,
					Code: shared.ErrCapacityConflict.Code, Reason: err.Error(),
				})
				break
			}

			srcID := lot.LocationID
			row.SourceLocationID = &srcID
			row.DestLocationID = &dest.ID
			row.HandlingUnitID = lot.HandlingUnitID
			row.Batch = lot.Batch
			row.ReservationID = &res.ID
			result.Rows = append(result.Rows, row)
			remaining = remaining.Sub(take)
		}
	}

	return result, nil
}

// lotFootprint is the destination capacity demand of moving one lot: the
// handling unit's footprint when the lot rides on one, a bare unit count
// otherwise.
func (e *Engine) lotFootprint(ctx context.Context, lot ledger.StockLot) location.Capacity {
	if lot.HandlingUnitID != nil {
		if unit, err := e.units.FindByID(ctx, *lot.HandlingUnitID); err == nil {
			return unitDemand(unit.Volume, unit.Weight)
		}
	}
	return location.Capacity{UnitCount: decimal.NewFromInt(1)}
}

// planStocktake turns counted quantities into signed adjustment rows. A
// line's quantity is the physically counted figure; the row carries the
// difference against the ledger balance at the counted location. Gains
// post inbound, losses post outbound, zero differences need no row.
func (e *Engine) planStocktake(ctx context.Context, j *job.WarehouseJob) (*Result, error) {
	result := &Result{Rows: make([]job.AllocationRow, 0), Failures: make([]LineFailure, 0)}

	for idx := range j.Lines {
		line := &j.Lines[idx]

		if line.PreferredLocation == "" {
			result.Failures = append(result.Failures, LineFailure{
				LineNo: line.LineNo, ItemCode: line.ItemCode,
				Code: "ALLOCATION_FAILED", Reason: "Stocktake line must name the counted location",
			})
			continue
		}
		loc, err := e.locations.FindByCode(ctx, line.PreferredLocation)
		if err != nil {
			result.Failures = append(result.Failures, LineFailure{
				LineNo: line.LineNo, ItemCode: line.ItemCode,
				Code: "ALLOCATION_FAILED", Reason: err.Error(),
			})
			continue
		}

		balance, err := e.entries.Balance(ctx, line.ItemCode, &loc.ID, line.Batch)
		if err != nil {
			return nil, err
		}

		delta := line.Quantity.Sub(balance)
		if delta.IsZero() {
			continue
		}

		row := newRow(j, len(result.Rows)+1, line, delta.Abs())
		if delta.GreaterThan(decimal.Zero) {
			row.DestLocationID = &loc.ID
		} else {
			row.SourceLocationID = &loc.ID
		}
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}
