package warehouse

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/wms/backend/internal/domain/allocation"
	"github.com/wms/backend/internal/domain/handling"
	"github.com/wms/backend/internal/domain/job"
	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/location"
	"github.com/wms/backend/internal/domain/shared"
)

type fakeLocationRepo struct {
	mu   sync.Mutex
	locs map[uuid.UUID]*location.StorageLocation
}

func newFakeLocationRepo() *fakeLocationRepo {
	return &fakeLocationRepo{locs: make(map[uuid.UUID]*location.StorageLocation)}
}

func (r *fakeLocationRepo) add(loc *location.StorageLocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *loc
	r.locs[loc.ID] = &copied
}

func (r *fakeLocationRepo) FindByID(_ context.Context, id uuid.UUID) (*location.StorageLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *loc
	return &copied, nil
}

func (r *fakeLocationRepo) FindByCode(_ context.Context, code string) (*location.StorageLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, loc := range r.locs {
		if loc.Code == code {
			copied := *loc
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeLocationRepo) FindActive(_ context.Context) ([]location.StorageLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]location.StorageLocation, 0, len(r.locs))
	for _, loc := range r.locs {
		if loc.IsActive() {
			result = append(result, *loc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (r *fakeLocationRepo) FindCandidates(_ context.Context, required []location.StorageType) ([]location.StorageLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]location.StorageLocation, 0)
	for _, loc := range r.locs {
		if loc.IsActive() && loc.Accepts(required) {
			result = append(result, *loc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (r *fakeLocationRepo) FindAll(_ context.Context, _ shared.Filter) ([]location.StorageLocation, error) {
	return r.FindActive(context.Background())
}

func (r *fakeLocationRepo) Save(_ context.Context, loc *location.StorageLocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *loc
	r.locs[loc.ID] = &copied
	return nil
}

func (r *fakeLocationRepo) SaveWithLock(_ context.Context, loc *location.StorageLocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.locs[loc.ID]
	if ok && stored.Version >= loc.Version {
		return shared.ErrConcurrencyConflict
	}
	copied := *loc
	r.locs[loc.ID] = &copied
	return nil
}

func (r *fakeLocationRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	return int64(len(r.locs)), nil
}

// fakeReservationRepo reads reservations out of the location store, the way
// the real repository reads the child table of the aggregate
type fakeReservationRepo struct {
	locations *fakeLocationRepo
}

func (r *fakeReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*location.CapacityReservation, error) {
	r.locations.mu.Lock()
	defer r.locations.mu.Unlock()
	for _, loc := range r.locations.locs {
		for idx := range loc.Reservations {
			if loc.Reservations[idx].ID == id {
				copied := loc.Reservations[idx]
				return &copied, nil
			}
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeReservationRepo) FindByLocation(_ context.Context, locationID uuid.UUID) ([]location.CapacityReservation, error) {
	r.locations.mu.Lock()
	defer r.locations.mu.Unlock()
	loc, ok := r.locations.locs[locationID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return append([]location.CapacityReservation(nil), loc.Reservations...), nil
}

func (r *fakeReservationRepo) FindActiveByJob(_ context.Context, jobID string) ([]location.CapacityReservation, error) {
	r.locations.mu.Lock()
	defer r.locations.mu.Unlock()
	result := make([]location.CapacityReservation, 0)
	for _, loc := range r.locations.locs {
		for idx := range loc.Reservations {
			res := &loc.Reservations[idx]
			if res.JobID == jobID && res.IsActive() {
				result = append(result, *res)
			}
		}
	}
	return result, nil
}

func (r *fakeReservationRepo) FindExpired(_ context.Context) ([]location.CapacityReservation, error) {
	r.locations.mu.Lock()
	defer r.locations.mu.Unlock()
	result := make([]location.CapacityReservation, 0)
	for _, loc := range r.locations.locs {
		for idx := range loc.Reservations {
			res := &loc.Reservations[idx]
			if res.IsActive() && res.IsExpired() {
				result = append(result, *res)
			}
		}
	}
	return result, nil
}

func (r *fakeReservationRepo) Save(_ context.Context, _ *location.CapacityReservation) error {
	return nil
}

type fakeUnitRepo struct {
	mu    sync.Mutex
	units map[uuid.UUID]*handling.HandlingUnit
}

func newFakeUnitRepo() *fakeUnitRepo {
	return &fakeUnitRepo{units: make(map[uuid.UUID]*handling.HandlingUnit)}
}

func (r *fakeUnitRepo) FindByID(_ context.Context, id uuid.UUID) (*handling.HandlingUnit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUnitRepo) FindByLocation(_ context.Context, locationID uuid.UUID) ([]handling.HandlingUnit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]handling.HandlingUnit, 0)
	for _, u := range r.units {
		if u.LocationID != nil && *u.LocationID == locationID {
			result = append(result, *u)
		}
	}
	return result, nil
}

func (r *fakeUnitRepo) FindFreeByType(_ context.Context, typeCode string, limit int) ([]handling.HandlingUnit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]handling.HandlingUnit, 0)
	for _, u := range r.units {
		if u.TypeCode == typeCode && u.Status == handling.HandlingUnitStatusFree {
			result = append(result, *u)
		}
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *fakeUnitRepo) FindAll(_ context.Context, _ shared.Filter) ([]handling.HandlingUnit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]handling.HandlingUnit, 0, len(r.units))
	for _, u := range r.units {
		result = append(result, *u)
	}
	return result, nil
}

func (r *fakeUnitRepo) Save(_ context.Context, unit *handling.HandlingUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *unit
	r.units[unit.ID] = &copied
	return nil
}

func (r *fakeUnitRepo) SaveWithLock(_ context.Context, unit *handling.HandlingUnit) error {
	return r.Save(context.Background(), unit)
}

type fakeTypeRepo struct {
	types map[string]*handling.HandlingUnitType
}

func newFakeTypeRepo(types ...*handling.HandlingUnitType) *fakeTypeRepo {
	r := &fakeTypeRepo{types: make(map[string]*handling.HandlingUnitType)}
	for _, t := range types {
		r.types[t.Code] = t
	}
	return r
}

func (r *fakeTypeRepo) FindByCode(_ context.Context, code string) (*handling.HandlingUnitType, error) {
	t, ok := r.types[code]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return t, nil
}

func (r *fakeTypeRepo) FindAll(_ context.Context) ([]handling.HandlingUnitType, error) {
	result := make([]handling.HandlingUnitType, 0, len(r.types))
	for _, t := range r.types {
		result = append(result, *t)
	}
	return result, nil
}

func (r *fakeTypeRepo) Save(_ context.Context, huType *handling.HandlingUnitType) error {
	r.types[huType.Code] = huType
	return nil
}

type fakeLedgerRepo struct {
	mu      sync.Mutex
	seq     int64
	entries []ledger.Entry
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{entries: make([]ledger.Entry, 0)}
}

func (r *fakeLedgerRepo) Append(_ context.Context, entries []*ledger.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.seq++
		e.Sequence = r.seq
		r.entries = append(r.entries, *e)
	}
	return nil
}

func (r *fakeLedgerRepo) FindByItem(_ context.Context, itemCode string) ([]ledger.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]ledger.Entry, 0)
	for _, e := range r.entries {
		if e.ItemCode == itemCode {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *fakeLedgerRepo) FindByJob(_ context.Context, jobID string) ([]ledger.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]ledger.Entry, 0)
	for _, e := range r.entries {
		if e.JobID == jobID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *fakeLedgerRepo) FindLots(_ context.Context, itemCode string, locationIDs []uuid.UUID) ([]ledger.StockLot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(locationIDs))
	for _, id := range locationIDs {
		wanted[id] = true
	}
	filtered := make([]ledger.Entry, 0)
	for _, e := range r.entries {
		if e.ItemCode != itemCode {
			continue
		}
		if len(locationIDs) > 0 && !wanted[e.LocationID] {
			continue
		}
		filtered = append(filtered, e)
	}
	return ledger.BuildLots(filtered), nil
}

func (r *fakeLedgerRepo) AllLots(_ context.Context) ([]ledger.StockLot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ledger.BuildLots(r.entries), nil
}

func (r *fakeLedgerRepo) Balance(_ context.Context, itemCode string, locationID *uuid.UUID, batch string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, e := range r.entries {
		if e.ItemCode != itemCode {
			continue
		}
		if locationID != nil && e.LocationID != *locationID {
			continue
		}
		if batch != "" && e.Batch != batch {
			continue
		}
		total = total.Add(e.Delta)
	}
	return total, nil
}

func (r *fakeLedgerRepo) BalanceByUnit(_ context.Context, handlingUnitID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, e := range r.entries {
		if e.HandlingUnitID != nil && *e.HandlingUnitID == handlingUnitID {
			total = total.Add(e.Delta)
		}
	}
	return total, nil
}

func (r *fakeLedgerRepo) OccupancyByLocation(_ context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[uuid.UUID]decimal.Decimal)
	for _, e := range r.entries {
		result[e.LocationID] = result[e.LocationID].Add(e.Delta)
	}
	return result, nil
}

func (r *fakeLedgerRepo) entryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// seed writes an inbound adjustment so the item shows a balance
func (r *fakeLedgerRepo) seed(t *testing.T, itemCode, batch string, locationID uuid.UUID, unitID *uuid.UUID, qty int64) {
	t.Helper()
	require.NoError(t, r.Append(context.Background(), []*ledger.Entry{{
		BaseEntity:     shared.NewBaseEntity(),
		ItemCode:       itemCode,
		Batch:          batch,
		LocationID:     locationID,
		HandlingUnitID: unitID,
		Delta:          decimal.NewFromInt(qty),
		UOM:            "EA",
		JobID:          "SEED",
		RowID:          "SEED",
		Phase:          ledger.PostingPhaseFinal,
		OccurredAt:     time.Now(),
	}}))
}

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*job.WarehouseJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[uuid.UUID]*job.WarehouseJob)}
}

func (r *fakeJobRepo) FindByID(_ context.Context, id uuid.UUID) (*job.WarehouseJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *j
	copied.Lines = append([]job.JobLine(nil), j.Lines...)
	copied.Rows = append([]job.AllocationRow(nil), j.Rows...)
	return &copied, nil
}

func (r *fakeJobRepo) FindByCode(_ context.Context, code string) (*job.WarehouseJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.Code == code {
			copied := *j
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeJobRepo) FindByStatus(_ context.Context, status job.JobStatus, _ shared.Filter) ([]job.WarehouseJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]job.WarehouseJob, 0)
	for _, j := range r.jobs {
		if j.Status == status {
			result = append(result, *j)
		}
	}
	return result, nil
}

func (r *fakeJobRepo) FindAll(_ context.Context, _ shared.Filter) ([]job.WarehouseJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]job.WarehouseJob, 0, len(r.jobs))
	for _, j := range r.jobs {
		result = append(result, *j)
	}
	return result, nil
}

func (r *fakeJobRepo) Save(_ context.Context, j *job.WarehouseJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *j
	r.jobs[j.ID] = &copied
	return nil
}

func (r *fakeJobRepo) SaveWithLock(_ context.Context, j *job.WarehouseJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.jobs[j.ID]
	if ok && stored.Version >= j.Version {
		return shared.ErrConcurrencyConflict
	}
	copied := *j
	r.jobs[j.ID] = &copied
	return nil
}

func (r *fakeJobRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	return int64(len(r.jobs)), nil
}

// memoryIdempotencyStore is a single-process key guard
type memoryIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{keys: make(map[string]bool)}
}

func (s *memoryIdempotencyStore) Begin(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *memoryIdempotencyStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *capturePublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *capturePublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType())
	}
	return types
}

type serviceFixture struct {
	service   *JobService
	locations *fakeLocationRepo
	units     *fakeUnitRepo
	entries   *fakeLedgerRepo
	jobs      *fakeJobRepo
	publisher *capturePublisher
	staging   *location.StorageLocation
	dockIn    *location.StorageLocation
	dockOut   *location.StorageLocation
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	locations := newFakeLocationRepo()
	units := newFakeUnitRepo()
	entries := newFakeLedgerRepo()
	jobs := newFakeJobRepo()

	huType, err := handling.NewHandlingUnitType("PALLET", "Standard pallet",
		decimal.NewFromInt(100), decimal.NewFromInt(1), decimal.NewFromInt(1))
	require.NoError(t, err)
	types := newFakeTypeRepo(huType)

	staging := addUnconstrained(t, locations, "STAGE-01", "STAGE")
	dockIn := addUnconstrained(t, locations, "DOCK-IN", "DOCK")
	dockOut := addUnconstrained(t, locations, "DOCK-OUT", "DOCK")

	scope := NewNoOpTransactionScope(locations, &fakeReservationRepo{locations: locations}, units, types, entries, jobs)

	cfg := Config{
		Allocation: allocation.Config{
			PickPolicy:          allocation.PolicyTypeFIFO,
			Placement:           allocation.PlacementPolicyFirstFit,
			ReservationTTL:      30 * time.Minute,
			DefaultUnitTypeCode: "PALLET",
			MaxCapacityRetries:  2,
		},
		InboundDockCode:  "DOCK-IN",
		OutboundDockCode: "DOCK-OUT",
		PostingGuardTTL:  5 * time.Minute,
	}

	publisher := &capturePublisher{}
	service := NewJobService(cfg, scope, newMemoryIdempotencyStore(), nil)
	service.SetEventPublisher(publisher)

	return &serviceFixture{
		service:   service,
		locations: locations,
		units:     units,
		entries:   entries,
		jobs:      jobs,
		publisher: publisher,
		staging:   staging,
		dockIn:    dockIn,
		dockOut:   dockOut,
	}
}

func addUnconstrained(t *testing.T, repo *fakeLocationRepo, code, zone string) *location.StorageLocation {
	t.Helper()
	loc, err := location.NewStorageLocation(code,
		location.Path{Site: "DC1", Building: "B1", Zone: zone}, nil, location.Capacity{})
	require.NoError(t, err)
	repo.add(loc)
	return loc
}

// addStorage registers an ambient location holding up to n handling units
func (f *serviceFixture) addStorage(t *testing.T, code string, unitCeiling int64) *location.StorageLocation {
	t.Helper()
	loc, err := location.NewStorageLocation(code,
		location.Path{Site: "DC1", Building: "B1", Zone: "A"},
		[]location.StorageType{location.StorageTypeAmbient},
		location.Capacity{UnitCount: decimal.NewFromInt(unitCeiling)})
	require.NoError(t, err)
	f.locations.add(loc)
	return loc
}

// seedAnchoredStock parks qty of an item on a fresh pallet at the location
// and books the occupancy, the way a completed putaway would leave it
func (f *serviceFixture) seedAnchoredStock(t *testing.T, itemCode, batch string, loc *location.StorageLocation, qty int64) *handling.HandlingUnit {
	t.Helper()
	huType, err := handling.NewHandlingUnitType("PALLET", "Standard pallet",
		decimal.NewFromInt(100), decimal.NewFromInt(1), decimal.NewFromInt(1))
	require.NoError(t, err)

	unit := handling.NewHandlingUnit(huType)
	require.NoError(t, unit.AssignTo(loc.ID))
	require.NoError(t, f.units.Save(context.Background(), unit))

	f.entries.seed(t, itemCode, batch, loc.ID, &unit.ID, qty)

	stored, err := f.locations.FindByID(context.Background(), loc.ID)
	require.NoError(t, err)
	require.NoError(t, stored.SetOccupied(stored.Occupied.Add(location.Capacity{
		Volume:    decimal.NewFromInt(1),
		Weight:    decimal.NewFromInt(1),
		UnitCount: decimal.NewFromInt(1),
	})))
	require.NoError(t, f.locations.SaveWithLock(context.Background(), stored))

	return unit
}

func (f *serviceFixture) createJob(t *testing.T, req CreateJobRequest) uuid.UUID {
	t.Helper()
	resp, err := f.service.CreateJob(context.Background(), req)
	require.NoError(t, err)
	return resp.ID
}

func (f *serviceFixture) allocate(t *testing.T, jobID uuid.UUID) *AllocateResponse {
	t.Helper()
	resp, err := f.service.Allocate(context.Background(), jobID)
	require.NoError(t, err)
	return resp
}
