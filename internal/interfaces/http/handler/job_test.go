package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms/backend/internal/application/warehouse"
	"github.com/wms/backend/internal/domain/handling"
	"github.com/wms/backend/internal/domain/job"
	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/location"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/interfaces/http/dto"
)

// Mock implementations for warehouse repositories

type mockLocationRepository struct {
	byID   map[uuid.UUID]*location.StorageLocation
	byCode map[string]*location.StorageLocation
}

func newMockLocationRepository() *mockLocationRepository {
	return &mockLocationRepository{
		byID:   make(map[uuid.UUID]*location.StorageLocation),
		byCode: make(map[string]*location.StorageLocation),
	}
}

func (m *mockLocationRepository) add(loc *location.StorageLocation) {
	m.byID[loc.ID] = loc
	m.byCode[loc.Code] = loc
}

func (m *mockLocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*location.StorageLocation, error) {
	if loc, ok := m.byID[id]; ok {
		return loc, nil
	}
	return nil, shared.ErrNotFound
}

func (m *mockLocationRepository) FindByCode(ctx context.Context, code string) (*location.StorageLocation, error) {
	if loc, ok := m.byCode[code]; ok {
		return loc, nil
	}
	return nil, shared.ErrNotFound
}

func (m *mockLocationRepository) FindActive(ctx context.Context) ([]location.StorageLocation, error) {
	result := make([]location.StorageLocation, 0, len(m.byID))
	for _, loc := range m.byID {
		if loc.IsActive() {
			result = append(result, *loc)
		}
	}
	return result, nil
}

func (m *mockLocationRepository) FindCandidates(ctx context.Context, required []location.StorageType) ([]location.StorageLocation, error) {
	result := make([]location.StorageLocation, 0, len(m.byID))
	for _, loc := range m.byID {
		if loc.IsActive() && loc.Accepts(required) {
			result = append(result, *loc)
		}
	}
	return result, nil
}

func (m *mockLocationRepository) FindAll(ctx context.Context, filter shared.Filter) ([]location.StorageLocation, error) {
	result := make([]location.StorageLocation, 0, len(m.byID))
	for _, loc := range m.byID {
		result = append(result, *loc)
	}
	return result, nil
}

func (m *mockLocationRepository) Save(ctx context.Context, loc *location.StorageLocation) error {
	m.add(loc)
	return nil
}

func (m *mockLocationRepository) SaveWithLock(ctx context.Context, loc *location.StorageLocation) error {
	m.add(loc)
	return nil
}

func (m *mockLocationRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	return int64(len(m.byID)), nil
}

type mockReservationRepository struct {
	reservations map[uuid.UUID]*location.CapacityReservation
}

func newMockReservationRepository() *mockReservationRepository {
	return &mockReservationRepository{
		reservations: make(map[uuid.UUID]*location.CapacityReservation),
	}
}

func (m *mockReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*location.CapacityReservation, error) {
	if res, ok := m.reservations[id]; ok {
		return res, nil
	}
	return nil, shared.ErrNotFound
}

func (m *mockReservationRepository) FindByLocation(ctx context.Context, locationID uuid.UUID) ([]location.CapacityReservation, error) {
	var result []location.CapacityReservation
	for _, res := range m.reservations {
		if res.LocationID == locationID {
			result = append(result, *res)
		}
	}
	return result, nil
}

func (m *mockReservationRepository) FindActiveByJob(ctx context.Context, jobID string) ([]location.CapacityReservation, error) {
	var result []location.CapacityReservation
	for _, res := range m.reservations {
		if res.JobID == jobID && !res.Released && !res.Confirmed {
			result = append(result, *res)
		}
	}
	return result, nil
}

func (m *mockReservationRepository) FindExpired(ctx context.Context) ([]location.CapacityReservation, error) {
	var result []location.CapacityReservation
	now := time.Now()
	for _, res := range m.reservations {
		if !res.Released && !res.Confirmed && res.ExpireAt.Before(now) {
			result = append(result, *res)
		}
	}
	return result, nil
}

func (m *mockReservationRepository) Save(ctx context.Context, res *location.CapacityReservation) error {
	m.reservations[res.ID] = res
	return nil
}

type mockUnitRepository struct {
	units map[uuid.UUID]*handling.HandlingUnit
}

func newMockUnitRepository() *mockUnitRepository {
	return &mockUnitRepository{units: make(map[uuid.UUID]*handling.HandlingUnit)}
}

func (m *mockUnitRepository) FindByID(ctx context.Context, id uuid.UUID) (*handling.HandlingUnit, error) {
	if unit, ok := m.units[id]; ok {
		return unit, nil
	}
	return nil, shared.ErrNotFound
}

func (m *mockUnitRepository) FindByLocation(ctx context.Context, locationID uuid.UUID) ([]handling.HandlingUnit, error) {
	var result []handling.HandlingUnit
	for _, unit := range m.units {
		if unit.LocationID != nil && *unit.LocationID == locationID {
			result = append(result, *unit)
		}
	}
	return result, nil
}

func (m *mockUnitRepository) FindFreeByType(ctx context.Context, typeCode string, limit int) ([]handling.HandlingUnit, error) {
	var result []handling.HandlingUnit
	for _, unit := range m.units {
		if unit.TypeCode == typeCode && unit.Status == handling.HandlingUnitStatusFree {
			result = append(result, *unit)
		}
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *mockUnitRepository) FindAll(ctx context.Context, filter shared.Filter) ([]handling.HandlingUnit, error) {
	result := make([]handling.HandlingUnit, 0, len(m.units))
	for _, unit := range m.units {
		result = append(result, *unit)
	}
	return result, nil
}

func (m *mockUnitRepository) Save(ctx context.Context, unit *handling.HandlingUnit) error {
	m.units[unit.ID] = unit
	return nil
}

func (m *mockUnitRepository) SaveWithLock(ctx context.Context, unit *handling.HandlingUnit) error {
	m.units[unit.ID] = unit
	return nil
}

type mockUnitTypeRepository struct {
	types map[string]*handling.HandlingUnitType
}

func newMockUnitTypeRepository() *mockUnitTypeRepository {
	return &mockUnitTypeRepository{types: make(map[string]*handling.HandlingUnitType)}
}

func (m *mockUnitTypeRepository) FindByCode(ctx context.Context, code string) (*handling.HandlingUnitType, error) {
	if huType, ok := m.types[code]; ok {
		return huType, nil
	}
	return nil, shared.ErrNotFound
}

func (m *mockUnitTypeRepository) FindAll(ctx context.Context) ([]handling.HandlingUnitType, error) {
	result := make([]handling.HandlingUnitType, 0, len(m.types))
	for _, huType := range m.types {
		result = append(result, *huType)
	}
	return result, nil
}

func (m *mockUnitTypeRepository) Save(ctx context.Context, huType *handling.HandlingUnitType) error {
	m.types[huType.Code] = huType
	return nil
}

type mockLedgerRepository struct {
	entries []*ledger.Entry
}

func (m *mockLedgerRepository) Append(ctx context.Context, entries []*ledger.Entry) error {
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *mockLedgerRepository) FindByItem(ctx context.Context, itemCode string) ([]ledger.Entry, error) {
	var result []ledger.Entry
	for _, e := range m.entries {
		if e.ItemCode == itemCode {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (m *mockLedgerRepository) FindByJob(ctx context.Context, jobID string) ([]ledger.Entry, error) {
	var result []ledger.Entry
	for _, e := range m.entries {
		if e.JobID == jobID {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (m *mockLedgerRepository) FindLots(ctx context.Context, itemCode string, locationIDs []uuid.UUID) ([]ledger.StockLot, error) {
	return nil, nil
}

func (m *mockLedgerRepository) AllLots(ctx context.Context) ([]ledger.StockLot, error) {
	return nil, nil
}

func (m *mockLedgerRepository) Balance(ctx context.Context, itemCode string, locationID *uuid.UUID, batch string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range m.entries {
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

func (m *mockLedgerRepository) BalanceByUnit(ctx context.Context, handlingUnitID uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (m *mockLedgerRepository) OccupancyByLocation(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	return map[uuid.UUID]decimal.Decimal{}, nil
}

type mockJobRepository struct {
	jobs map[uuid.UUID]*job.WarehouseJob
}

func newMockJobRepository() *mockJobRepository {
	return &mockJobRepository{jobs: make(map[uuid.UUID]*job.WarehouseJob)}
}

func (m *mockJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*job.WarehouseJob, error) {
	if j, ok := m.jobs[id]; ok {
		return j, nil
	}
	return nil, shared.ErrNotFound
}

func (m *mockJobRepository) FindByCode(ctx context.Context, code string) (*job.WarehouseJob, error) {
	for _, j := range m.jobs {
		if j.Code == code {
			return j, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockJobRepository) FindByStatus(ctx context.Context, status job.JobStatus, filter shared.Filter) ([]job.WarehouseJob, error) {
	var result []job.WarehouseJob
	for _, j := range m.jobs {
		if j.Status == status {
			result = append(result, *j)
		}
	}
	return result, nil
}

func (m *mockJobRepository) FindAll(ctx context.Context, filter shared.Filter) ([]job.WarehouseJob, error) {
	result := make([]job.WarehouseJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		result = append(result, *j)
	}
	return result, nil
}

func (m *mockJobRepository) Save(ctx context.Context, j *job.WarehouseJob) error {
	m.jobs[j.ID] = j
	return nil
}

func (m *mockJobRepository) SaveWithLock(ctx context.Context, j *job.WarehouseJob) error {
	m.jobs[j.ID] = j
	return nil
}

func (m *mockJobRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	return int64(len(m.jobs)), nil
}

type mockIdempotencyStore struct{}

func (m *mockIdempotencyStore) Begin(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (m *mockIdempotencyStore) Clear(ctx context.Context, key string) error {
	return nil
}

// Test fixture

type jobHandlerFixture struct {
	router    *gin.Engine
	locations *mockLocationRepository
	jobs      *mockJobRepository
	ledger    *mockLedgerRepository
}

func newJobHandlerFixture(t *testing.T) *jobHandlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	locations := newMockLocationRepository()
	reservations := newMockReservationRepository()
	units := newMockUnitRepository()
	unitTypes := newMockUnitTypeRepository()
	ledgerRepo := &mockLedgerRepository{}
	jobs := newMockJobRepository()

	scope := warehouse.NewNoOpTransactionScope(locations, reservations, units, unitTypes, ledgerRepo, jobs)
	svc := warehouse.NewJobService(warehouse.Config{
		InboundDockCode:  "DOCK-IN",
		OutboundDockCode: "DOCK-OUT",
		PostingGuardTTL:  time.Minute,
	}, scope, &mockIdempotencyStore{}, nil)

	h := NewJobHandler(svc)
	bh := NewBalanceHandler(svc)

	router := gin.New()
	router.POST("/jobs", h.Create)
	router.GET("/jobs", h.List)
	router.GET("/jobs/:id", h.GetByID)
	router.POST("/jobs/:id/allocate", h.Allocate)
	router.POST("/jobs/:id/post/:phase", h.PostPhase)
	router.POST("/jobs/:id/cancel", h.Cancel)
	router.GET("/balances", bh.GetBalance)

	return &jobHandlerFixture{
		router:    router,
		locations: locations,
		jobs:      jobs,
		ledger:    ledgerRepo,
	}
}

func (f *jobHandlerFixture) addStaging(t *testing.T, code string) *location.StorageLocation {
	t.Helper()
	loc, err := location.NewStorageLocation(code,
		location.Path{Site: "S1", Building: "B1", Zone: "STAGE"},
		nil,
		location.Capacity{UnitCount: decimal.NewFromInt(1000)},
	)
	require.NoError(t, err)
	f.locations.add(loc)
	return loc
}

func createJobBody(stagingCode string) []byte {
	body := map[string]interface{}{
		"type":             "PUTAWAY",
		"source_order_ref": "PO-1001",
		"staging_location": stagingCode,
		"lines": []map[string]interface{}{
			{"item_code": "SKU-RED", "quantity": "25", "uom": "EA"},
		},
	}
	data, _ := json.Marshal(body)
	return data
}

func TestJobHandlerCreate(t *testing.T) {
	f := newJobHandlerFixture(t)
	f.addStaging(t, "STAGE-01")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/jobs", bytes.NewReader(createJobBody("STAGE-01")))
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "PUTAWAY", data["type"])
	assert.Equal(t, "DRAFT", data["status"])
	assert.Equal(t, "PO-1001", data["source_order_ref"])
}

func TestJobHandlerCreateValidation(t *testing.T) {
	f := newJobHandlerFixture(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "missing type",
			body: map[string]interface{}{
				"source_order_ref": "PO-1",
				"staging_location": "STAGE-01",
				"lines":            []map[string]interface{}{{"item_code": "A", "quantity": "1", "uom": "EA"}},
			},
		},
		{
			name: "unknown type",
			body: map[string]interface{}{
				"type":             "TELEPORT",
				"source_order_ref": "PO-1",
				"staging_location": "STAGE-01",
				"lines":            []map[string]interface{}{{"item_code": "A", "quantity": "1", "uom": "EA"}},
			},
		},
		{
			name: "no lines",
			body: map[string]interface{}{
				"type":             "PUTAWAY",
				"source_order_ref": "PO-1",
				"staging_location": "STAGE-01",
				"lines":            []map[string]interface{}{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, _ := json.Marshal(tt.body)
			w := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/jobs", bytes.NewReader(data))
			req.Header.Set("Content-Type", "application/json")
			f.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestJobHandlerCreateStagingNotFound(t *testing.T) {
	f := newJobHandlerFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/jobs", bytes.NewReader(createJobBody("NOWHERE")))
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
}

func TestJobHandlerGetByID(t *testing.T) {
	f := newJobHandlerFixture(t)
	staging := f.addStaging(t, "STAGE-01")

	j, err := job.NewWarehouseJob("JOB-TEST-1", job.JobTypePutaway, "PO-7", staging.ID, []job.JobLine{
		{ItemCode: "SKU-BLUE", Quantity: decimal.NewFromInt(5), UOM: "EA"},
	})
	require.NoError(t, err)
	require.NoError(t, f.jobs.Save(context.Background(), j))

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/jobs/"+j.ID.String(), nil)
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "JOB-TEST-1", data["code"])
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/jobs/"+uuid.NewString(), nil)
		f.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/jobs/not-a-uuid", nil)
		f.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestJobHandlerList(t *testing.T) {
	f := newJobHandlerFixture(t)
	staging := f.addStaging(t, "STAGE-01")

	for i := 0; i < 3; i++ {
		j, err := job.NewWarehouseJob(fmt.Sprintf("JOB-LIST-%d", i), job.JobTypePick, "SO-1", staging.ID, []job.JobLine{
			{ItemCode: "SKU-RED", Quantity: decimal.NewFromInt(1), UOM: "EA"},
		})
		require.NoError(t, err)
		require.NoError(t, f.jobs.Save(context.Background(), j))
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/jobs?page=1&page_size=10", nil)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Data, 3)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 1, resp.Meta.Page)
	assert.Equal(t, 10, resp.Meta.PageSize)
}

func TestJobHandlerCancel(t *testing.T) {
	f := newJobHandlerFixture(t)
	staging := f.addStaging(t, "STAGE-01")

	j, err := job.NewWarehouseJob("JOB-CANCEL-1", job.JobTypePutaway, "PO-9", staging.ID, []job.JobLine{
		{ItemCode: "SKU-RED", Quantity: decimal.NewFromInt(2), UOM: "EA"},
	})
	require.NoError(t, err)
	require.NoError(t, f.jobs.Save(context.Background(), j))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/jobs/"+j.ID.String()+"/cancel", nil)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "CANCELLED", data["status"])
}

func TestJobHandlerPostPhaseInvalidPhase(t *testing.T) {
	f := newJobHandlerFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/jobs/"+uuid.NewString()+"/post/SIDEWAYS", nil)
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobHandlerAllocateInvalidID(t *testing.T) {
	f := newJobHandlerFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/jobs/nope/allocate", nil)
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBalanceHandlerGetBalance(t *testing.T) {
	f := newJobHandlerFixture(t)
	staging := f.addStaging(t, "STAGE-01")

	entry := &ledger.Entry{
		BaseEntity: shared.NewBaseEntity(),
		ItemCode:   "SKU-RED",
		LocationID: staging.ID,
		Delta:      decimal.NewFromInt(40),
		UOM:        "EA",
		JobID:      "JOB-X",
		Phase:      ledger.PostingPhaseFinal,
		OccurredAt: time.Now(),
	}
	require.NoError(t, f.ledger.Append(context.Background(), []*ledger.Entry{entry}))

	t.Run("by item", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/balances?item=SKU-RED", nil)
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "SKU-RED", data["item_code"])
		assert.Equal(t, "40", data["quantity"])
	})

	t.Run("item required", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/balances", nil)
		f.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown location", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/balances?item=SKU-RED&location=NOWHERE", nil)
		f.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
