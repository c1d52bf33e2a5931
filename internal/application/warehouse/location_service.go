package warehouse

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/location"
	"github.com/wms/backend/internal/domain/shared"
)

// CapacityFigures is one capacity triple (volume, weight, unit count) in API responses
type CapacityFigures struct {
	Volume    decimal.Decimal `json:"volume"`
	Weight    decimal.Decimal `json:"weight"`
	UnitCount decimal.Decimal `json:"unit_count"`
}

func toCapacityFigures(c location.Capacity) CapacityFigures {
	return CapacityFigures{
		Volume:    c.Volume,
		Weight:    c.Weight,
		UnitCount: c.UnitCount,
	}
}

// LocationResponse represents a storage location in API responses
type LocationResponse struct {
	ID        uuid.UUID       `json:"id"`
	Code      string          `json:"code"`
	Path      string          `json:"path"`
	Zone      string          `json:"zone"`
	TypeTags  string          `json:"type_tags,omitempty"`
	Status    string          `json:"status"`
	Ceiling   CapacityFigures `json:"ceiling"`
	Occupied  CapacityFigures `json:"occupied"`
	Reserved  CapacityFigures `json:"reserved"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ReservationResponse represents one outstanding soft hold in API responses
type ReservationResponse struct {
	ID       uuid.UUID       `json:"id"`
	Held     CapacityFigures `json:"held"`
	JobID    string          `json:"job_id"`
	RowID    string          `json:"row_id"`
	ExpireAt time.Time       `json:"expire_at"`
}

// LocationCapacityResponse is the capacity detail for one location: the
// three running figures plus the outstanding soft holds behind the
// reserved figure.
type LocationCapacityResponse struct {
	ID                      uuid.UUID             `json:"id"`
	Code                    string                `json:"code"`
	Ceiling                 CapacityFigures       `json:"ceiling"`
	Occupied                CapacityFigures       `json:"occupied"`
	Reserved                CapacityFigures       `json:"reserved"`
	UtilizationPercent      int                   `json:"utilization_percent"`
	AllowOverride           bool                  `json:"allow_override"`
	WarningThresholdPercent int                   `json:"warning_threshold_percent,omitempty"`
	ActiveReservations      []ReservationResponse `json:"active_reservations"`
}

// ToLocationResponse converts a domain storage location to its response form
func ToLocationResponse(l *location.StorageLocation) LocationResponse {
	return LocationResponse{
		ID:        l.ID,
		Code:      l.Code,
		Path:      l.Path.String(),
		Zone:      l.Path.Zone,
		TypeTags:  l.TypeTags,
		Status:    string(l.Status),
		Ceiling:   toCapacityFigures(l.Ceiling),
		Occupied:  toCapacityFigures(l.Occupied),
		Reserved:  toCapacityFigures(l.Reserved),
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

// LocationService serves read access to storage locations and their
// capacity state. Capacity mutations only ever happen through job
// allocation and posting, so this service has no write operations.
type LocationService struct {
	scope  TransactionScope
	logger *zap.Logger
}

// NewLocationService creates a LocationService
func NewLocationService(scope TransactionScope, logger *zap.Logger) *LocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocationService{scope: scope, logger: logger}
}

// ListLocations returns storage locations matching the filter
func (s *LocationService) ListLocations(ctx context.Context, filter shared.Filter) ([]LocationResponse, error) {
	var result []LocationResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		locs, err := repos.Locations().FindAll(ctx, filter)
		if err != nil {
			return err
		}
		result = make([]LocationResponse, 0, len(locs))
		for idx := range locs {
			result = append(result, ToLocationResponse(&locs[idx]))
		}
		return nil
	})
	return result, err
}

// GetLocation returns one storage location by ID
func (s *LocationService) GetLocation(ctx context.Context, id uuid.UUID) (*LocationResponse, error) {
	var resp *LocationResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		loc, err := repos.Locations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		r := ToLocationResponse(loc)
		resp = &r
		return nil
	})
	return resp, err
}

// GetCapacity returns the capacity detail for one location, including its
// outstanding soft holds. The reservation list is loaded through the
// reservation repository so released and confirmed holds stay out of it.
func (s *LocationService) GetCapacity(ctx context.Context, id uuid.UUID) (*LocationCapacityResponse, error) {
	var resp *LocationCapacityResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		loc, err := repos.Locations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		reservations, err := repos.Reservations().FindByLocation(ctx, id)
		if err != nil {
			return err
		}
		active := make([]ReservationResponse, 0, len(reservations))
		for idx := range reservations {
			res := &reservations[idx]
			if res.Released || res.Confirmed {
				continue
			}
			active = append(active, ReservationResponse{
				ID:       res.ID,
				Held:     toCapacityFigures(res.Held),
				JobID:    res.JobID,
				RowID:    res.RowID,
				ExpireAt: res.ExpireAt,
			})
		}
		resp = &LocationCapacityResponse{
			ID:                      loc.ID,
			Code:                    loc.Code,
			Ceiling:                 toCapacityFigures(loc.Ceiling),
			Occupied:                toCapacityFigures(loc.Occupied),
			Reserved:                toCapacityFigures(loc.Reserved),
			UtilizationPercent:      loc.UtilizationPercent(location.Capacity{}),
			AllowOverride:           loc.AllowOverride,
			WarningThresholdPercent: loc.WarningThresholdPercent,
			ActiveReservations:      active,
		}
		return nil
	})
	return resp, err
}
