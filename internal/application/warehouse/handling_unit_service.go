package warehouse

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/handling"
	"github.com/wms/backend/internal/domain/shared"
)

// HandlingUnitResponse represents a handling unit in API responses
type HandlingUnitResponse struct {
	ID          uuid.UUID       `json:"id"`
	TypeCode    string          `json:"type_code"`
	MaxQuantity decimal.Decimal `json:"max_quantity"`
	Volume      decimal.Decimal `json:"volume"`
	Weight      decimal.Decimal `json:"weight"`
	LocationID  *uuid.UUID      `json:"location_id,omitempty"`
	Status      string          `json:"status"`
	ReleasedAt  *time.Time      `json:"released_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ToHandlingUnitResponse converts a domain handling unit to its response form
func ToHandlingUnitResponse(u *handling.HandlingUnit) HandlingUnitResponse {
	return HandlingUnitResponse{
		ID:          u.ID,
		TypeCode:    u.TypeCode,
		MaxQuantity: u.MaxQuantity,
		Volume:      u.Volume,
		Weight:      u.Weight,
		LocationID:  u.LocationID,
		Status:      string(u.Status),
		ReleasedAt:  u.ReleasedAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// HandlingUnitService serves read access to the handling unit registry.
// Anchoring and release follow job postings, so this service has no
// write operations either.
type HandlingUnitService struct {
	scope  TransactionScope
	logger *zap.Logger
}

// NewHandlingUnitService creates a HandlingUnitService
func NewHandlingUnitService(scope TransactionScope, logger *zap.Logger) *HandlingUnitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HandlingUnitService{scope: scope, logger: logger}
}

// GetUnit returns one handling unit by ID
func (s *HandlingUnitService) GetUnit(ctx context.Context, id uuid.UUID) (*HandlingUnitResponse, error) {
	var resp *HandlingUnitResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		unit, err := repos.Units().FindByID(ctx, id)
		if err != nil {
			return err
		}
		r := ToHandlingUnitResponse(unit)
		resp = &r
		return nil
	})
	return resp, err
}

// ListUnits returns handling units matching the filter
func (s *HandlingUnitService) ListUnits(ctx context.Context, filter shared.Filter) ([]HandlingUnitResponse, error) {
	var result []HandlingUnitResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		units, err := repos.Units().FindAll(ctx, filter)
		if err != nil {
			return err
		}
		result = make([]HandlingUnitResponse, 0, len(units))
		for idx := range units {
			result = append(result, ToHandlingUnitResponse(&units[idx]))
		}
		return nil
	})
	return result, err
}

// ListUnitsAtLocation returns the units anchored at one location
func (s *HandlingUnitService) ListUnitsAtLocation(ctx context.Context, locationID uuid.UUID) ([]HandlingUnitResponse, error) {
	var result []HandlingUnitResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		units, err := repos.Units().FindByLocation(ctx, locationID)
		if err != nil {
			return err
		}
		result = make([]HandlingUnitResponse, 0, len(units))
		for idx := range units {
			result = append(result, ToHandlingUnitResponse(&units[idx]))
		}
		return nil
	})
	return result, err
}
