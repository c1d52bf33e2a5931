package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wms/backend/internal/domain/handling"
	"github.com/wms/backend/internal/domain/shared"
)

// GormHandlingUnitRepository implements HandlingUnitRepository using GORM
type GormHandlingUnitRepository struct {
	db *gorm.DB
}

// NewGormHandlingUnitRepository creates a new GormHandlingUnitRepository
func NewGormHandlingUnitRepository(db *gorm.DB) *GormHandlingUnitRepository {
	return &GormHandlingUnitRepository{db: db}
}

// FindByID finds a handling unit by its ID
func (r *GormHandlingUnitRepository) FindByID(ctx context.Context, id uuid.UUID) (*handling.HandlingUnit, error) {
	var unit handling.HandlingUnit
	if err := r.db.WithContext(ctx).First(&unit, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &unit, nil
}

// FindByLocation finds all units anchored at a location
func (r *GormHandlingUnitRepository) FindByLocation(ctx context.Context, locationID uuid.UUID) ([]handling.HandlingUnit, error) {
	var units []handling.HandlingUnit
	if err := r.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("created_at ASC").
		Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

// FindFreeByType finds unanchored units of the given type, oldest first
func (r *GormHandlingUnitRepository) FindFreeByType(ctx context.Context, typeCode string, limit int) ([]handling.HandlingUnit, error) {
	var units []handling.HandlingUnit
	query := r.db.WithContext(ctx).
		Where("type_code = ? AND status = ?", typeCode, handling.HandlingUnitStatusFree).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

// FindAll finds handling units matching the filter
func (r *GormHandlingUnitRepository) FindAll(ctx context.Context, filter shared.Filter) ([]handling.HandlingUnit, error) {
	var units []handling.HandlingUnit
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&handling.HandlingUnit{}),
		filter,
	)

	if err := query.Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

// Save creates or updates a handling unit
func (r *GormHandlingUnitRepository) Save(ctx context.Context, unit *handling.HandlingUnit) error {
	return r.db.WithContext(ctx).Save(unit).Error
}

// SaveWithLock saves with optimistic locking (checks version).
// Two concurrent anchorings of the same unit race on the version column
// and only one commits.
func (r *GormHandlingUnitRepository) SaveWithLock(ctx context.Context, unit *handling.HandlingUnit) error {
	result := r.db.WithContext(ctx).
		Model(unit).
		Where("id = ? AND version = ?", unit.ID, unit.Version-1).
		Updates(map[string]interface{}{
			"status":      unit.Status,
			"location_id": unit.LocationID,
			"version":     unit.Version,
			"updated_at":  unit.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *GormHandlingUnitRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("type_code LIKE ?", "%"+filter.Search+"%")
	}

	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "type_code":
			query = query.Where("type_code = ?", value)
		case "location_id":
			query = query.Where("location_id = ?", value)
		}
	}

	if filter.Paged() {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		field := ValidateSortField(filter.OrderBy, HandlingUnitSortFields, "created_at")
		query = query.Order(field + " " + ValidateSortOrder(filter.OrderDir))
	} else {
		query = query.Order("created_at ASC")
	}

	return query
}

// Ensure GormHandlingUnitRepository implements HandlingUnitRepository
var _ handling.HandlingUnitRepository = (*GormHandlingUnitRepository)(nil)

// GormHandlingUnitTypeRepository implements HandlingUnitTypeRepository using GORM
type GormHandlingUnitTypeRepository struct {
	db *gorm.DB
}

// NewGormHandlingUnitTypeRepository creates a new GormHandlingUnitTypeRepository
func NewGormHandlingUnitTypeRepository(db *gorm.DB) *GormHandlingUnitTypeRepository {
	return &GormHandlingUnitTypeRepository{db: db}
}

// FindByCode finds a handling unit type by its code
func (r *GormHandlingUnitTypeRepository) FindByCode(ctx context.Context, code string) (*handling.HandlingUnitType, error) {
	var huType handling.HandlingUnitType
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&huType).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &huType, nil
}

// FindAll finds all handling unit types ordered by code
func (r *GormHandlingUnitTypeRepository) FindAll(ctx context.Context) ([]handling.HandlingUnitType, error) {
	var types []handling.HandlingUnitType
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&types).Error; err != nil {
		return nil, err
	}
	return types, nil
}

// Save creates or updates a handling unit type
func (r *GormHandlingUnitTypeRepository) Save(ctx context.Context, huType *handling.HandlingUnitType) error {
	return r.db.WithContext(ctx).Save(huType).Error
}

// Ensure GormHandlingUnitTypeRepository implements HandlingUnitTypeRepository
var _ handling.HandlingUnitTypeRepository = (*GormHandlingUnitTypeRepository)(nil)
