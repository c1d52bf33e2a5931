package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wms/backend/internal/domain/location"
	"github.com/wms/backend/internal/domain/shared"
)

// GormStorageLocationRepository implements StorageLocationRepository using GORM
type GormStorageLocationRepository struct {
	db *gorm.DB
}

// NewGormStorageLocationRepository creates a new GormStorageLocationRepository
func NewGormStorageLocationRepository(db *gorm.DB) *GormStorageLocationRepository {
	return &GormStorageLocationRepository{db: db}
}

// FindByID finds a storage location by its ID, with its reservations
func (r *GormStorageLocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*location.StorageLocation, error) {
	var loc location.StorageLocation
	if err := r.db.WithContext(ctx).
		Preload("Reservations").
		First(&loc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &loc, nil
}

// FindByCode finds a storage location by its leaf code
func (r *GormStorageLocationRepository) FindByCode(ctx context.Context, code string) (*location.StorageLocation, error) {
	var loc location.StorageLocation
	if err := r.db.WithContext(ctx).
		Preload("Reservations").
		Where("code = ?", code).
		First(&loc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &loc, nil
}

// FindActive finds all active storage locations ordered by code
func (r *GormStorageLocationRepository) FindActive(ctx context.Context) ([]location.StorageLocation, error) {
	var locs []location.StorageLocation
	if err := r.db.WithContext(ctx).
		Preload("Reservations").
		Where("status = ?", location.LocationStatusActive).
		Order("code ASC").
		Find(&locs).Error; err != nil {
		return nil, err
	}
	return locs, nil
}

// FindCandidates finds active locations whose tag set covers the given
// storage-type requirement, ordered by code.
//
// Tag matching happens in memory. TypeTags is a short comma-separated
// list and the active-location count stays small enough that a SQL-side
// subset check buys nothing over a scan.
func (r *GormStorageLocationRepository) FindCandidates(ctx context.Context, required []location.StorageType) ([]location.StorageLocation, error) {
	active, err := r.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]location.StorageLocation, 0, len(active))
	for _, loc := range active {
		if loc.Accepts(required) {
			candidates = append(candidates, loc)
		}
	}
	return candidates, nil
}

// FindAll finds all storage locations matching the filter
func (r *GormStorageLocationRepository) FindAll(ctx context.Context, filter shared.Filter) ([]location.StorageLocation, error) {
	var locs []location.StorageLocation
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&location.StorageLocation{}).Preload("Reservations"),
		filter,
	)

	if err := query.Find(&locs).Error; err != nil {
		return nil, err
	}
	return locs, nil
}

// Save creates or updates a storage location with its reservations
func (r *GormStorageLocationRepository) Save(ctx context.Context, loc *location.StorageLocation) error {
	return r.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(loc).Error
}

// SaveWithLock saves with optimistic locking (checks version).
// Capacity figures and reservation children are written together; the
// version check on the parent row fences concurrent capacity mutations.
func (r *GormStorageLocationRepository) SaveWithLock(ctx context.Context, loc *location.StorageLocation) error {
	result := r.db.WithContext(ctx).
		Model(loc).
		Where("id = ? AND version = ?", loc.ID, loc.Version-1).
		Updates(map[string]interface{}{
			"type_tags":                 loc.TypeTags,
			"status":                    loc.Status,
			"ceiling_volume":            loc.Ceiling.Volume,
			"ceiling_weight":            loc.Ceiling.Weight,
			"ceiling_unit_count":        loc.Ceiling.UnitCount,
			"occupied_volume":           loc.Occupied.Volume,
			"occupied_weight":           loc.Occupied.Weight,
			"occupied_unit_count":       loc.Occupied.UnitCount,
			"reserved_volume":           loc.Reserved.Volume,
			"reserved_weight":           loc.Reserved.Weight,
			"reserved_unit_count":       loc.Reserved.UnitCount,
			"allow_override":            loc.AllowOverride,
			"warning_threshold_percent": loc.WarningThresholdPercent,
			"version":                   loc.Version,
			"updated_at":                loc.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	if len(loc.Reservations) > 0 {
		if err := r.db.WithContext(ctx).Save(&loc.Reservations).Error; err != nil {
			return err
		}
	}
	return nil
}

// Count counts storage locations matching the filter
func (r *GormStorageLocationRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(
		r.db.WithContext(ctx).Model(&location.StorageLocation{}),
		filter,
	)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormStorageLocationRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Paged() {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		field := ValidateSortField(filter.OrderBy, StorageLocationSortFields, "code")
		query = query.Order(field + " " + ValidateSortOrder(filter.OrderDir))
	} else {
		query = query.Order("code ASC")
	}

	return query
}

func (r *GormStorageLocationRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("code LIKE ?", "%"+filter.Search+"%")
	}

	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "zone":
			query = query.Where("path_zone = ?", value)
		case "site":
			query = query.Where("path_site = ?", value)
		case "allow_override":
			query = query.Where("allow_override = ?", value)
		}
	}

	return query
}

// Ensure GormStorageLocationRepository implements StorageLocationRepository
var _ location.StorageLocationRepository = (*GormStorageLocationRepository)(nil)
