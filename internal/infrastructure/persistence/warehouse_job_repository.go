package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wms/backend/internal/domain/job"
	"github.com/wms/backend/internal/domain/shared"
)

// GormWarehouseJobRepository implements the job Repository using GORM
type GormWarehouseJobRepository struct {
	db *gorm.DB
}

// NewGormWarehouseJobRepository creates a new GormWarehouseJobRepository
func NewGormWarehouseJobRepository(db *gorm.DB) *GormWarehouseJobRepository {
	return &GormWarehouseJobRepository{db: db}
}

// FindByID finds a job with its lines and rows by ID
func (r *GormWarehouseJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*job.WarehouseJob, error) {
	var j job.WarehouseJob
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Preload("Rows", func(db *gorm.DB) *gorm.DB { return db.Order("row_no ASC") }).
		First(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}

// FindByCode finds a job by its code
func (r *GormWarehouseJobRepository) FindByCode(ctx context.Context, code string) (*job.WarehouseJob, error) {
	var j job.WarehouseJob
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Preload("Rows", func(db *gorm.DB) *gorm.DB { return db.Order("row_no ASC") }).
		Where("code = ?", code).
		First(&j).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}

// FindByStatus finds jobs in the given status
func (r *GormWarehouseJobRepository) FindByStatus(ctx context.Context, status job.JobStatus, filter shared.Filter) ([]job.WarehouseJob, error) {
	var jobs []job.WarehouseJob
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&job.WarehouseJob{}).
			Preload("Lines").
			Preload("Rows").
			Where("status = ?", status),
		filter,
	)

	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindAll finds jobs matching the filter
func (r *GormWarehouseJobRepository) FindAll(ctx context.Context, filter shared.Filter) ([]job.WarehouseJob, error) {
	var jobs []job.WarehouseJob
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&job.WarehouseJob{}).
			Preload("Lines").
			Preload("Rows"),
		filter,
	)

	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Save creates or updates a job with its lines and rows
func (r *GormWarehouseJobRepository) Save(ctx context.Context, j *job.WarehouseJob) error {
	return r.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(j).Error
}

// SaveWithLock saves with optimistic locking (checks version).
// The version check on the job row fences concurrent status transitions
// and posting-flag updates; lines and rows are written after the fence
// holds.
func (r *GormWarehouseJobRepository) SaveWithLock(ctx context.Context, j *job.WarehouseJob) error {
	result := r.db.WithContext(ctx).
		Model(j).
		Where("id = ? AND version = ?", j.ID, j.Version-1).
		Updates(map[string]interface{}{
			"status":       j.Status,
			"allocated_at": j.AllocatedAt,
			"completed_at": j.CompletedAt,
			"cancelled_at": j.CancelledAt,
			"version":      j.Version,
			"updated_at":   j.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	if len(j.Lines) > 0 {
		if err := r.db.WithContext(ctx).Save(&j.Lines).Error; err != nil {
			return err
		}
	}
	if len(j.Rows) > 0 {
		if err := r.db.WithContext(ctx).Save(&j.Rows).Error; err != nil {
			return err
		}
	}
	return nil
}

// Count counts jobs matching the filter
func (r *GormWarehouseJobRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(
		r.db.WithContext(ctx).Model(&job.WarehouseJob{}),
		filter,
	)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormWarehouseJobRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Paged() {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		field := ValidateSortField(filter.OrderBy, WarehouseJobSortFields, "created_at")
		query = query.Order(field + " " + ValidateSortOrder(filter.OrderDir))
	} else {
		query = query.Order("created_at DESC")
	}

	return query
}

func (r *GormWarehouseJobRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("code LIKE ? OR source_order_ref LIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}

	for key, value := range filter.Filters {
		switch key {
		case "type":
			query = query.Where("type = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "source_order_ref":
			query = query.Where("source_order_ref = ?", value)
		}
	}

	return query
}

// Ensure GormWarehouseJobRepository implements the job Repository
var _ job.Repository = (*GormWarehouseJobRepository)(nil)
