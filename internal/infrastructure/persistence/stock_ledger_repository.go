package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wms/backend/internal/domain/ledger"
)

// GormStockLedgerRepository implements the stock ledger Repository using GORM.
//
// The ledger is append-only. This repository only ever inserts rows; the
// Sequence column is assigned by the database (bigserial) and totally
// orders all entries for deterministic FIFO/LIFO lot selection.
type GormStockLedgerRepository struct {
	db *gorm.DB
}

// NewGormStockLedgerRepository creates a new GormStockLedgerRepository
func NewGormStockLedgerRepository(db *gorm.DB) *GormStockLedgerRepository {
	return &GormStockLedgerRepository{db: db}
}

// Append writes all entries of one posting atomically
func (r *GormStockLedgerRepository) Append(ctx context.Context, entries []*ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(entries).Error
}

// FindByItem returns all entries for an item in sequence order
func (r *GormStockLedgerRepository) FindByItem(ctx context.Context, itemCode string) ([]ledger.Entry, error) {
	var entries []ledger.Entry
	if err := r.db.WithContext(ctx).
		Where("item_code = ?", itemCode).
		Order("sequence ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// FindByJob returns all entries a job has posted, in sequence order
func (r *GormStockLedgerRepository) FindByJob(ctx context.Context, jobID string) ([]ledger.Entry, error) {
	var entries []ledger.Entry
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("sequence ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// FindLots returns the item's non-zero stock lots across the given
// locations (all locations when empty), built in sequence order
func (r *GormStockLedgerRepository) FindLots(ctx context.Context, itemCode string, locationIDs []uuid.UUID) ([]ledger.StockLot, error) {
	query := r.db.WithContext(ctx).
		Where("item_code = ?", itemCode).
		Order("sequence ASC")
	if len(locationIDs) > 0 {
		query = query.Where("location_id IN ?", locationIDs)
	}

	var entries []ledger.Entry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return ledger.BuildLots(entries), nil
}

// AllLots returns every non-zero stock lot in the ledger
func (r *GormStockLedgerRepository) AllLots(ctx context.Context) ([]ledger.StockLot, error) {
	var entries []ledger.Entry
	if err := r.db.WithContext(ctx).
		Order("sequence ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return ledger.BuildLots(entries), nil
}

// Balance returns the signed sum of deltas for an item, optionally
// narrowed to one location and/or batch
func (r *GormStockLedgerRepository) Balance(ctx context.Context, itemCode string, locationID *uuid.UUID, batch string) (decimal.Decimal, error) {
	query := r.db.WithContext(ctx).
		Model(&ledger.Entry{}).
		Where("item_code = ?", itemCode)
	if locationID != nil {
		query = query.Where("location_id = ?", *locationID)
	}
	if batch != "" {
		query = query.Where("batch = ?", batch)
	}

	var result struct {
		Total decimal.Decimal
	}
	if err := query.
		Select("COALESCE(SUM(delta), 0) as total").
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// BalanceByUnit returns the item quantity resting on a handling unit
func (r *GormStockLedgerRepository) BalanceByUnit(ctx context.Context, handlingUnitID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&ledger.Entry{}).
		Select("COALESCE(SUM(delta), 0) as total").
		Where("handling_unit_id = ?", handlingUnitID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// OccupancyByLocation returns the net quantity per location across all items
func (r *GormStockLedgerRepository) OccupancyByLocation(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []struct {
		LocationID uuid.UUID
		Total      decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&ledger.Entry{}).
		Select("location_id, COALESCE(SUM(delta), 0) as total").
		Group("location_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		result[row.LocationID] = row.Total
	}
	return result, nil
}

// Ensure GormStockLedgerRepository implements the ledger Repository
var _ ledger.Repository = (*GormStockLedgerRepository)(nil)
