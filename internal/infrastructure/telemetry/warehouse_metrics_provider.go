// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormWarehouseMetricsProvider implements WarehouseMetricsProvider using GORM.
// It queries the capacity_reservations and stock_ledger_entries tables
// directly for aggregated metrics.
type GormWarehouseMetricsProvider struct {
	db *gorm.DB
}

// NewGormWarehouseMetricsProvider creates a new GormWarehouseMetricsProvider.
func NewGormWarehouseMetricsProvider(db *gorm.DB) *GormWarehouseMetricsProvider {
	return &GormWarehouseMetricsProvider{db: db}
}

// GetActiveReservationCount returns the number of unconfirmed, unreleased reservations.
func (p *GormWarehouseMetricsProvider) GetActiveReservationCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("capacity_reservations").
		Where("released = false AND confirmed = false").
		Count(&count).Error

	return count, err
}

// GetExpiredReservationCount returns the number of overdue reservations
// still holding capacity. A non-zero value that persists across scrapes
// means the sweeper is behind or failing.
func (p *GormWarehouseMetricsProvider) GetExpiredReservationCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("capacity_reservations").
		Where("released = false AND confirmed = false AND expire_at < ?", time.Now()).
		Count(&count).Error

	return count, err
}

// GetNetOccupancyByLocation returns the ledger-derived net quantity per location.
func (p *GormWarehouseMetricsProvider) GetNetOccupancyByLocation(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	type result struct {
		LocationID uuid.UUID       `gorm:"column:location_id"`
		Total      decimal.Decimal `gorm:"column:total"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("stock_ledger_entries").
		Select("location_id, COALESCE(SUM(delta), 0) as total").
		Group("location_id").
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	m := make(map[uuid.UUID]decimal.Decimal, len(results))
	for _, r := range results {
		m[r.LocationID] = r.Total
	}

	return m, nil
}
