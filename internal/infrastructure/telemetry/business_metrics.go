// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = errors.New("business metrics: meter cannot be nil")

// BusinessMetrics provides business metrics for the warehouse system.
// It tracks job throughput, allocation outcomes, and reservation health.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	jobCreatedTotal       *Counter
	jobPostedTotal        *Counter
	jobCancelledTotal     *Counter
	capacityConflictTotal *Counter
	allocationFailedTotal *Counter

	reservationActiveCount  *Gauge
	reservationExpiredCount *Gauge
	locationNetOccupancy    *FloatGauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	warehouseProvider WarehouseMetricsProvider
}

// WarehouseMetricsProvider provides warehouse state for periodic metrics
// collection. This interface allows the telemetry layer to query reservation
// and ledger state without depending on the domain packages directly.
type WarehouseMetricsProvider interface {
	// GetActiveReservationCount returns the number of unconfirmed, unreleased reservations
	GetActiveReservationCount(ctx context.Context) (int64, error)

	// GetExpiredReservationCount returns the number of overdue reservations awaiting sweep
	GetExpiredReservationCount(ctx context.Context) (int64, error)

	// GetNetOccupancyByLocation returns the ledger-derived net quantity per location
	GetNetOccupancyByLocation(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter             metric.Meter
	Logger            *zap.Logger
	CollectInterval   time.Duration // Default: 5 minutes
	WarehouseProvider WarehouseMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:             cfg.Meter,
		logger:            logger,
		stopChan:          make(chan struct{}),
		warehouseProvider: cfg.WarehouseProvider,
	}

	// The first instrument error wins; the remaining constructors no-op.
	var err error
	counter := func(name, description, unit string) *Counter {
		if err != nil {
			return nil
		}
		var c *Counter
		c, err = NewCounter(cfg.Meter, name, description, unit)
		return c
	}
	gauge := func(name, description, unit string) *Gauge {
		if err != nil {
			return nil
		}
		var g *Gauge
		g, err = NewGauge(cfg.Meter, name, description, unit)
		return g
	}
	floatGauge := func(name, description, unit string) *FloatGauge {
		if err != nil {
			return nil
		}
		var g *FloatGauge
		g, err = NewFloatGauge(cfg.Meter, name, description, unit)
		return g
	}

	bm.jobCreatedTotal = counter("wms_job_created_total",
		"Total number of warehouse jobs created", "{jobs}")
	bm.jobPostedTotal = counter("wms_job_posted_total",
		"Total number of warehouse job posting phases completed", "{postings}")
	bm.jobCancelledTotal = counter("wms_job_cancelled_total",
		"Total number of warehouse jobs cancelled", "{jobs}")
	bm.capacityConflictTotal = counter("wms_capacity_conflict_total",
		"Total number of capacity reservations rejected for lack of headroom", "{conflicts}")
	bm.allocationFailedTotal = counter("wms_allocation_failed_total",
		"Total number of allocation attempts that could not be fully satisfied", "{allocations}")

	bm.reservationActiveCount = gauge("wms_reservation_active_count",
		"Current number of active capacity reservations", "{reservations}")
	bm.reservationExpiredCount = gauge("wms_reservation_expired_count",
		"Number of expired reservations not yet released", "{reservations}")
	bm.locationNetOccupancy = floatGauge("wms_location_net_occupancy",
		"Ledger-derived net stock quantity per storage location", "{units}")

	if err != nil {
		return nil, err
	}
	return bm, nil
}

// RecordJobCreated records a job creation event.
// This should be called from the application layer when a job is created.
func (bm *BusinessMetrics) RecordJobCreated(ctx context.Context, jobType string) {
	bm.jobCreatedTotal.Inc(ctx, AttrJobType.String(jobType))
}

// RecordJobPosted records the completion of a posting phase for a job.
func (bm *BusinessMetrics) RecordJobPosted(ctx context.Context, jobType, phase string) {
	bm.jobPostedTotal.Inc(ctx,
		AttrJobType.String(jobType),
		AttrPostPhase.String(phase),
	)
}

// RecordJobCancelled records a job cancellation.
func (bm *BusinessMetrics) RecordJobCancelled(ctx context.Context, jobType string) {
	bm.jobCancelledTotal.Inc(ctx, AttrJobType.String(jobType))
}

// RecordCapacityConflict records a reservation attempt rejected by a full location.
func (bm *BusinessMetrics) RecordCapacityConflict(ctx context.Context, locationID uuid.UUID) {
	bm.capacityConflictTotal.Inc(ctx, AttrLocationID.String(locationID.String()))
}

// RecordAllocationFailed records an allocation run that left unallocated demand.
func (bm *BusinessMetrics) RecordAllocationFailed(ctx context.Context, strategy string) {
	bm.allocationFailedTotal.Inc(ctx, AttrStrategy.String(strategy))
}

// RecordActiveReservations records the current number of active reservations.
// This is a gauge metric that should be updated periodically.
func (bm *BusinessMetrics) RecordActiveReservations(ctx context.Context, count int64) {
	bm.reservationActiveCount.Record(ctx, count)
}

// RecordExpiredReservations records the number of overdue reservations
// the sweeper has not released yet.
func (bm *BusinessMetrics) RecordExpiredReservations(ctx context.Context, count int64) {
	bm.reservationExpiredCount.Record(ctx, count)
}

// RecordLocationOccupancy records the net stock quantity at a location.
func (bm *BusinessMetrics) RecordLocationOccupancy(ctx context.Context, locationID uuid.UUID, quantity float64) {
	bm.locationNetOccupancy.Record(ctx, quantity, AttrLocationID.String(locationID.String()))
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects reservation and occupancy metrics every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go bm.runPeriodicCollection(ctx, interval)
	})
}

func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectWarehouseMetrics(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectWarehouseMetrics(ctx)
		}
	}
}

// collectWarehouseMetrics reads reservation and occupancy state from the
// provider and publishes it as gauge values. Provider errors are logged,
// never fatal, so one failing query does not stop the loop.
func (bm *BusinessMetrics) collectWarehouseMetrics(ctx context.Context) {
	if bm.warehouseProvider == nil {
		bm.logger.Debug("No warehouse provider configured, skipping gauge metrics collection")
		return
	}

	if active, err := bm.warehouseProvider.GetActiveReservationCount(ctx); err != nil {
		bm.logger.Warn("Failed to get active reservation count", zap.Error(err))
	} else {
		bm.RecordActiveReservations(ctx, active)
	}

	if expired, err := bm.warehouseProvider.GetExpiredReservationCount(ctx); err != nil {
		bm.logger.Warn("Failed to get expired reservation count", zap.Error(err))
	} else {
		bm.RecordExpiredReservations(ctx, expired)
	}

	occupancy, err := bm.warehouseProvider.GetNetOccupancyByLocation(ctx)
	if err != nil {
		bm.logger.Warn("Failed to get net occupancy by location", zap.Error(err))
		return
	}
	for locationID, quantity := range occupancy {
		bm.RecordLocationOccupancy(ctx, locationID, quantity.InexactFloat64())
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}
