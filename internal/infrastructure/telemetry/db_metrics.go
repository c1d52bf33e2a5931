// Package telemetry provides OpenTelemetry integration for the warehouse service.
package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig controls database metrics collection.
type DBMetricsConfig struct {
	Enabled            bool
	SlowQueryThreshold time.Duration
	PoolStatsInterval  time.Duration
}

// DefaultDBMetricsConfig flags queries slower than 200ms and samples the
// pool every 15 seconds.
func DefaultDBMetricsConfig() DBMetricsConfig {
	return DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 200 * time.Millisecond,
		PoolStatsInterval:  15 * time.Second,
	}
}

func (c DBMetricsConfig) withDefaults() DBMetricsConfig {
	if c.SlowQueryThreshold == 0 {
		c.SlowQueryThreshold = 200 * time.Millisecond
	}
	if c.PoolStatsInterval == 0 {
		c.PoolStatsInterval = 15 * time.Second
	}
	return c
}

// DBMetrics instruments query latency, query counts, slow queries, and
// connection pool utilization.
type DBMetrics struct {
	poolConnections    *Gauge
	poolConnectionsMax *Gauge
	queryTotal         *Counter
	queryDuration      *Histogram
	slowQueryTotal     *Counter

	config DBMetricsConfig
	logger *zap.Logger

	pool     atomic.Pointer[sql.DB]
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewDBMetrics registers the database instruments on the given meter.
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &DBMetrics{
		config: cfg.withDefaults(),
		logger: logger,
		stopCh: make(chan struct{}),
	}

	var errPool, errMax, errTotal, errDuration, errSlow error
	m.poolConnections, errPool = NewGauge(meter,
		"db_pool_connections", "Number of connections in the pool by state", "{connection}")
	m.poolConnectionsMax, errMax = NewGauge(meter,
		"db_pool_connections_max", "Maximum number of connections in the pool", "{connection}")
	m.queryTotal, errTotal = NewCounter(meter,
		"db_query_total", "Total number of database queries by operation type", "{query}")
	m.queryDuration, errDuration = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency distribution in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	m.slowQueryTotal, errSlow = NewCounter(meter,
		"db_slow_query_total", "Total number of queries over the slow threshold", "{query}")

	if err := errors.Join(errPool, errMax, errTotal, errDuration, errSlow); err != nil {
		return nil, err
	}
	return m, nil
}

// SetSQLDB hands over the pool handle. Required before
// StartPoolStatsCollection.
func (m *DBMetrics) SetSQLDB(sqlDB *sql.DB) {
	m.pool.Store(sqlDB)
}

// StartPoolStatsCollection samples pool statistics on the configured
// interval until Stop is called or ctx ends.
func (m *DBMetrics) StartPoolStatsCollection(ctx context.Context) {
	if m.pool.Load() == nil {
		m.logger.Warn("Cannot start pool stats collection: sqlDB not set")
		return
	}

	m.wg.Add(1)
	go m.poolStatsLoop(ctx)

	m.logger.Info("Started database connection pool stats collection",
		zap.Duration("interval", m.config.PoolStatsInterval),
	)
}

func (m *DBMetrics) poolStatsLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PoolStatsInterval)
	defer ticker.Stop()

	for {
		m.samplePool(ctx)
		select {
		case <-ticker.C:
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *DBMetrics) samplePool(ctx context.Context) {
	sqlDB := m.pool.Load()
	if sqlDB == nil {
		return
	}

	stats := sqlDB.Stats()
	m.poolConnectionsMax.Record(ctx, int64(stats.MaxOpenConnections))
	for state, n := range map[string]int{
		"idle":   stats.Idle,
		"in_use": stats.InUse,
		"open":   stats.OpenConnections,
	} {
		m.poolConnections.Record(ctx, int64(n), AttrDBState.String(state))
	}
}

// Stop ends pool sampling. Safe to call more than once.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

// RecordQuery records one query's count, latency, and slow-query status.
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration, err error) {
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = "UNKNOWN"
	}

	m.queryTotal.Inc(ctx, AttrDBOperation.String(operation))
	m.queryDuration.RecordDuration(ctx, duration, AttrDBOperation.String(operation))

	if duration > m.config.SlowQueryThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

// DBMetricsPlugin hooks DBMetrics into GORM's callback chain.
type DBMetricsPlugin struct {
	metrics *DBMetrics
	logger  *zap.Logger
}

// NewDBMetricsPlugin wraps metrics in a GORM plugin.
func NewDBMetricsPlugin(metrics *DBMetrics, logger *zap.Logger) *DBMetricsPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBMetricsPlugin{metrics: metrics, logger: logger}
}

// Name returns the plugin name.
func (p *DBMetricsPlugin) Name() string {
	return "db_metrics"
}

type queryClockKey struct{}

// Initialize stamps a start time before each operation and records the
// query once it finishes.
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	start := func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		db.Statement.Context = context.WithValue(ctx, queryClockKey{}, time.Now())
	}

	finish := func(operation string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			p.record(db, operation)
		}
	}
	// Row and Raw carry arbitrary SQL; sniff the verb.
	finishRaw := func(db *gorm.DB) {
		p.record(db, sqlOperation(db.Statement.SQL.String()))
	}

	cb := db.Callback()
	err := errors.Join(
		cb.Create().Before("gorm:create").Register("db_metrics:start_create", start),
		cb.Query().Before("gorm:query").Register("db_metrics:start_query", start),
		cb.Update().Before("gorm:update").Register("db_metrics:start_update", start),
		cb.Delete().Before("gorm:delete").Register("db_metrics:start_delete", start),
		cb.Row().Before("gorm:row").Register("db_metrics:start_row", start),
		cb.Raw().Before("gorm:raw").Register("db_metrics:start_raw", start),

		cb.Create().After("gorm:create").Register("db_metrics:finish_create", finish("INSERT")),
		cb.Query().After("gorm:query").Register("db_metrics:finish_query", finish("SELECT")),
		cb.Update().After("gorm:update").Register("db_metrics:finish_update", finish("UPDATE")),
		cb.Delete().After("gorm:delete").Register("db_metrics:finish_delete", finish("DELETE")),
		cb.Row().After("gorm:row").Register("db_metrics:finish_row", finishRaw),
		cb.Raw().After("gorm:raw").Register("db_metrics:finish_raw", finishRaw),
	)
	if err != nil {
		return err
	}

	p.logger.Info("Database metrics plugin initialized")
	return nil
}

func (p *DBMetricsPlugin) record(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}

	var duration time.Duration
	if startedAt, ok := ctx.Value(queryClockKey{}).(time.Time); ok {
		duration = time.Since(startedAt)
	}

	p.metrics.RecordQuery(ctx, operation, db.Statement.Table, duration, db.Error)
}

func sqlOperation(sql string) string {
	verb, _, _ := strings.Cut(strings.TrimSpace(strings.ToUpper(sql)), " ")
	switch verb {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return verb
	default:
		return "OTHER"
	}
}
