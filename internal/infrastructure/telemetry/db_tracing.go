package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls query span generation.
type DBTracingConfig struct {
	Enabled         bool
	// LogFullSQL includes bound parameters in span attributes. Leave it
	// off outside development; item codes and operator IDs end up in
	// the trace backend otherwise.
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBSystem        string
}

// DefaultDBTracingConfig is off by default and redacts parameters.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:         false,
		LogFullSQL:      false,
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin layers slow-query and error annotation on top of the
// spans otelgorm opens per statement.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin builds the plugin; registration happens in
// RegisterOtelGorm.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{config: cfg, logger: logger}
}

type traceClockKey struct{}

// RegisterOtelGorm installs otelgorm plus the timing callbacks on db.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Query tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		// Redacted statements only; bound values stay out of spans.
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	start := func(db *gorm.DB) {
		if db.Statement.Context != nil {
			db.Statement.Context = context.WithValue(db.Statement.Context, traceClockKey{}, time.Now())
		}
	}
	finish := func(db *gorm.DB) {
		p.annotateSpan(db)
	}

	cb := db.Callback()
	err := errors.Join(
		cb.Create().Before("gorm:create").Register("db_tracing:start_create", start),
		cb.Query().Before("gorm:query").Register("db_tracing:start_query", start),
		cb.Update().Before("gorm:update").Register("db_tracing:start_update", start),
		cb.Delete().Before("gorm:delete").Register("db_tracing:start_delete", start),
		cb.Row().Before("gorm:row").Register("db_tracing:start_row", start),
		cb.Raw().Before("gorm:raw").Register("db_tracing:start_raw", start),

		cb.Create().After("gorm:create").Register("db_tracing:finish_create", finish),
		cb.Query().After("gorm:query").Register("db_tracing:finish_query", finish),
		cb.Update().After("gorm:update").Register("db_tracing:finish_update", finish),
		cb.Delete().After("gorm:delete").Register("db_tracing:finish_delete", finish),
		cb.Row().After("gorm:row").Register("db_tracing:finish_row", finish),
		cb.Raw().After("gorm:raw").Register("db_tracing:finish_raw", finish),
	)
	if err != nil {
		return err
	}

	p.logger.Info("Query tracing enabled",
		zap.String("db_system", p.config.DBSystem),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.Bool("log_full_sql", p.config.LogFullSQL),
	)
	return nil
}

// annotateSpan enriches the statement span with row counts, the table,
// errors, and a slow-query event when the threshold is crossed.
func (p *DBTracingPlugin) annotateSpan(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, 2)
	if db.Statement.RowsAffected >= 0 {
		attrs = append(attrs, attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		attrs = append(attrs, attribute.String("db.sql.table", db.Statement.Table))
	}
	span.SetAttributes(attrs...)

	// Not-found is a normal outcome for balance lookups; only real
	// failures mark the span.
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	startedAt, ok := ctx.Value(traceClockKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(startedAt)
	if elapsed <= p.config.SlowQueryThresh {
		return
	}
	span.SetAttributes(
		attribute.Bool("db.slow_query", true),
		attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
	)
	span.AddEvent("slow_query_warning", trace.WithAttributes(
		attribute.Int64("duration_ms", elapsed.Milliseconds()),
		attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
	))
}
