package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled config yields an inert provider", func(t *testing.T) {
		lp, err := NewLoggerProvider(ctx, LogsConfig{
			Enabled:           false,
			CollectorEndpoint: "localhost:4317",
			ServiceName:       "wms-backend",
		}, zap.NewNop())

		require.NoError(t, err)
		assert.False(t, lp.IsEnabled())
		assert.Nil(t, lp.GetLoggerProvider())
		assert.NoError(t, lp.Shutdown(ctx))
		assert.NoError(t, lp.ForceFlush(ctx))
	})

	t.Run("enabled config builds the pipeline without a live collector", func(t *testing.T) {
		lp, err := NewLoggerProvider(ctx, LogsConfig{
			Enabled:           true,
			CollectorEndpoint: "localhost:4317",
			ServiceName:       "wms-backend",
			Insecure:          true,
		}, zap.NewNop())

		require.NoError(t, err, "exporter construction is lazy and must not dial")
		assert.True(t, lp.IsEnabled())
		require.NotNil(t, lp.GetLoggerProvider())
		assert.NoError(t, lp.Shutdown(ctx))
	})

	t.Run("config round-trips", func(t *testing.T) {
		cfg := LogsConfig{Enabled: false, ServiceName: "wms-backend"}
		lp, err := NewLoggerProvider(ctx, cfg, zap.NewNop())

		require.NoError(t, err)
		assert.Equal(t, cfg, lp.GetConfig())
	})
}

func TestNewZapOTELCore(t *testing.T) {
	t.Run("nil provider falls back to a nop core", func(t *testing.T) {
		core := NewZapOTELCore(ZapBridgeConfig{ServiceName: "wms-backend"})

		assert.False(t, core.Enabled(zapcore.ErrorLevel))
	})

	t.Run("disabled provider falls back to a nop core", func(t *testing.T) {
		lp, err := NewLoggerProvider(context.Background(), LogsConfig{Enabled: false}, zap.NewNop())
		require.NoError(t, err)

		core := NewZapOTELCore(ZapBridgeConfig{ServiceName: "wms-backend", LoggerProvider: lp})
		assert.False(t, core.Enabled(zapcore.ErrorLevel))
	})

	t.Run("enabled provider yields a live core honoring the level", func(t *testing.T) {
		lp, err := NewLoggerProvider(context.Background(), LogsConfig{
			Enabled:           true,
			CollectorEndpoint: "localhost:4317",
			ServiceName:       "wms-backend",
			Insecure:          true,
		}, zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })

		core := NewZapOTELCore(ZapBridgeConfig{
			ServiceName:    "wms-backend",
			LoggerProvider: lp,
			Level:          zapcore.WarnLevel,
		})

		assert.False(t, core.Enabled(zapcore.InfoLevel))
		assert.True(t, core.Enabled(zapcore.WarnLevel))
		assert.True(t, core.Enabled(zapcore.ErrorLevel))
	})
}

func TestLevelFilterCore(t *testing.T) {
	observed, recorded := observer.New(zapcore.DebugLevel)
	filtered := &levelFilterCore{Core: observed, minLevel: zapcore.WarnLevel}
	logger := zap.New(filtered)

	logger.Info("allocation planned")
	logger.Warn("reservation expiring")
	logger.Error("posting failed")

	require.Equal(t, 2, recorded.Len())
	entries := recorded.All()
	assert.Equal(t, "reservation expiring", entries[0].Message)
	assert.Equal(t, "posting failed", entries[1].Message)

	t.Run("With keeps the filter", func(t *testing.T) {
		child := filtered.With([]zapcore.Field{zap.String("job_code", "JOB-20260901-0001")})
		assert.False(t, child.Enabled(zapcore.InfoLevel))
		assert.True(t, child.Enabled(zapcore.ErrorLevel))
	})
}

func TestLoggerProviderTee(t *testing.T) {
	// The bridge is meant to be teed with the stdout core; entries must
	// still reach the original core when OTEL is off.
	observed, recorded := observer.New(zapcore.InfoLevel)
	otelCore := NewZapOTELCore(ZapBridgeConfig{ServiceName: "wms-backend"})
	logger := zap.New(zapcore.NewTee(observed, otelCore))

	logger.Info("stocktake posted", zap.String("job_code", "JOB-20260901-0002"))

	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "stocktake posted", recorded.All()[0].Message)
}
