package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func manualMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return mp, reader
}

func collected(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func meteredEngine(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(mw)
	engine.GET("/api/v1/locations/:code/balance", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"location_code": c.Param("code"), "quantity": "120"})
	})
	engine.POST("/api/v1/jobs", func(c *gin.Context) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"code": "INVALID_JOB"})
	})
	return engine
}

func TestHTTPMetrics(t *testing.T) {
	t.Run("disabled config serves without instruments", func(t *testing.T) {
		engine := meteredEngine(HTTPMetrics(HTTPMetricsConfig{Enabled: false}))

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/locations/A-01/balance", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("nil meter provider is tolerated", func(t *testing.T) {
		engine := meteredEngine(HTTPMetrics(HTTPMetricsConfig{Enabled: true, MeterProvider: nil}))

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/locations/A-01/balance", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHTTPMetricsWithMeter(t *testing.T) {
	t.Run("counts requests under the route pattern", func(t *testing.T) {
		mp, reader := manualMeter(t)
		engine := meteredEngine(HTTPMetricsWithMeter(mp.Meter("http.server"), true))

		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/locations/A-01/balance", nil))
			require.Equal(t, http.StatusOK, rec.Code)
		}

		m := collected(t, reader, "http_server_request_total")
		require.NotNil(t, m, "request counter not registered")
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)

		dp := sum.DataPoints[0]
		assert.EqualValues(t, 3, dp.Value)

		route, ok := dp.Attributes.Value("http.route")
		require.True(t, ok)
		assert.Equal(t, "/api/v1/locations/:code/balance", route.AsString())

		status, ok := dp.Attributes.Value("http.status_code")
		require.True(t, ok)
		assert.EqualValues(t, http.StatusOK, status.AsInt64())
	})

	t.Run("times every request", func(t *testing.T) {
		mp, reader := manualMeter(t)
		engine := meteredEngine(HTTPMetricsWithMeter(mp.Meter("http.server"), true))

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/locations/B-02/balance", nil))

		m := collected(t, reader, "http_server_request_duration_seconds")
		require.NotNil(t, m)
		hist, ok := m.Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		require.Len(t, hist.DataPoints, 1)
		assert.EqualValues(t, 1, hist.DataPoints[0].Count)
	})

	t.Run("sizes the submitted body", func(t *testing.T) {
		mp, reader := manualMeter(t)
		engine := meteredEngine(HTTPMetricsWithMeter(mp.Meter("http.server"), true))

		body := strings.NewReader(`{"job_type":"PICK","lines":[{"item_code":"SKU-001","quantity":"30"}]}`)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		m := collected(t, reader, "http_server_request_size_bytes")
		require.NotNil(t, m)
		hist, ok := m.Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		require.Len(t, hist.DataPoints, 1)
		assert.Greater(t, hist.DataPoints[0].Sum, float64(0))
	})

	t.Run("unmatched paths collapse to one label", func(t *testing.T) {
		mp, reader := manualMeter(t)
		engine := meteredEngine(HTTPMetricsWithMeter(mp.Meter("http.server"), true))

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/no/such/endpoint", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)

		m := collected(t, reader, "http_server_request_total")
		require.NotNil(t, m)
		sum := m.Data.(metricdata.Sum[int64])
		require.Len(t, sum.DataPoints, 1)

		route, ok := sum.DataPoints[0].Attributes.Value("http.route")
		require.True(t, ok)
		assert.Equal(t, "unknown", route.AsString())
	})

	t.Run("disabled meter is a no-op", func(t *testing.T) {
		mp, reader := manualMeter(t)
		engine := meteredEngine(HTTPMetricsWithMeter(mp.Meter("http.server"), false))

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/locations/A-01/balance", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Nil(t, collected(t, reader, "http_server_request_total"))
	})
}
