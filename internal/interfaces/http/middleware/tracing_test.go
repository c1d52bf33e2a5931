package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans swaps in a recording tracer provider for the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})
	return sr
}

func tracedEngine(status int, mws ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(mws...)
	engine.GET("/api/v1/jobs/:code", func(c *gin.Context) {
		c.JSON(status, gin.H{"job_code": c.Param("code")})
	})
	return engine
}

func getJob(engine *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/JOB-20260901-0001", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	engine.ServeHTTP(rec, req)
	return rec
}

func requestSpan(t *testing.T, sr *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range sr.Ended() {
		if span.Name() == "GET /api/v1/jobs/:code" {
			return span
		}
	}
	t.Fatal("request span not recorded")
	return nil
}

func spanAttribute(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, attr := range span.Attributes() {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingWithConfig(t *testing.T) {
	t.Run("records a span named after the route pattern", func(t *testing.T) {
		sr := recordSpans(t)
		engine := tracedEngine(http.StatusOK, TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "wms-backend"}))

		rec := getJob(engine, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		requestSpan(t, sr)
	})

	t.Run("tags the span with the minted request id", func(t *testing.T) {
		sr := recordSpans(t)
		engine := tracedEngine(http.StatusOK,
			RequestID(),
			TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "wms-backend"}),
			TracingAttributeInjector(),
		)

		getJob(engine, map[string]string{"X-Request-ID": "gw-77"})

		val, ok := spanAttribute(requestSpan(t, sr), "request_id")
		require.True(t, ok, "request_id attribute missing")
		assert.Equal(t, "gw-77", val.AsString())
	})

	t.Run("disabled config records nothing", func(t *testing.T) {
		sr := recordSpans(t)
		engine := tracedEngine(http.StatusOK, TracingWithConfig(TracingConfig{Enabled: false}))

		rec := getJob(engine, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, sr.Ended())
	})
}

func TestSpanRequestID(t *testing.T) {
	t.Run("oversized header ids are truncated", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		c.Request.Header.Set("X-Request-ID", strings.Repeat("x", MaxRequestIDLength+40))

		assert.Len(t, spanRequestID(c), MaxRequestIDLength)
	})

	t.Run("context value wins over the header", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		c.Request.Header.Set("X-Request-ID", "from-header")
		c.Set("request_id", "from-context")

		assert.Equal(t, "from-context", spanRequestID(c))
	})
}

func TestSpanErrorMarker(t *testing.T) {
	tracing := TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "wms-backend"})

	t.Run("not found marks the span errored", func(t *testing.T) {
		sr := recordSpans(t)
		engine := tracedEngine(http.StatusNotFound, tracing, SpanErrorMarker())

		getJob(engine, nil)

		span := requestSpan(t, sr)
		assert.Equal(t, codes.Error, span.Status().Code)
		assert.Equal(t, "Not Found", span.Status().Description)
	})

	t.Run("server failure gets the generic description", func(t *testing.T) {
		sr := recordSpans(t)
		engine := tracedEngine(http.StatusBadGateway, tracing, SpanErrorMarker())

		getJob(engine, nil)

		span := requestSpan(t, sr)
		assert.Equal(t, codes.Error, span.Status().Code)
		assert.Equal(t, "Internal Server Error", span.Status().Description)

		val, ok := spanAttribute(span, "http.status_code")
		require.True(t, ok)
		assert.EqualValues(t, http.StatusBadGateway, val.AsInt64())
	})

	t.Run("success leaves the span status alone", func(t *testing.T) {
		sr := recordSpans(t)
		engine := tracedEngine(http.StatusOK, tracing, SpanErrorMarker())

		getJob(engine, nil)

		assert.NotEqual(t, codes.Error, requestSpan(t, sr).Status().Code)
	})
}
