package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength caps request IDs taken from inbound headers.
const MaxRequestIDLength = 128

// TracingConfig controls the request tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig names the service and enables tracing.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "wms-backend",
		Enabled:     true,
	}
}

// Tracing traces requests under the default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig opens a span per request via otelgin, named
// "METHOD route_pattern", and tags it with the request ID.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	otel := otelgin.Middleware(cfg.ServiceName)
	return func(c *gin.Context) {
		otel(c)

		if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
			tagSpan(c, span)
		}
	}
}

func tagSpan(c *gin.Context, span trace.Span) {
	if id := spanRequestID(c); id != "" {
		span.SetAttributes(attribute.String("request_id", id))
	}
}

// spanRequestID prefers the ID minted by the RequestID middleware and
// falls back to the inbound header, truncated to a sane length.
func spanRequestID(c *gin.Context) string {
	if v, ok := c.Get("request_id"); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	id := c.GetHeader("X-Request-ID")
	if len(id) > MaxRequestIDLength {
		id = id[:MaxRequestIDLength]
	}
	return id
}

var errorStatusText = map[int]string{
	http.StatusUnauthorized: "Unauthorized",
	http.StatusForbidden:    "Forbidden",
	http.StatusNotFound:     "Not Found",
}

// SpanErrorMarker flags the request span as errored when the response
// ends up 4xx or 5xx. Mount it after the tracing middleware.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}

		msg, ok := errorStatusText[status]
		if !ok {
			msg = "Client Error"
			if status >= http.StatusInternalServerError {
				msg = "Internal Server Error"
			}
		}
		span.SetStatus(codes.Error, msg)
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}

// TracingAttributeInjector re-tags the current span once the request ID
// middleware has run, for chains where RequestID mounts after Tracing.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
			tagSpan(c, span)
		}
		c.Next()
	}
}
