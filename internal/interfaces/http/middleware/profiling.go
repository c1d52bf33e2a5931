package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wms/backend/internal/infrastructure/telemetry"
)

// ProfilingConfig controls which requests get profiling labels.
type ProfilingConfig struct {
	Enabled          bool
	SkipPaths        []string
	SkipPathPrefixes []string
}

// DefaultProfilingConfig skips health probes, the metrics scrape
// endpoint, and the API docs.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:          true,
		SkipPaths:        []string{"/health", "/healthz", "/ready", "/metrics"},
		SkipPathPrefixes: []string{"/swagger", "/api-docs"},
	}
}

// Profiling labels requests for the profiler under the default config.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig tags each request's goroutines with method, route
// pattern, and controller labels so profiles can be sliced per endpoint.
// Route patterns keep the label set small; raw paths would not.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passthrough
	}

	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skip[path] {
			c.Next()
			return
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		telemetry.WithProfilingLabels(c.Request.Context(), profilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func profilingLabels(c *gin.Context) map[string]string {
	labels := make(map[string]string, 3)
	if method := c.Request.Method; method != "" {
		labels[telemetry.ProfilingLabelMethod] = method
	}
	route := c.FullPath()
	if route != "" {
		labels[telemetry.ProfilingLabelRoute] = route
	}
	if controller := routeController(route); controller != "" {
		labels[telemetry.ProfilingLabelController] = controller
	}
	return labels
}

// routeController pulls the resource segment out of a route pattern:
// "/api/v1/handling-units/:id/anchor" yields "handling-units".
func routeController(route string) string {
	for _, part := range strings.Split(route, "/") {
		switch {
		case part == "", part == "api", versionSegment(part):
			continue
		case strings.HasPrefix(part, ":"), strings.HasPrefix(part, "{"):
			continue
		default:
			return part
		}
	}
	return ""
}

func versionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
