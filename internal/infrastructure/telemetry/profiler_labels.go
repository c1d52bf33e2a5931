package telemetry

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Label keys attached to profiles so flame graphs can be sliced by
// handler and route in the Pyroscope UI.
const (
	ProfilingLabelController = "controller"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
)

// MaxLabelValueLength caps label values. Longer values are truncated
// before being attached to a profile.
const MaxLabelValueLength = 128

// highCardinalityLabels are keys whose value space is unbounded.
// Attaching them would blow up Pyroscope's series count, so
// sanitizeLabels drops them without logging. Job types are a small
// fixed set and are fine; per-entity identifiers are not.
var highCardinalityLabels = map[string]bool{
	"user_id":          true,
	"request_id":       true,
	"job_id":           true,
	"handling_unit_id": true,
	"trace_id":         true,
	"span_id":          true,
	"session_id":       true,
}

// WithProfilingLabels runs fn with the given labels attached to any
// samples collected during the call. The labels map is copied before
// use, so the caller may reuse or mutate it afterwards.
//
//	telemetry.WithProfilingLabels(ctx, map[string]string{
//	    "controller": "jobs",
//	    "method":     "POST",
//	}, func(c context.Context) {
//	    planAllocation(c)
//	})
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// sanitizeLabels turns a label map into the alternating key/value
// slice the pprof label API takes. Keys are normalized to snake_case,
// high-cardinality and empty entries are dropped, long values are
// truncated, and the output order is deterministic.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}

	pairs := make([]string, 0, len(labels)*2)
	for _, key := range slices.Sorted(maps.Keys(labels)) {
		value := labels[key]
		if key == "" || value == "" || highCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		if key = sanitizeLabelKey(key); key != "" {
			pairs = append(pairs, key, value)
		}
	}
	return pairs
}

// sanitizeLabelKey lowercases the key, maps spaces and dashes to
// underscores, and strips anything outside [a-z0-9_].
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)

	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		switch c := key[i]; {
		case c == ' ' || c == '-':
			b.WriteByte('_')
		case (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_':
			b.WriteByte(c)
		}
	}
	return b.String()
}
