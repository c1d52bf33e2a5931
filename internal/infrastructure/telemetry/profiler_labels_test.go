package telemetry

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithProfilingLabels(t *testing.T) {
	t.Run("nil labels run the function untagged", func(t *testing.T) {
		called := false
		WithProfilingLabels(context.Background(), nil, func(ctx context.Context) {
			called = true
			_, ok := pprof.Label(ctx, "controller")
			assert.False(t, ok)
		})
		assert.True(t, called)
	})

	t.Run("labels are visible inside the tagged region", func(t *testing.T) {
		labels := map[string]string{
			ProfilingLabelController: "locations",
			ProfilingLabelRoute:      "/api/v1/locations/:code/balance",
			ProfilingLabelMethod:     "GET",
		}
		WithProfilingLabels(context.Background(), labels, func(ctx context.Context) {
			controller, ok := pprof.Label(ctx, "controller")
			require.True(t, ok)
			assert.Equal(t, "locations", controller)

			route, ok := pprof.Label(ctx, "route")
			require.True(t, ok)
			assert.Equal(t, "/api/v1/locations/:code/balance", route)
		})
	})

	t.Run("per-entity identifiers never reach the profile", func(t *testing.T) {
		labels := map[string]string{
			"job_id":             "JOB-20260901-0001",
			"handling_unit_id":   "HU-000042",
			ProfilingLabelMethod: "POST",
		}
		WithProfilingLabels(context.Background(), labels, func(ctx context.Context) {
			_, ok := pprof.Label(ctx, "job_id")
			assert.False(t, ok)
			_, ok = pprof.Label(ctx, "handling_unit_id")
			assert.False(t, ok)

			method, ok := pprof.Label(ctx, "method")
			require.True(t, ok)
			assert.Equal(t, "POST", method)
		})
	})
}

func TestSanitizeLabels(t *testing.T) {
	t.Run("output order is deterministic", func(t *testing.T) {
		pairs := sanitizeLabels(map[string]string{
			"route":      "/api/v1/jobs",
			"controller": "jobs",
			"method":     "POST",
		})
		assert.Equal(t, []string{
			"controller", "jobs",
			"method", "POST",
			"route", "/api/v1/jobs",
		}, pairs)
	})

	t.Run("empty keys and values are dropped", func(t *testing.T) {
		pairs := sanitizeLabels(map[string]string{
			"":           "PUTAWAY",
			"controller": "",
			"method":     "PUT",
		})
		assert.Equal(t, []string{"method", "PUT"}, pairs)
	})

	t.Run("long values are truncated", func(t *testing.T) {
		pairs := sanitizeLabels(map[string]string{
			"route": strings.Repeat("/segment", 40),
		})
		require.Len(t, pairs, 2)
		assert.Len(t, pairs[1], MaxLabelValueLength)
	})

	t.Run("nil map yields nil", func(t *testing.T) {
		assert.Nil(t, sanitizeLabels(nil))
	})
}

func TestSanitizeLabelKey(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"controller", "controller"},
		{"Job Type", "job_type"},
		{"storage-type", "storage_type"},
		{"Route2", "route2"},
		{"%!?", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sanitizeLabelKey(tc.in), tc.in)
	}
}
