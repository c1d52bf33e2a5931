package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemHandlerGetSystemInfo(t *testing.T) {
	h := NewSystemHandler()
	require.False(t, h.startTime.IsZero())

	c, w := responseContext(t)
	h.GetSystemInfo(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)

	info, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "WMS Backend API", info["name"])
	assert.Equal(t, Version, info["version"])
	assert.NotEmpty(t, info["go_version"])
	assert.NotEmpty(t, info["uptime"])
}

func TestSystemHandlerPing(t *testing.T) {
	c, w := responseContext(t)
	NewSystemHandler().Ping(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)

	pong, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pong", pong["message"])

	ts, err := time.Parse(time.RFC3339, pong["timestamp"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
}
