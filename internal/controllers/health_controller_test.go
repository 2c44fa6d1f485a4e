package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smd/internal/models"
	"smd/internal/testutil"
)

func TestHealth(t *testing.T) {
	service := &testutil.MockMonitorService{
		Sessions: map[string]models.FeedSession{
			"cam-1": {CameraID: "cam-1"},
			"cam-2": {CameraID: "cam-2"},
		},
		StreamingActive: 1,
	}
	hc := NewHealthController(service)

	w := httptest.NewRecorder()
	hc.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Sessions)
	assert.Equal(t, 1, resp.Streaming)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, float64(0))
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	hc := NewHealthController(&testutil.MockMonitorService{})

	w := httptest.NewRecorder()
	hc.Health(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0h0m0s", formatDuration(0))
	assert.Equal(t, "1h1m5s", formatDuration(3665e9))
}
