package config

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigHandler_Get(t *testing.T) {
	configFile := createConfigFile(t, baseConfig)
	handler := ConfigHandler(configFile)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got RuntimeConfig
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, RuntimeConfig{MonitorSleepTimeoutSeconds: 120, DistanceThreshold: 10}, got)
}

func TestConfigHandler_GetBrokenFile(t *testing.T) {
	configFile := createConfigFile(t, "Presence: [")
	handler := ConfigHandler(configFile)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestConfigHandler_MethodNotAllowed(t *testing.T) {
	handler := ConfigHandler(createConfigFile(t, baseConfig))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/config", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestConfigHandler_SetValidation(t *testing.T) {
	tests := []struct {
		name         string
		payload      any
		wantStatus   int
		wantErrorMsg string
		shouldModify bool
	}{
		{
			name:         "Valid Update",
			payload:      RuntimeConfig{MonitorSleepTimeoutSeconds: 600, DistanceThreshold: 5},
			wantStatus:   http.StatusOK,
			shouldModify: true,
		},
		{
			name:         "Zero Sleep Timeout",
			payload:      RuntimeConfig{MonitorSleepTimeoutSeconds: 0, DistanceThreshold: 5},
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "must be at least 1",
		},
		{
			name:         "Negative Threshold",
			payload:      RuntimeConfig{MonitorSleepTimeoutSeconds: 600, DistanceThreshold: -2},
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "must be non-negative",
		},
		{
			name:         "Garbage Body",
			payload:      "not a config",
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile := createConfigFile(t, baseConfig)
			handler := ConfigHandler(configFile)

			body, _ := json.Marshal(tt.payload)
			req := httptest.NewRequest(http.MethodPost, "/api/config", bytes.NewBuffer(body))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantErrorMsg != "" {
				assert.Contains(t, w.Body.String(), tt.wantErrorMsg)
			}

			currentConfig, err := ReadConfig(configFile)
			assert.NoError(t, err)

			if tt.shouldModify {
				assert.Equal(t, tt.payload, currentConfig.Runtime())
				// settings outside the runtime subset survive the rewrite
				assert.Equal(t, 200*time.Millisecond, currentConfig.Presence.PollInterval)
				assert.Equal(t, ":9090", currentConfig.Web.Listen)
			} else {
				assert.Equal(t, RuntimeConfig{MonitorSleepTimeoutSeconds: 120, DistanceThreshold: 10}, currentConfig.Runtime(),
					"file must not be updated with an invalid config")
			}
		})
	}
}
