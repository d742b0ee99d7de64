package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func() error

func (f pingerFunc) Ping() error { return f() }

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		ping       error
		wantCode   int
		wantStatus string
		wantDB     string
	}{
		{"database up", nil, http.StatusOK, "healthy", "ok"},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable, "unhealthy", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("returns-api", "1.2.0", pingerFunc(func() error { return tt.ping }))
			w := httptest.NewRecorder()
			c, _ := ginContext(w, http.MethodGet, "/health", "")

			h.Health(c)

			assert.Equal(t, tt.wantCode, w.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantDB, resp.Database)
			assert.Equal(t, "returns-api", resp.Name)
			assert.Equal(t, "1.2.0", resp.Version)
			assert.NotEmpty(t, resp.GoVersion)
		})
	}
}

func TestHealthHandler_SqliteDatabase(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, request{method: http.MethodGet, path: "/health"})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler_Ping(t *testing.T) {
	h := NewHealthHandler("returns-api", "1.2.0", nil)
	w := httptest.NewRecorder()
	c, _ := ginContext(w, http.MethodGet, "/api/v1/ping", "")

	h.Ping(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")
}
