package service

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshotAggregates(t *testing.T) {
	m := NewMetricsService()

	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/auth/login", http.StatusOK, 10*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/auth/refresh", http.StatusUnauthorized, 30*time.Millisecond)
	m.RecordAuthOutcome("login", "success")
	m.RecordAuthOutcome("refresh", "session_revoked")
	m.ObserveSessionStore("get", time.Millisecond, nil)
	m.ObserveSessionStore("put", time.Millisecond, errors.New("connection refused"))

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 20.0, snap.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(1), snap.AuthFailures)
	assert.Equal(t, uint64(1), snap.StoreErrors)
	assert.Positive(t, snap.Goroutines)
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordAuthOutcome("logout", "success")
	m.ObserveSessionStore("rotate", time.Millisecond, errors.New("boom"))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, `auth_operations_total{operation="logout",outcome="success"} 1`))
	assert.True(t, strings.Contains(text, `session_store_errors_total{op="rotate"} 1`))
	assert.True(t, strings.Contains(text, "goroutines_total"))
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	m.RecordAuthOutcome("login", "success")
	m.ObserveSessionStore("get", time.Millisecond, nil)
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
