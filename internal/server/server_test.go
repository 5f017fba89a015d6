package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cricket-prediction-bot/internal/metrics"
	"cricket-prediction-bot/internal/pkg/db"
)

type stubChecker struct {
	err   error
	stats db.PoolStats
}

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func (s stubChecker) Stats() db.PoolStats { return s.stats }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		status string
	}{
		{"healthy", nil, http.StatusOK, "ok"},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := db.PoolStats{TotalConns: 4, IdleConns: 3, AcquiredConns: 1, MaxConns: 20}
			r := NewRouter(stubChecker{err: tt.err, stats: stats})
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.code, rec.Code)
			var body struct {
				Status string       `json:"status"`
				Pool   db.PoolStats `json:"pool"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
			assert.Equal(t, stats, body.Pool)
		})
	}
}

func TestMetrics(t *testing.T) {
	metrics.RecordUpdate("/live")

	r := NewRouter(stubChecker{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cricket_bot_bot_updates_total")
}
