package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/place-better/internal/metrics"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndLive(t *testing.T) {
	s := NewServer(Config{ServiceName: "place-better", Version: "1.2.3", Logger: quietLogger()})
	h := s.Handler()

	for _, path := range []string{"/health", "/live"} {
		rec := get(t, h, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		var body HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "place-better", body.Service)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		ready    bool
		db       DatabasePinger
		checks   map[string]Checker
		want     int
		wantKeys map[string]string
	}{
		{
			name:     "not marked ready",
			ready:    false,
			want:     http.StatusServiceUnavailable,
			wantKeys: map[string]string{"service": "not_ready"},
		},
		{
			name:     "all healthy",
			ready:    true,
			db:       stubPinger{},
			checks:   map[string]Checker{"predictor": CheckerFunc(func(context.Context) error { return nil })},
			want:     http.StatusOK,
			wantKeys: map[string]string{"service": "ok", "database": "ok", "predictor": "ok"},
		},
		{
			name:  "predictor down",
			ready: true,
			checks: map[string]Checker{
				"predictor": CheckerFunc(func(context.Context) error { return errors.New("not serving") }),
			},
			want:     http.StatusServiceUnavailable,
			wantKeys: map[string]string{"service": "ok", "predictor": "error: not serving"},
		},
		{
			name:     "database down",
			ready:    true,
			db:       stubPinger{err: errors.New("refused")},
			want:     http.StatusServiceUnavailable,
			wantKeys: map[string]string{"service": "ok", "database": "error: refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(Config{ServiceName: "svc", DB: tt.db, Checks: tt.checks, Logger: quietLogger()})
			s.SetReady(tt.ready)

			rec := get(t, s.Handler(), "/ready")
			assert.Equal(t, tt.want, rec.Code)
			var body ReadyResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantKeys, body.Checks)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.InitRegistry()
	metrics.SetFeedConnected(true)

	s := NewServer(Config{MetricsPath: "/metrics", Logger: quietLogger()})
	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "place_better_feed_connected 1"))

	withoutMetrics := NewServer(Config{Logger: quietLogger()})
	assert.Equal(t, http.StatusNotFound, get(t, withoutMetrics.Handler(), "/metrics").Code)
}
