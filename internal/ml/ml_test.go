package ml

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/yourusername/place-better/internal/features"
)

const testRaceKey = "2024052605021011"

func testRows(horseNos ...int) []features.FeatureRow {
	rows := make([]features.FeatureRow, len(horseNos))
	for i, n := range horseNos {
		rows[i] = features.FeatureRow{RaceKey: testRaceKey, HorseNo: n}
	}
	return rows
}

func newTestPredictor(t *testing.T, handler http.HandlerFunc) *HTTPPredictor {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewHTTPPredictor(HTTPPredictorConfig{
		URL:          server.URL,
		APIKey:       "secret",
		ModelVersion: "v1",
		Timeout:      2 * time.Second,
	}, nil)
	require.NoError(t, err)
	return p
}

func TestHTTPPredictor_Success(t *testing.T) {
	var gotAuth string
	var gotReq predictRequest
	p := newTestPredictor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(predictResponse{Probabilities: []float64{0.1, 0.6}, ModelVersion: "v1"})
	})

	probs, err := p.Predict(context.Background(), testRows(1, 2))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.6}, probs)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "v1", gotReq.ModelVersion)
	assert.Len(t, gotReq.Rows, 2)
}

func TestHTTPPredictor_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "wrong length", status: http.StatusOK, body: `{"probabilities":[0.5]}`, wantErr: ErrInvalidPrediction},
		{name: "out of range", status: http.StatusOK, body: `{"probabilities":[0.5,1.2]}`, wantErr: ErrInvalidPrediction},
		{name: "bad json", status: http.StatusOK, body: `not json`, wantErr: ErrInvalidPrediction},
		{name: "server error", status: http.StatusServiceUnavailable, body: `down`, wantErr: ErrPredictorUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPredictor(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := p.Predict(context.Background(), testRows(1, 2))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestHTTPPredictor_ClientErrorNotUnavailable(t *testing.T) {
	p := newTestPredictor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	_, err := p.Predict(context.Background(), testRows(1))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPredictorUnavailable))
}

func TestHTTPPredictor_EmptyRows(t *testing.T) {
	var calls int32
	p := newTestPredictor(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	probs, err := p.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, probs)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestNewHTTPPredictor_RequiresURL(t *testing.T) {
	_, err := NewHTTPPredictor(HTTPPredictorConfig{}, nil)
	assert.Error(t, err)
}

type countingPredictor struct {
	calls int
	probs []float64
}

func (c *countingPredictor) Predict(ctx context.Context, rows []features.FeatureRow) ([]float64, error) {
	c.calls++
	return c.probs, nil
}

func TestCachedPredictor(t *testing.T) {
	next := &countingPredictor{probs: []float64{0.2, 0.4}}
	cached := NewCachedPredictor(next, NewPredictionCache(time.Minute, 10), "v1", nil)
	rows := testRows(1, 2)

	first, err := cached.Predict(context.Background(), rows)
	require.NoError(t, err)
	second, err := cached.Predict(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)

	hits, misses, ratio := cached.Cache().Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
	assert.InDelta(t, 0.5, ratio, 1e-9)

	// a result mutated by the caller must not leak into the cache
	second[0] = 0.99
	third, err := cached.Predict(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 0.2, third[0])
}

func TestCachedPredictor_InvalidNotCached(t *testing.T) {
	next := &countingPredictor{probs: []float64{0.2}}
	cached := NewCachedPredictor(next, NewPredictionCache(time.Minute, 10), "v1", nil)

	_, err := cached.Predict(context.Background(), testRows(1, 2))
	assert.ErrorIs(t, err, ErrInvalidPrediction)
	assert.Zero(t, cached.Cache().ItemCount())
}

func TestPredictionCache_MaxSize(t *testing.T) {
	c := NewPredictionCache(time.Minute, 1)
	c.Set(CacheKey{RaceKey: "a", ModelVersion: "v1"}, []float64{0.1})
	c.Set(CacheKey{RaceKey: "b", ModelVersion: "v1"}, []float64{0.2})

	assert.Equal(t, 1, c.ItemCount())
	_, ok := c.Get(CacheKey{RaceKey: "b", ModelVersion: "v1"})
	assert.False(t, ok)

	c.Clear()
	assert.Zero(t, c.ItemCount())
}

func TestFilePredictor_JSON(t *testing.T) {
	dir := t.TempDir()
	data := `[{"horse_no":"02","p_place":0.7},{"horse_no":1,"p_place":0.3}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pred_"+testRaceKey+".json"), []byte(data), 0o644))

	probs, err := NewFilePredictor(dir).Predict(context.Background(), testRows(1, 2))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 0.7}, probs)
}

func TestFilePredictor_JSONLines(t *testing.T) {
	dir := t.TempDir()
	data := "{\"horse_no\":1,\"p_place\":0.25}\n\n{\"horse_no\":2,\"p_place\":0.5}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, testRaceKey+".jsonl"), []byte(data), 0o644))

	probs, err := NewFilePredictor(dir).Predict(context.Background(), testRows(2, 1))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25}, probs)
}

func TestFilePredictor_Errors(t *testing.T) {
	dir := t.TempDir()
	p := NewFilePredictor(dir)

	_, err := p.Predict(context.Background(), testRows(1))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "pred_"+testRaceKey+".json"), []byte(`[{"horse_no":1,"p_place":0.3`), 0o644))
	_, err = p.Predict(context.Background(), testRows(1))
	assert.ErrorIs(t, err, ErrInvalidPrediction)
}

func TestFilePredictor_MissingHorsesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pred_"+testRaceKey+".json"), []byte(`[{"horse_no":1,"p_place":0.3}]`), 0o644))

	p := NewFilePredictor(dir)
	probs, err := p.Predict(context.Background(), testRows(1, 3))
	require.NoError(t, err)
	require.Len(t, probs, 2)
	assert.Equal(t, 0.3, probs[0])
	assert.False(t, HasPrediction(probs[1]))

	preds, err := PredictRace(context.Background(), p, testRows(1, 3))
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, 1, preds[0].HorseNo)
}

func TestValidateProbabilities(t *testing.T) {
	rows := testRows(1, 2)
	assert.NoError(t, ValidateProbabilities(rows, []float64{0.2, NoPrediction}))
	assert.ErrorIs(t, ValidateProbabilities(rows, []float64{0.2, 1.5}), ErrInvalidPrediction)
	assert.ErrorIs(t, ValidateProbabilities(rows, []float64{0.2}), ErrInvalidPrediction)
}

func TestPredictRace(t *testing.T) {
	preds, err := PredictRace(context.Background(), &countingPredictor{probs: []float64{0.4}}, testRows(5))
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, 5, preds[0].HorseNo)
	assert.Equal(t, testRaceKey+"05", preds[0].EntryKey())
	assert.Equal(t, 0.4, preds[0].Probability)
}

func startHealthServer(t *testing.T, status healthpb.HealthCheckResponse_ServingStatus) *HealthChecker {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", status)
	healthpb.RegisterHealthServer(server, hs)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	checker, err := NewHealthChecker("passthrough:///bufnet", "",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = checker.Close() })
	return checker
}

func TestHealthChecker(t *testing.T) {
	assert.NoError(t, startHealthServer(t, healthpb.HealthCheckResponse_SERVING).Check(context.Background()))

	err := startHealthServer(t, healthpb.HealthCheckResponse_NOT_SERVING).Check(context.Background())
	assert.ErrorIs(t, err, ErrPredictorUnavailable)
}

func TestNewHealthChecker_RequiresAddress(t *testing.T) {
	_, err := NewHealthChecker("", "")
	assert.Error(t, err)
}
