// Package metrics provides the centralized Prometheus registry for the pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "place_better"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	TelegramsIngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "telegrams_ingested_total",
		Help:      "Total number of raw telegrams appended to the store",
	}, []string{"kind", "source"})
	TelegramsDecodedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "telegrams_decoded_total",
		Help:      "Total number of telegrams decoded by kind and outcome",
	}, []string{"kind", "outcome"})
	PassingRecoveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "passing_recoveries_total",
		Help:      "Total number of corner order recoveries by outcome",
	}, []string{"outcome"})
	BatchRacesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batch_races_total",
		Help:      "Total number of races processed by batch runs by status",
	}, []string{"status"})
	BetCandidatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bet_candidates_total",
		Help:      "Total number of bet candidates recommended",
	})
	FallbackBetsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fallback_bets_total",
		Help:      "Total number of bet candidates produced by the fallback pass",
	})
	PredictorErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictor_errors_total",
		Help:      "Total number of predictor errors",
	}, []string{"predictor", "error_type"})
	MissingPredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "missing_predictions_total",
		Help:      "Total number of entrants a predictor returned no probability for",
	}, []string{"predictor"})
)

// Gauge metrics
var (
	PredictionCacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "prediction_cache_hit_ratio",
		Help:      "Prediction cache hit ratio",
	})
	FeedConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "feed_connected",
		Help:      "Whether the telegram feed receiver is connected",
	})
)

// Histogram metrics
var (
	RaceProcessingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "race_processing_duration_seconds",
		Help:      "Duration of one race's recommendation chain in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	PredictorLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "predictor_latency_seconds",
		Help:      "Predictor call latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"predictor"})
	PassDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pass_duration_seconds",
		Help:      "Duration of normalization, passing and feature passes in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	}, []string{"pass"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(TelegramsIngestedTotal)
		registry.MustRegister(TelegramsDecodedTotal)
		registry.MustRegister(PassingRecoveriesTotal)
		registry.MustRegister(BatchRacesTotal)
		registry.MustRegister(BetCandidatesTotal)
		registry.MustRegister(FallbackBetsTotal)
		registry.MustRegister(PredictorErrorsTotal)
		registry.MustRegister(MissingPredictionsTotal)

		registry.MustRegister(PredictionCacheHitRatio)
		registry.MustRegister(FeedConnected)

		registry.MustRegister(RaceProcessingDuration)
		registry.MustRegister(PredictorLatency)
		registry.MustRegister(PassDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordIngested records telegrams appended from a source.
func RecordIngested(kind, source string, n int) {
	TelegramsIngestedTotal.WithLabelValues(kind, source).Add(float64(n))
}

// RecordDecoded records one decode outcome.
func RecordDecoded(kind, outcome string) {
	TelegramsDecodedTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordRecovery records one passing recovery outcome.
func RecordRecovery(outcome string) {
	PassingRecoveriesTotal.WithLabelValues(outcome).Inc()
}

// RecordRace records a processed race with its status, bet counts and duration.
func RecordRace(status string, bets, fallbackBets int, d time.Duration) {
	BatchRacesTotal.WithLabelValues(status).Inc()
	BetCandidatesTotal.Add(float64(bets))
	FallbackBetsTotal.Add(float64(fallbackBets))
	RaceProcessingDuration.Observe(d.Seconds())
}

// RecordPrediction records a predictor call.
func RecordPrediction(predictor string, d time.Duration, err error, errorType string) {
	PredictorLatency.WithLabelValues(predictor).Observe(d.Seconds())
	if err != nil {
		PredictorErrorsTotal.WithLabelValues(predictor, errorType).Inc()
	}
}

// RecordMissingPredictions records entrants left without a probability.
func RecordMissingPredictions(predictor string, n int) {
	MissingPredictionsTotal.WithLabelValues(predictor).Add(float64(n))
}

// RecordPass records the duration of a pipeline pass.
func RecordPass(pass string, d time.Duration) {
	PassDuration.WithLabelValues(pass).Observe(d.Seconds())
}

// UpdateCacheHitRatio updates the prediction cache hit ratio gauge.
func UpdateCacheHitRatio(ratio float64) {
	PredictionCacheHitRatio.Set(ratio)
}

// SetFeedConnected updates the feed connection gauge.
func SetFeedConnected(connected bool) {
	if connected {
		FeedConnected.Set(1)
		return
	}
	FeedConnected.Set(0)
}
