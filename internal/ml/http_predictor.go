package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/place-better/internal/config"
	"github.com/yourusername/place-better/internal/features"
	"github.com/yourusername/place-better/internal/metrics"
)

// HTTPPredictorConfig holds configuration for the model server client
type HTTPPredictorConfig struct {
	URL           string
	APIKey        string
	ModelVersion  string
	Timeout       time.Duration
	RetryAttempts int
	RetryWaitMin  time.Duration
	RetryWaitMax  time.Duration
	RateLimit     float64 // requests per second, 0 for unlimited
}

// HTTPPredictorConfigFrom maps the predictor config section
func HTTPPredictorConfigFrom(cfg *config.PredictorConfig) HTTPPredictorConfig {
	return HTTPPredictorConfig{
		URL:           cfg.URL,
		APIKey:        cfg.APIKey,
		ModelVersion:  cfg.ModelVersion,
		Timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
		RetryAttempts: cfg.RetryAttempts,
		RetryWaitMin:  100 * time.Millisecond,
		RetryWaitMax:  5 * time.Second,
		RateLimit:     cfg.RateLimitPerSecond,
	}
}

type predictRequest struct {
	ModelVersion string                `json:"model_version,omitempty"`
	Rows         []features.FeatureRow `json:"rows"`
}

type predictResponse struct {
	Probabilities []float64 `json:"probabilities"`
	ModelVersion  string    `json:"model_version,omitempty"`
}

// HTTPPredictor posts feature rows to {url}/predict
type HTTPPredictor struct {
	client       *retryablehttp.Client
	limiter      *rate.Limiter
	endpoint     string
	apiKey       string
	modelVersion string
	logger       *logrus.Logger
}

// NewHTTPPredictor creates a retrying, rate-limited model server client
func NewHTTPPredictor(cfg HTTPPredictorConfig, logger *logrus.Logger) (*HTTPPredictor, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("predictor url is required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	retryClient := retryablehttp.NewClient()
	if cfg.Timeout > 0 {
		retryClient.HTTPClient.Timeout = cfg.Timeout
	}
	retryClient.RetryMax = cfg.RetryAttempts
	if cfg.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = cfg.RetryWaitMax
	}
	retryClient.CheckRetry = retryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &HTTPPredictor{
		client:       retryClient,
		limiter:      rate.NewLimiter(limit, 1),
		endpoint:     strings.TrimRight(cfg.URL, "/") + "/predict",
		apiKey:       cfg.APIKey,
		modelVersion: cfg.ModelVersion,
		logger:       logger,
	}, nil
}

// ModelVersion returns the requested model version
func (p *HTTPPredictor) ModelVersion() string {
	return p.modelVersion
}

// Predict sends the rows and validates the returned probabilities
func (p *HTTPPredictor) Predict(ctx context.Context, rows []features.FeatureRow) (probs []float64, err error) {
	if len(rows) == 0 {
		return []float64{}, nil
	}

	start := time.Now()
	errorType := ""
	defer func() {
		metrics.RecordPrediction("http", time.Since(start), err, errorType)
	}()

	if err := p.limiter.Wait(ctx); err != nil {
		errorType = "rate_limit"
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	body, err := json.Marshal(predictRequest{ModelVersion: p.modelVersion, Rows: rows})
	if err != nil {
		errorType = "encode"
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		errorType = "request"
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		errorType = "network"
		return nil, fmt.Errorf("%w: %v", ErrPredictorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		errorType = "status"
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: status %d: %s", ErrPredictorUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
		}
		return nil, fmt.Errorf("predict request rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		errorType = "decode"
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrInvalidPrediction, err)
	}
	if err := ValidateProbabilities(rows, out.Probabilities); err != nil {
		errorType = "invalid"
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"race_key":      rows[0].RaceKey,
		"rows":          len(rows),
		"model_version": out.ModelVersion,
		"duration":      time.Since(start),
	}).Debug("Predictions received")

	return out.Probabilities, nil
}

// retryPolicy retries network errors, 429 and 5xx responses
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}
