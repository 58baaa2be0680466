package ml

import (
	"context"
	"fmt"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/place-better/internal/features"
	"github.com/yourusername/place-better/internal/metrics"
)

// CacheKey identifies one race's predictions from one model version
type CacheKey struct {
	RaceKey      string
	ModelVersion string
}

// String returns string representation of cache key
func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s", k.RaceKey, k.ModelVersion)
}

// PredictionCache keeps per-race probability vectors in memory
type PredictionCache struct {
	cache     *cache.Cache
	ttl       time.Duration
	maxSize   int
	mu        sync.Mutex
	hitCount  uint64
	missCount uint64
}

// NewPredictionCache creates a new prediction cache
func NewPredictionCache(ttl time.Duration, maxSize int) *PredictionCache {
	return &PredictionCache{
		cache:   cache.New(ttl, ttl*2),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get retrieves cached probabilities
func (pc *PredictionCache) Get(key CacheKey) ([]float64, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if v, found := pc.cache.Get(key.String()); found {
		if probs, ok := v.([]float64); ok {
			pc.hitCount++
			pc.updateMetrics()
			return probs, true
		}
	}
	pc.missCount++
	pc.updateMetrics()
	return nil, false
}

// Set stores probabilities. A full cache drops expired items first and skips
// the insert when still full.
func (pc *PredictionCache) Set(key CacheKey, probs []float64) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.maxSize > 0 && pc.cache.ItemCount() >= pc.maxSize {
		pc.cache.DeleteExpired()
		if pc.cache.ItemCount() >= pc.maxSize {
			return
		}
	}
	cp := make([]float64, len(probs))
	copy(cp, probs)
	pc.cache.Set(key.String(), cp, pc.ttl)
}

// Invalidate removes one race's entry
func (pc *PredictionCache) Invalidate(key CacheKey) {
	pc.cache.Delete(key.String())
}

// Clear flushes the entire cache
func (pc *PredictionCache) Clear() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.cache.Flush()
	pc.hitCount = 0
	pc.missCount = 0
}

// Stats returns cache statistics
func (pc *PredictionCache) Stats() (hits, misses uint64, ratio float64) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.stats()
}

func (pc *PredictionCache) stats() (hits, misses uint64, ratio float64) {
	hits = pc.hitCount
	misses = pc.missCount
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

func (pc *PredictionCache) updateMetrics() {
	_, _, ratio := pc.stats()
	metrics.UpdateCacheHitRatio(ratio)
}

// ItemCount returns the number of items in cache
func (pc *PredictionCache) ItemCount() int {
	return pc.cache.ItemCount()
}

// CachedPredictor wraps a Predictor with a per-race cache
type CachedPredictor struct {
	next         Predictor
	cache        *PredictionCache
	modelVersion string
	logger       *logrus.Logger
}

// NewCachedPredictor creates a cached predictor
func NewCachedPredictor(next Predictor, cache *PredictionCache, modelVersion string, logger *logrus.Logger) *CachedPredictor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CachedPredictor{next: next, cache: cache, modelVersion: modelVersion, logger: logger}
}

// Predict serves a race from cache when the same rows were predicted before
func (c *CachedPredictor) Predict(ctx context.Context, rows []features.FeatureRow) ([]float64, error) {
	if len(rows) == 0 {
		return c.next.Predict(ctx, rows)
	}

	key := CacheKey{RaceKey: rows[0].RaceKey, ModelVersion: c.modelVersion}
	if probs, ok := c.cache.Get(key); ok && len(probs) == len(rows) {
		c.logger.WithField("cache_key", key.String()).Debug("Cache hit for predictions")
		out := make([]float64, len(probs))
		copy(out, probs)
		return out, nil
	}

	probs, err := c.next.Predict(ctx, rows)
	if err != nil {
		return nil, err
	}
	if err := ValidateProbabilities(rows, probs); err != nil {
		return nil, err
	}
	c.cache.Set(key, probs)
	return probs, nil
}

// Cache returns the underlying cache
func (c *CachedPredictor) Cache() *PredictionCache {
	return c.cache
}
