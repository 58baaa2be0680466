package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/place-better/internal/features"
	"github.com/yourusername/place-better/internal/metrics"
	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/repository"
)

// FeatureService stores the passing history snapshot of every entry
type FeatureService struct {
	repos      *repository.Repositories
	aggregator *features.Aggregator
	lookbackN  int
	logger     *logrus.Entry
}

// NewFeatureService creates a feature service. lookbackN below 1 takes the default.
func NewFeatureService(repos *repository.Repositories, lookbackN int, log *logrus.Logger) *FeatureService {
	if lookbackN < 1 {
		lookbackN = features.DefaultLookbackN
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FeatureService{
		repos:      repos,
		aggregator: features.NewAggregator(repos.Entry, repos.Passing),
		lookbackN:  lookbackN,
		logger:     log.WithField("component", "features"),
	}
}

// Run computes and upserts the snapshots of the given races, or of every
// stored race when raceKeys is empty. Unknown races are skipped. It returns
// the number of snapshots written.
func (s *FeatureService) Run(ctx context.Context, raceKeys []string) (int, error) {
	start := time.Now()
	defer func() { metrics.RecordPass("features", time.Since(start)) }()

	if len(raceKeys) == 0 {
		keys, err := s.repos.Race.ListKeys(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to list race keys: %w", err)
		}
		raceKeys = keys
	}

	written, skipped := 0, 0
	for _, raceKey := range raceKeys {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := s.runRace(ctx, raceKey)
		if errors.Is(err, models.ErrNotFound) {
			skipped++
			s.logger.WithField("race_key", raceKey).Warn("Race not found, skipping features")
			continue
		}
		if err != nil {
			return written, err
		}
		written += n
	}

	s.logger.WithFields(logrus.Fields{
		"races":       len(raceKeys),
		"skipped":     skipped,
		"snapshots":   written,
		"lookback_n":  s.lookbackN,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Feature pass completed")
	return written, nil
}

func (s *FeatureService) runRace(ctx context.Context, raceKey string) (int, error) {
	race, err := s.repos.Race.Get(ctx, raceKey)
	if err != nil {
		return 0, fmt.Errorf("failed to load race %s: %w", raceKey, err)
	}
	asOf, err := race.RaceDate()
	if err != nil {
		return 0, fmt.Errorf("race %s: %w", raceKey, err)
	}
	entries, err := s.repos.Entry.ListByRace(ctx, raceKey)
	if err != nil {
		return 0, fmt.Errorf("failed to load entries of %s: %w", raceKey, err)
	}

	n := 0
	for _, e := range entries {
		if e.HorseID == nil {
			continue
		}
		snapshot, err := s.aggregator.Aggregate(ctx, raceKey, *e.HorseID, asOf, s.lookbackN)
		if err != nil {
			return n, err
		}
		if err := s.repos.Feature.Upsert(ctx, snapshot); err != nil {
			return n, fmt.Errorf("failed to upsert features of %s/%s: %w", raceKey, *e.HorseID, err)
		}
		n++
	}
	return n, nil
}
