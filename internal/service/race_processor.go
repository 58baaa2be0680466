package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/place-better/internal/features"
	"github.com/yourusername/place-better/internal/logger"
	"github.com/yourusername/place-better/internal/metrics"
	"github.com/yourusername/place-better/internal/ml"
	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/repository"
	"github.com/yourusername/place-better/internal/wagering"
)

// RaceProcessor runs the recommendation chain for one race: feature rows,
// place probabilities, odds and the wagering policy.
type RaceProcessor struct {
	builder   *features.Builder
	predictor ml.Predictor
	odds      repository.OddsRepository
	engine    *wagering.Engine
	policy    wagering.Policy
	logger    *logger.WageringLogger
}

// NewRaceProcessor creates a race processor applying policy to every race
func NewRaceProcessor(
	repos *repository.Repositories,
	builder *features.Builder,
	predictor ml.Predictor,
	policy wagering.Policy,
	log *logrus.Logger,
) *RaceProcessor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RaceProcessor{
		builder:   builder,
		predictor: predictor,
		odds:      repos.Odds,
		engine:    wagering.NewEngine(log),
		policy:    policy,
		logger:    logger.NewWageringLogger(log),
	}
}

// Process implements batch.RaceProcessor. A race without entries yields an
// empty recommendation.
func (p *RaceProcessor) Process(ctx context.Context, raceKey string) (*wagering.Recommendation, error) {
	start := time.Now()
	defer func() { metrics.RaceProcessingDuration.Observe(time.Since(start).Seconds()) }()

	rows, err := p.builder.BuildRaceRows(ctx, raceKey)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		p.logger.LogDecision(raceKey, 0, 0, 0, 0, false)
		return &wagering.Recommendation{RaceKey: raceKey}, nil
	}

	preds, err := ml.PredictRace(ctx, p.predictor, rows)
	if err != nil {
		return nil, fmt.Errorf("prediction failed for %s: %w", raceKey, err)
	}
	if missing := len(rows) - len(preds); missing > 0 {
		p.logger.LogMissingPredictions(raceKey, len(rows), missing)
	}

	quotes, err := p.odds.ListByRace(ctx, raceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load odds of %s: %w", raceKey, err)
	}
	odds := make(map[int]models.OddsQuote, len(quotes))
	for _, q := range quotes {
		odds[q.HorseNo] = *q
	}

	rec, err := p.engine.Recommend(preds, odds, p.policy)
	if err != nil {
		return nil, fmt.Errorf("recommendation failed for %s: %w", raceKey, err)
	}
	rec.RaceKey = raceKey

	totalStake := 0
	for _, c := range rec.Candidates {
		totalStake += c.Stake
		if c.Fallback {
			p.logger.LogFallback(raceKey, c.HorseNo, c.Probability)
		}
	}
	p.logger.LogDecision(raceKey, len(rows), len(rec.Candidates), rec.MissingOdds, totalStake, rec.Fallback)
	return &rec, nil
}
