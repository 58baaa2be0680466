package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/place-better/internal/batch"
	"github.com/yourusername/place-better/internal/features"
	"github.com/yourusername/place-better/internal/ml"
	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/repository"
	"github.com/yourusername/place-better/internal/wagering"
)

// fixedPredictor returns probabilities keyed by horse number
type fixedPredictor struct {
	probs map[int]float64
	err   error
	calls int
}

func (p *fixedPredictor) Predict(_ context.Context, rows []features.FeatureRow) ([]float64, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = p.probs[r.HorseNo]
	}
	return out, nil
}

func floatPtr(v float64) *float64 { return &v }

func seedRecommendation(t *testing.T, repos *repository.Repositories, horse2Min float64) {
	t.Helper()
	ctx := context.Background()
	seedRace(t, repos, gradedRace, 1, 2, 3)
	require.NoError(t, repos.Odds.Upsert(ctx, &models.OddsQuote{
		RaceKey: gradedRace, HorseNo: 1, OddsMin: floatPtr(1.5), OddsMax: floatPtr(2.0),
	}))
	require.NoError(t, repos.Odds.Upsert(ctx, &models.OddsQuote{
		RaceKey: gradedRace, HorseNo: 2, OddsMin: floatPtr(horse2Min), OddsMax: floatPtr(6.0),
	}))
}

func newTestProcessor(repos *repository.Repositories, predictor *fixedPredictor) *RaceProcessor {
	return NewRaceProcessor(repos, features.NewBuilder(repos), predictor, wagering.Policy{}, quietLogger())
}

func TestRaceProcessorRecommends(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	seedRecommendation(t, repos, 4.0)
	predictor := &fixedPredictor{probs: map[int]float64{1: 0.5, 2: 0.3, 3: 0.1}}

	rec, err := newTestProcessor(repos, predictor).Process(context.Background(), gradedRace)
	require.NoError(t, err)

	assert.Equal(t, gradedRace, rec.RaceKey)
	assert.Equal(t, 1, rec.MissingOdds)
	assert.False(t, rec.Fallback)
	require.Len(t, rec.Candidates, 1)
	c := rec.Candidates[0]
	assert.Equal(t, 2, c.HorseNo)
	assert.InDelta(t, 4.0, c.OddsUsed, 1e-9)
	assert.Equal(t, 100, c.Stake)
	assert.InDelta(t, 20.0, c.ExpectedValue, 1e-9)
	assert.InDelta(t, 0.2, c.EVPerUnit, 1e-9)
}

func TestRaceProcessorFallback(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	seedRecommendation(t, repos, 3.0)
	predictor := &fixedPredictor{probs: map[int]float64{1: 0.5, 2: 0.3, 3: 0.1}}

	rec, err := newTestProcessor(repos, predictor).Process(context.Background(), gradedRace)
	require.NoError(t, err)

	assert.True(t, rec.Fallback)
	require.Len(t, rec.Candidates, 1)
	assert.Equal(t, 1, rec.Candidates[0].HorseNo)
	assert.True(t, rec.Candidates[0].Fallback)
}

func TestRaceProcessorSkipsEntrantsWithoutPrediction(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	seedRecommendation(t, repos, 4.0)
	predictor := &fixedPredictor{probs: map[int]float64{1: 0.5, 2: ml.NoPrediction, 3: 0.1}}

	rec, err := newTestProcessor(repos, predictor).Process(context.Background(), gradedRace)
	require.NoError(t, err)

	// horse 2 would have been the only positive EV candidate
	assert.True(t, rec.Fallback)
	require.Len(t, rec.Candidates, 1)
	assert.Equal(t, 1, rec.Candidates[0].HorseNo)
}

func TestRaceProcessorErrors(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	seedRecommendation(t, repos, 4.0)

	predictor := &fixedPredictor{err: errors.New("model down")}
	_, err := newTestProcessor(repos, predictor).Process(context.Background(), gradedRace)
	assert.ErrorContains(t, err, "model down")

	_, err = newTestProcessor(repos, &fixedPredictor{}).Process(context.Background(), "2099010105010101")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRaceProcessorRejectsInvalidPolicy(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	seedRecommendation(t, repos, 4.0)
	predictor := &fixedPredictor{probs: map[int]float64{1: 0.5, 2: 0.3, 3: 0.1}}

	processor := NewRaceProcessor(repos, features.NewBuilder(repos), predictor, wagering.Policy{MaxBetCount: -1}, quietLogger())
	_, err := processor.Process(context.Background(), gradedRace)
	assert.ErrorIs(t, err, wagering.ErrInvalidPolicy)
}

func TestRaceProcessorEmptyRace(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	seedRace(t, repos, ungradedRace)
	predictor := &fixedPredictor{}

	rec, err := newTestProcessor(repos, predictor).Process(context.Background(), ungradedRace)
	require.NoError(t, err)
	assert.Empty(t, rec.Candidates)
	assert.Zero(t, predictor.calls)
}

func TestRaceProcessorInBatch(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	seedRecommendation(t, repos, 4.0)
	predictor := &fixedPredictor{probs: map[int]float64{1: 0.5, 2: 0.3, 3: 0.1}}

	orch := batch.NewOrchestrator(newTestProcessor(repos, predictor), batch.Options{Workers: 2}, quietLogger())
	report, err := orch.Execute(context.Background(), []string{gradedRace, "2099010105010101"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.OK)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Summaries, 2)
	assert.Equal(t, models.SummaryStatusOK, report.Summaries[0].Status)
	assert.Equal(t, 1, report.Summaries[0].NBets)
	assert.Equal(t, 100, report.Summaries[0].TotalStake)
	assert.True(t, report.Summaries[1].Failed())
}
