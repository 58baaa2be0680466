package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/place-better/internal/config"
	"github.com/yourusername/place-better/internal/decoder/decodertest"
	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/passing"
	"github.com/yourusername/place-better/internal/repository"
)

func seedRace(t *testing.T, repos *repository.Repositories, raceKey string, horses ...int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repos.Race.Upsert(ctx, &models.Race{
		RaceKey: raceKey, Date: models.RaceKeyDate(raceKey),
		CourseCode: raceKey[8:10], Kai: raceKey[10:12], Day: raceKey[12:14], RaceNo: 11,
	}))
	for _, no := range horses {
		require.NoError(t, repos.Entry.Upsert(ctx, &models.Entry{RaceKey: raceKey, HorseNo: no}))
	}
}

func TestPassingServiceRun(t *testing.T) {
	for _, workers := range []int{1, 4} {
		repos := repository.NewMemoryRepositories()
		seedRace(t, repos, gradedRace, 1, 2, 3)
		seedRace(t, repos, ungradedRace)
		appendTelegrams(t, repos,
			decodertest.Passing(gradedRace, "1*2,1,3 4*1,3,2"),
			decodertest.Passing("2023010105010101", "1*1,2"),
			decodertest.Passing(ungradedRace, "1*1,2"),
			[]byte("RA7 short"),
			decodertest.Passing(gradedRace, "4*3,2,1"),
		)

		svc := NewPassingService(repos, passing.DefaultConfig(), workers, quietLogger())
		counts, err := svc.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, passing.Counts{
			Processed:   5,
			Recovered:   2,
			NoRaceKey:   1,
			NoEntries:   1,
			BadRows:     1,
			RowsEmitted: 6,
		}, counts, "workers=%d", workers)

		rows, err := repos.Passing.ListByRace(context.Background(), gradedRace)
		require.NoError(t, err)
		assert.Equal(t, []models.PassingPosition{
			{RaceKey: gradedRace, HorseNo: 2, Corner: 1, Position: 1},
			{RaceKey: gradedRace, HorseNo: 1, Corner: 1, Position: 2},
			{RaceKey: gradedRace, HorseNo: 3, Corner: 1, Position: 3},
			{RaceKey: gradedRace, HorseNo: 3, Corner: 4, Position: 1},
			{RaceKey: gradedRace, HorseNo: 2, Corner: 4, Position: 2},
			{RaceKey: gradedRace, HorseNo: 1, Corner: 4, Position: 3},
		}, rows, "workers=%d", workers)
	}
}

func TestPassingServiceReplacesOnRerun(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewMemoryRepositories()
	seedRace(t, repos, gradedRace, 1, 2)
	appendTelegrams(t, repos, decodertest.Passing(gradedRace, "1*2,1"))

	svc := NewPassingService(repos, passing.DefaultConfig(), 2, quietLogger())
	_, err := svc.Run(ctx)
	require.NoError(t, err)
	_, err = svc.Run(ctx)
	require.NoError(t, err)

	rows, err := repos.Passing.ListByRace(ctx, gradedRace)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

type failingPassing struct {
	repository.PassingRepository
}

func (failingPassing) ReplaceForRace(context.Context, string, []models.PassingPosition) error {
	return models.ErrStoreUnavailable
}

func TestPassingServiceStoreError(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	repos.Passing = failingPassing{repos.Passing}
	seedRace(t, repos, gradedRace, 1, 2)
	appendTelegrams(t, repos, decodertest.Passing(gradedRace, "1*2,1"))

	_, err := NewPassingService(repos, passing.DefaultConfig(), 1, quietLogger()).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrStoreUnavailable))
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, passing.OutcomeRecovered, outcomeOf(nil))
	assert.Equal(t, passing.OutcomeNoRaceKey, outcomeOf(passing.ErrNoRaceKey))
	assert.Equal(t, passing.OutcomeNoEntries, outcomeOf(passing.ErrNoEntries))
	assert.Equal(t, passing.OutcomeNoCorners, outcomeOf(passing.ErrNoCorners))
	assert.Equal(t, passing.OutcomeBadRow, outcomeOf(passing.ErrInvalidStructure))
}

func TestPassingConfigFrom(t *testing.T) {
	cfg := PassingConfigFrom(&config.PassingConfig{
		HeadWindow: 100, TailWindow: 500, Sentinel: "*", MaxHorseNo: 18, StrictDate: true,
	})
	assert.Equal(t, 100, cfg.HeadWindow)
	assert.Equal(t, 500, cfg.TailWindow)
	assert.Equal(t, 18, cfg.MaxHorseNo)
	assert.True(t, cfg.StrictDate)
	assert.False(t, cfg.BlockScanFallback)
}
