package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/repository"
)

func seedHistory(t *testing.T, repos *repository.Repositories) {
	t.Helper()
	ctx := context.Background()

	seedRace(t, repos, earlierRace)
	seedRace(t, repos, gradedRace)
	for _, e := range []*models.Entry{
		{RaceKey: earlierRace, HorseNo: 1, HorseID: strPtr("H1")},
		{RaceKey: earlierRace, HorseNo: 2, HorseID: strPtr("H2")},
		{RaceKey: gradedRace, HorseNo: 1, HorseID: strPtr("H1")},
		{RaceKey: gradedRace, HorseNo: 2, HorseID: strPtr("H2")},
		{RaceKey: gradedRace, HorseNo: 3},
	} {
		require.NoError(t, repos.Entry.Upsert(ctx, e))
	}
	require.NoError(t, repos.Passing.ReplaceForRace(ctx, earlierRace, []models.PassingPosition{
		{RaceKey: earlierRace, HorseNo: 1, Corner: 1, Position: 2},
		{RaceKey: earlierRace, HorseNo: 2, Corner: 1, Position: 1},
		{RaceKey: earlierRace, HorseNo: 1, Corner: 4, Position: 1},
		{RaceKey: earlierRace, HorseNo: 2, Corner: 4, Position: 2},
	}))
}

func TestFeatureServiceRun(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewMemoryRepositories()
	seedHistory(t, repos)

	n, err := NewFeatureService(repos, 3, quietLogger()).Run(ctx, []string{gradedRace, "2099010105010101"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snapshot, err := repos.Feature.Get(ctx, gradedRace, "H1")
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.NPast)
	assert.Equal(t, models.RaceKeyDate(gradedRace), snapshot.AsOf)
	require.NotNil(t, snapshot.AvgPos1C)
	assert.InDelta(t, 2.0, *snapshot.AvgPos1C, 1e-9)
	require.NotNil(t, snapshot.AvgGain)
	assert.InDelta(t, 1.0, *snapshot.AvgGain, 1e-9)
}

func TestFeatureServiceRunAllRaces(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewMemoryRepositories()
	seedHistory(t, repos)

	n, err := NewFeatureService(repos, 0, quietLogger()).Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	first, err := repos.Feature.Get(ctx, earlierRace, "H2")
	require.NoError(t, err)
	assert.Zero(t, first.NPast)
	assert.Nil(t, first.AvgPos1C)
}
