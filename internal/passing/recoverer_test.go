package passing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/place-better/internal/models"
)

const (
	raceKey   = "2024052605021011"
	otherKey  = "2024052705021011"
	ra7Header = "RA720240527" + raceKey
)

func testIndex(horses ...int) *RaceIndex {
	idx := NewRaceIndex()
	idx.AddEntries(raceKey, horses)
	return idx
}

func TestRecoverTokens(t *testing.T) {
	r := NewRecoverer(DefaultConfig())
	idx := testIndex(1, 2, 3, 4, 5, 6, 7, 8)

	payload := ra7Header + "　1(03,01)(02,05) 2*3-1=2,5,8 2(9,9,9,9,9,9,9,9,9,9) 4 3,1,2,5,8,99,3"
	res, err := r.Recover(payload, idx)
	require.NoError(t, err)

	assert.Equal(t, raceKey, res.RaceKey)
	assert.Equal(t, MethodToken, res.Method)
	assert.Equal(t, map[int][]int{
		1: {3, 1, 2, 5},
		2: {3, 1, 2, 5, 8},
		3: {1, 2, 5, 8, 3},
	}, res.Corners)
	assert.Equal(t, 1, r.Stats().Snapshot().Recovered)
}

func TestRecoverRejectsOrphanHorseNumbers(t *testing.T) {
	r := NewRecoverer(DefaultConfig())
	idx := testIndex(1, 3, 5)

	res, err := r.Recover(ra7Header+" 4(3,12,1,3,5)", idx)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 5}, res.Corners[4])
}

func TestRecoverTruncatesAtFieldSize(t *testing.T) {
	r := NewRecoverer(DefaultConfig())
	idx := testIndex(1, 2)

	res, err := r.Recover(ra7Header+" 1*2,1", idx)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, res.Corners[1])
}

func TestRecoverFullWidthDigits(t *testing.T) {
	r := NewRecoverer(DefaultConfig())
	idx := testIndex(1, 2, 3)

	res, err := r.Recover(ra7Header+"　４＊３，１，２", idx)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, res.Corners[4])
}

func TestRecoverBlockScanFallback(t *testing.T) {
	idx := testIndex(1, 2, 3)
	payload := ra7Header + " 1 030102 2 030201 3 010203 4 020301"

	r := NewRecoverer(DefaultConfig())
	res, err := r.Recover(payload, idx)
	require.NoError(t, err)
	assert.Equal(t, MethodBlockScan, res.Method)
	assert.Equal(t, map[int][]int{
		1: {3, 1, 2},
		2: {3, 2, 1},
		3: {1, 2, 3},
		4: {2, 3, 1},
	}, res.Corners)

	cfg := DefaultConfig()
	cfg.BlockScanFallback = false
	strict := NewRecoverer(cfg)
	_, err = strict.Recover(payload, idx)
	assert.ErrorIs(t, err, ErrNoCorners)
}

func TestRecoverUnresolved(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		idx     *RaceIndex
		wantErr error
		count   func(Counts) int
	}{
		{
			name:    "short payload",
			payload: "RA71234",
			idx:     testIndex(1, 2),
			wantErr: ErrInvalidStructure,
			count:   func(c Counts) int { return c.BadRows },
		},
		{
			name:    "unknown race",
			payload: "RA720240527" + "2099010101010101" + " 1*1,2",
			idx:     testIndex(1, 2),
			wantErr: ErrNoRaceKey,
			count:   func(c Counts) int { return c.NoRaceKey },
		},
		{
			name:    "race without entries",
			payload: ra7Header + " 1*1,2",
			idx: func() *RaceIndex {
				idx := NewRaceIndex()
				idx.AddRace(raceKey)
				return idx
			}(),
			wantErr: ErrNoEntries,
			count:   func(c Counts) int { return c.NoEntries },
		},
		{
			name:    "no corner tokens",
			payload: ra7Header + " no corner data here",
			idx:     testIndex(1, 2),
			wantErr: ErrNoCorners,
			count:   func(c Counts) int { return c.NoCorners },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecoverer(DefaultConfig())
			_, err := r.Recover(tt.payload, tt.idx)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrUnresolved)

			counts := r.Stats().Snapshot()
			assert.Equal(t, 1, tt.count(counts))
			assert.Equal(t, 1, counts.Processed)
			assert.Zero(t, counts.Recovered)
		})
	}
}

func TestRaceKeyTieBreak(t *testing.T) {
	payload := ra7Header + " " + otherKey + " 1*1,2"

	t.Run("first registered key wins", func(t *testing.T) {
		idx := NewRaceIndex()
		idx.AddEntries(otherKey, []int{1, 2})
		idx.AddEntries(raceKey, []int{1, 2})

		res, err := NewRecoverer(DefaultConfig()).Recover(payload, idx)
		require.NoError(t, err)
		assert.Equal(t, otherKey, res.RaceKey)
	})

	t.Run("strict date matches header", func(t *testing.T) {
		idx := NewRaceIndex()
		idx.AddEntries(otherKey, []int{1, 2})
		idx.AddEntries(raceKey, []int{1, 2})

		cfg := DefaultConfig()
		cfg.StrictDate = true
		res, err := NewRecoverer(cfg).Recover(payload, idx)
		require.NoError(t, err)
		assert.Equal(t, raceKey, res.RaceKey)
	})

	t.Run("longest key wins", func(t *testing.T) {
		idx := NewRaceIndex()
		idx.AddEntries(raceKey[:14], []int{1, 2})
		idx.AddEntries(raceKey, []int{1, 2})

		res, err := NewRecoverer(DefaultConfig()).Recover(payload, idx)
		require.NoError(t, err)
		assert.Equal(t, raceKey, res.RaceKey)
	})
}

func TestRaceKeyOutsideHeadWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeadWindow = 10
	_, err := NewRecoverer(cfg).Recover(ra7Header+" 1*1,2", testIndex(1, 2))
	assert.ErrorIs(t, err, ErrNoRaceKey)
}

func TestToPositions(t *testing.T) {
	idx := testIndex(1, 2, 3)
	res := Result{
		RaceKey: raceKey,
		Corners: map[int][]int{
			4: {2, 9, 2, 1, 3},
			1: {3, 1},
			7: {1},
		},
	}

	rows := ToPositions(res, idx)
	assert.Equal(t, []models.PassingPosition{
		{RaceKey: raceKey, HorseNo: 3, Corner: 1, Position: 1},
		{RaceKey: raceKey, HorseNo: 1, Corner: 1, Position: 2},
		{RaceKey: raceKey, HorseNo: 2, Corner: 4, Position: 1},
		{RaceKey: raceKey, HorseNo: 1, Corner: 4, Position: 2},
		{RaceKey: raceKey, HorseNo: 3, Corner: 4, Position: 3},
	}, rows)
}

func TestStatsConcurrentRecover(t *testing.T) {
	r := NewRecoverer(DefaultConfig())
	idx := testIndex(1, 2)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Recover(ra7Header+" 1*1,2", idx)
		}()
	}
	wg.Wait()

	r.Stats().AddRowsEmitted(40)
	counts := r.Stats().Snapshot()
	assert.Equal(t, 20, counts.Processed)
	assert.Equal(t, 20, counts.Recovered)
	assert.Contains(t, r.Stats().String(), "Rows=40")

	r.Stats().Reset()
	assert.Zero(t, r.Stats().Snapshot().Processed)
}
