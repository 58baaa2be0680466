package features

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/repository"
)

func intPtr(i int) *int         { return &i }
func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

func TestComputeAggregates(t *testing.T) {
	history := []PastRace{
		{RaceKey: "2024010106010101", Pos1C: intPtr(2), Pos4C: intPtr(1), FieldSize: 10},
		{RaceKey: "2024020106010101", Pos1C: intPtr(8), Pos4C: intPtr(5), FieldSize: 10},
		{RaceKey: "2024030106010101", Pos4C: intPtr(4), FieldSize: 8},
	}

	s := Compute(history)
	assert.Equal(t, 3, s.NPast)
	require.NotNil(t, s.AvgPos1C)
	assert.InDelta(t, 5.0, *s.AvgPos1C, 1e-9)
	assert.InDelta(t, 10.0/3.0, *s.AvgPos4C, 1e-9)
	assert.InDelta(t, 2.0, *s.AvgGain, 1e-9)
	// 2 <= max(1, 3.0) is front, 8 is not.
	assert.InDelta(t, 0.5, *s.FrontRate, 1e-9)
	assert.InDelta(t, 0.5, *s.AvgPos1CPct, 1e-9)
	assert.InDelta(t, (0.1+0.5+0.5)/3, *s.AvgPos4CPct, 1e-9)
}

func TestComputeWithoutInputsIsNil(t *testing.T) {
	s := Compute([]PastRace{{RaceKey: "2024010106010101", FieldSize: 10}})
	assert.Equal(t, 1, s.NPast)
	assert.Nil(t, s.AvgPos1C)
	assert.Nil(t, s.AvgPos4C)
	assert.Nil(t, s.AvgGain)
	assert.Nil(t, s.FrontRate)
	assert.Nil(t, s.AvgPos1CPct)
	assert.Nil(t, s.AvgPos4CPct)

	empty := Compute(nil)
	assert.Equal(t, 0, empty.NPast)
	assert.Nil(t, empty.AvgPos1C)
}

func TestComputeFrontRateSmallField(t *testing.T) {
	// fs*0.3 = 0.9 so the threshold is 1.
	s := Compute([]PastRace{
		{RaceKey: "a", Pos1C: intPtr(1), FieldSize: 3},
		{RaceKey: "b", Pos1C: intPtr(2), FieldSize: 3},
	})
	assert.InDelta(t, 0.5, *s.FrontRate, 1e-9)
}

func TestRelativeStats(t *testing.T) {
	tests := []struct {
		name  string
		input []*float64
		diffs []*float64
		zs    []*float64
	}{
		{
			name:  "population std",
			input: []*float64{f64Ptr(2), f64Ptr(4), f64Ptr(4), f64Ptr(4), f64Ptr(5), f64Ptr(5), f64Ptr(7), f64Ptr(9)},
			diffs: []*float64{f64Ptr(-3), f64Ptr(-1), f64Ptr(-1), f64Ptr(-1), f64Ptr(0), f64Ptr(0), f64Ptr(2), f64Ptr(4)},
			zs:    []*float64{f64Ptr(-1.5), f64Ptr(-0.5), f64Ptr(-0.5), f64Ptr(-0.5), f64Ptr(0), f64Ptr(0), f64Ptr(1), f64Ptr(2)},
		},
		{
			name:  "zero std gives zero z",
			input: []*float64{f64Ptr(480), f64Ptr(480)},
			diffs: []*float64{f64Ptr(0), f64Ptr(0)},
			zs:    []*float64{f64Ptr(0), f64Ptr(0)},
		},
		{
			name:  "nil stays nil",
			input: []*float64{f64Ptr(1), nil, f64Ptr(3)},
			diffs: []*float64{f64Ptr(-1), nil, f64Ptr(1)},
			zs:    []*float64{f64Ptr(-1), nil, f64Ptr(1)},
		},
		{
			name:  "all nil",
			input: []*float64{nil, nil},
			diffs: []*float64{nil, nil},
			zs:    []*float64{nil, nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RelativeStats(tt.input)
			require.Len(t, got, len(tt.input))
			for i := range got {
				assertFloatPtr(t, tt.diffs[i], got[i].Diff)
				assertFloatPtr(t, tt.zs[i], got[i].Z)
			}
		})
	}
}

func assertFloatPtr(t *testing.T, want, got *float64) {
	t.Helper()
	if want == nil {
		assert.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	assert.InDelta(t, *want, *got, 1e-9)
}

const (
	pastRace1 = "2024040705010101"
	pastRace2 = "2024050505020101"
	sameDay   = "2024052605021001"
	thisRace  = "2024052605021011"
	nextRace  = "2024060205030101"
)

func seedHistory(t *testing.T, repos *repository.Repositories) {
	t.Helper()
	ctx := context.Background()

	for _, key := range []string{pastRace1, pastRace2, sameDay, thisRace, nextRace} {
		require.NoError(t, repos.Race.Upsert(ctx, &models.Race{
			RaceKey: key, Date: models.RaceKeyDate(key), CourseCode: key[8:10], Kai: key[10:12], Day: key[12:14], RaceNo: 1,
			DistanceM: intPtr(1600), TrackCode: strPtr("11"), Surface: strPtr(models.SurfaceTurf),
		}))
	}
	// Horse H1 runs in every race as horse 1 against horse 2.
	for _, key := range []string{pastRace1, pastRace2, sameDay, nextRace} {
		require.NoError(t, repos.Entry.Upsert(ctx, &models.Entry{RaceKey: key, HorseNo: 1, HorseID: strPtr("H1")}))
		require.NoError(t, repos.Entry.Upsert(ctx, &models.Entry{RaceKey: key, HorseNo: 2, HorseID: strPtr("H2")}))
		require.NoError(t, repos.Passing.ReplaceForRace(ctx, key, []models.PassingPosition{
			{RaceKey: key, HorseNo: 1, Corner: 1, Position: 2},
			{RaceKey: key, HorseNo: 2, Corner: 1, Position: 1},
			{RaceKey: key, HorseNo: 1, Corner: 4, Position: 1},
			{RaceKey: key, HorseNo: 2, Corner: 4, Position: 2},
		}))
	}
	require.NoError(t, repos.Entry.Upsert(ctx, &models.Entry{
		RaceKey: thisRace, HorseNo: 1, HorseID: strPtr("H1"), BodyWeight: intPtr(480), HandicapWeightX10: intPtr(550),
	}))
	require.NoError(t, repos.Entry.Upsert(ctx, &models.Entry{
		RaceKey: thisRace, HorseNo: 2, HorseID: strPtr("H2"), BodyWeight: intPtr(500), HandicapWeightX10: intPtr(550),
	}))
	require.NoError(t, repos.Entry.Upsert(ctx, &models.Entry{RaceKey: thisRace, HorseNo: 3}))
}

func TestAggregateUsesOnlyEarlierDates(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	seedHistory(t, repos)
	agg := NewAggregator(repos.Entry, repos.Passing)

	asOf, err := models.ParseRaceDate("20240526")
	require.NoError(t, err)

	s, err := agg.Aggregate(context.Background(), thisRace, "H1", asOf, 3)
	require.NoError(t, err)
	// The same-day race and the later race are excluded.
	assert.Equal(t, 2, s.NPast)
	assert.Equal(t, "20240526", s.AsOf)
	assert.InDelta(t, 2.0, *s.AvgPos1C, 1e-9)
	assert.InDelta(t, 1.0, *s.AvgPos4C, 1e-9)
	assert.InDelta(t, 1.0, *s.AvgGain, 1e-9)
	assert.InDelta(t, 1.0, *s.AvgPos1CPct, 1e-9)

	s, err = agg.Aggregate(context.Background(), thisRace, "H1", asOf, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, s.NPast)

	s, err = agg.Aggregate(context.Background(), pastRace1, "H1", mustDate(t, "20240407"), 3)
	require.NoError(t, err)
	assert.Equal(t, 0, s.NPast)
	assert.Nil(t, s.AvgPos1C)
}

func mustDate(t *testing.T, yyyymmdd string) time.Time {
	t.Helper()
	d, err := models.ParseRaceDate(yyyymmdd)
	require.NoError(t, err)
	return d
}

func TestBuildRaceRows(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	seedHistory(t, repos)
	ctx := context.Background()

	require.NoError(t, repos.LatestMetrics.Upsert(ctx, &models.HorseLatestMetrics{
		HorseID: "H1", LastRaceKey: strPtr(pastRace2), LastBodyWeight: intPtr(470), Starts: 4, Places: 1,
	}))
	require.NoError(t, repos.LatestMetrics.Upsert(ctx, &models.HorseLatestMetrics{
		HorseID: "H2", LastRaceKey: strPtr(nextRace), LastBodyWeight: intPtr(490), Starts: 5, Places: 5,
	}))

	b := NewBuilder(repos, WithExtensions(ExtensionFieldSize, ExtensionLatestMetrics))
	rows, err := b.BuildRaceRows(ctx, thisRace)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []int{1, 2, 3}, []int{rows[0].HorseNo, rows[1].HorseNo, rows[2].HorseNo})
	assert.Equal(t, thisRace+"01", rows[0].EntryKey)
	assert.Equal(t, "05", rows[0].CourseCode)

	require.NotNil(t, rows[0].NPast)
	assert.Equal(t, 2, *rows[0].NPast)
	assert.Nil(t, rows[2].NPast)

	assert.InDelta(t, -10.0, *rows[0].BodyWeightDiff, 1e-9)
	assert.InDelta(t, -1.0, *rows[0].BodyWeightZ, 1e-9)
	assert.InDelta(t, 0.0, *rows[1].HandicapWeightZ, 1e-9)
	assert.Nil(t, rows[2].BodyWeightZ)

	assert.InDelta(t, 3.0, *rows[0].Extra[ExtraFieldSize], 1e-9)
	assert.InDelta(t, 10.0, *rows[0].Extra[ExtraBodyWeightChange], 1e-9)
	assert.InDelta(t, 0.25, *rows[0].Extra[ExtraPlaceRate], 1e-9)
	// H2's stored metrics end after this race, so they are rebuilt from the
	// two earlier races, neither of which has a finish.
	require.NotNil(t, rows[1].Extra[ExtraStarts])
	assert.Equal(t, 0.0, *rows[1].Extra[ExtraStarts])
	assert.Nil(t, rows[1].Extra[ExtraPlaceRate])
	assert.Nil(t, rows[1].Extra[ExtraLastBodyWeight])
	assert.Nil(t, rows[2].Extra[ExtraStarts])
}

func TestBuildLatestMetrics(t *testing.T) {
	finish := func(n int) *models.Entry {
		e := &models.Entry{HorseNo: 1}
		e.SetFinish(&n)
		return e
	}
	first := finish(2)
	first.RaceKey = pastRace1
	first.BodyWeight = intPtr(470)
	first.HorseName = strPtr("Horse")
	second := finish(7)
	second.RaceKey = pastRace2
	second.HandicapWeightX10 = intPtr(570)
	unfinished := &models.Entry{RaceKey: nextRace, HorseNo: 4}

	m := BuildLatestMetrics("H1", []*models.Entry{first, second, unfinished})
	require.NotNil(t, m)
	assert.Equal(t, 2, m.Starts)
	assert.Equal(t, 1, m.Places)
	assert.Equal(t, nextRace, *m.LastRaceKey)
	assert.Equal(t, "20240602", *m.LastRaceDate)
	assert.Nil(t, m.LastFinish)
	assert.Equal(t, 470, *m.LastBodyWeight)
	assert.Equal(t, 570, *m.LastHandicapWeightX10)
	assert.Equal(t, "Horse", *m.HorseName)

	assert.Nil(t, BuildLatestMetrics("H1", nil))
}

func TestBuildRaceRowsUsesStoredMetricsFromEarlierDates(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	seedHistory(t, repos)
	ctx := context.Background()

	// stored metrics ending before the race are used as they are
	require.NoError(t, repos.LatestMetrics.Upsert(ctx, &models.HorseLatestMetrics{
		HorseID: "H2", LastRaceKey: strPtr(pastRace2), Starts: 6, Places: 3,
	}))

	b := NewBuilder(repos, WithExtensions(ExtensionLatestMetrics))
	rows, err := b.BuildRaceRows(ctx, thisRace)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.InDelta(t, 6.0, *rows[1].Extra[ExtraStarts], 1e-9)
	assert.InDelta(t, 0.5, *rows[1].Extra[ExtraPlaceRate], 1e-9)

	// no stored metrics at all: H1 is rebuilt from its earlier entries
	require.NotNil(t, rows[0].Extra[ExtraStarts])
	assert.Equal(t, 0.0, *rows[0].Extra[ExtraStarts])
}

func TestBuildRaceRowsPrefersStoredSnapshots(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	seedHistory(t, repos)
	ctx := context.Background()

	require.NoError(t, repos.Feature.Upsert(ctx, &models.FeatureSnapshot{
		RaceKey: thisRace, HorseID: "H1", AsOf: "20240526", NPast: 7, AvgGain: f64Ptr(4.5),
	}))

	rows, err := NewBuilder(repos).BuildRaceRows(ctx, thisRace)
	require.NoError(t, err)
	assert.Equal(t, 7, *rows[0].NPast)
	assert.InDelta(t, 4.5, *rows[0].AvgGain, 1e-9)
	assert.Nil(t, rows[0].Extra)
}

func TestBuildRaceRowsUnknownRace(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	_, err := NewBuilder(repos).BuildRaceRows(context.Background(), thisRace)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestParseExtensions(t *testing.T) {
	exts, err := ParseExtensions([]string{"field_size", "latest_metrics"})
	require.NoError(t, err)
	assert.Equal(t, []Extension{ExtensionFieldSize, ExtensionLatestMetrics}, exts)

	_, err = ParseExtensions([]string{"schema_check"})
	assert.Error(t, err)
}

func TestExportParquet(t *testing.T) {
	placed := true
	rows := []FeatureRow{
		{RaceKey: thisRace, EntryKey: thisRace + "01", HorseID: "H1", HorseNo: 1, Date: "20240526", CourseCode: "05",
			BodyWeight: intPtr(480), HandicapWeightX10: intPtr(550), Placed: &placed, AvgGain: f64Ptr(1)},
		{RaceKey: thisRace, EntryKey: thisRace + "02", HorseID: "H2", HorseNo: 2, Date: "20240526", CourseCode: "05"},
	}

	var buf bytes.Buffer
	n, err := ExportParquet(rows, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	require.Greater(t, buf.Len(), 8)
	assert.Equal(t, "PAR1", buf.String()[:4])
	assert.Equal(t, "PAR1", buf.String()[buf.Len()-4:])
}

func TestLabelledOnly(t *testing.T) {
	placed := false
	rows := []FeatureRow{
		{EntryKey: "a", Placed: &placed, BodyWeight: intPtr(480), HandicapWeightX10: intPtr(550)},
		{EntryKey: "b", BodyWeight: intPtr(480), HandicapWeightX10: intPtr(550)},
		{EntryKey: "c", Placed: &placed, HandicapWeightX10: intPtr(550)},
	}
	out := LabelledOnly(rows)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].EntryKey)
}

type fakePutter struct {
	bucket, key string
	body        []byte
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.bucket = *in.Bucket
	f.key = *in.Key
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3UploaderUpload(t *testing.T) {
	fake := &fakePutter{}
	u := &S3Uploader{client: fake, bucket: "training", prefix: "place"}

	key, err := u.Upload(context.Background(), "rows.parquet", []byte("PAR1"))
	require.NoError(t, err)
	assert.Equal(t, "training", fake.bucket)
	assert.Equal(t, key, fake.key)
	assert.Regexp(t, `^place/\d{4}/\d{2}/\d{2}/rows\.parquet$`, key)
	assert.Equal(t, []byte("PAR1"), fake.body)
}
