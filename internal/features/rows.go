package features

import (
	"context"
	"fmt"

	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/repository"
)

// FeatureRow is the model input for one entrant
type FeatureRow struct {
	RaceKey           string  `json:"race_key"`
	EntryKey          string  `json:"entry_key"`
	HorseID           string  `json:"horse_id"`
	HorseNo           int     `json:"horse_no"`
	Date              string  `json:"yyyymmdd"`
	CourseCode        string  `json:"course_code"`
	GradeCode         *string `json:"grade_code"`
	JockeyCode        *string `json:"jockey_code"`
	TrainerCode       *string `json:"trainer_code"`
	BodyWeight        *int    `json:"body_weight"`
	HandicapWeightX10 *int    `json:"handicap_weight_x10"`
	DistanceM         *int    `json:"distance_m"`
	TrackCode         *string `json:"track_code"`
	Surface           *string `json:"surface"`

	AvgPos1C    *float64 `json:"avg_pos_1c_last3"`
	AvgPos4C    *float64 `json:"avg_pos_4c_last3"`
	AvgGain     *float64 `json:"avg_gain_last3"`
	FrontRate   *float64 `json:"front_rate_last3"`
	AvgPos1CPct *float64 `json:"avg_pos_1c_pct_last3"`
	AvgPos4CPct *float64 `json:"avg_pos_4c_pct_last3"`
	NPast       *int     `json:"n_past"`

	BodyWeightDiff     *float64 `json:"body_weight_diff_mean"`
	HandicapWeightDiff *float64 `json:"handicap_weight_x10_diff_mean"`
	BodyWeightZ        *float64 `json:"body_weight_z"`
	HandicapWeightZ    *float64 `json:"handicap_weight_x10_z"`

	Placed *bool               `json:"is_place"`
	Extra  map[string]*float64 `json:"extra,omitempty"`
}

func (r *FeatureRow) setExtra(name string, v *float64) {
	if r.Extra == nil {
		r.Extra = make(map[string]*float64)
	}
	r.Extra[name] = v
}

// Builder assembles FeatureRows from the entity store
type Builder struct {
	races      repository.RaceRepository
	entries    repository.EntryRepository
	snapshots  repository.FeatureRepository
	latest     repository.LatestMetricsRepository
	aggregator *Aggregator
	lookbackN  int
	extensions []Extension
}

// BuilderOption configures a Builder
type BuilderOption func(*Builder)

// WithExtensions enables feature extensions
func WithExtensions(exts ...Extension) BuilderOption {
	return func(b *Builder) { b.extensions = append(b.extensions, exts...) }
}

// WithLookback sets the history window used when a snapshot must be computed on the fly
func WithLookback(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.lookbackN = n
		}
	}
}

// NewBuilder creates a row builder over the repositories
func NewBuilder(repos *repository.Repositories, opts ...BuilderOption) *Builder {
	b := &Builder{
		races:      repos.Race,
		entries:    repos.Entry,
		snapshots:  repos.Feature,
		latest:     repos.LatestMetrics,
		aggregator: NewAggregator(repos.Entry, repos.Passing),
		lookbackN:  DefaultLookbackN,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildRaceRows returns one row per entry of the race in horse number order.
// Missing snapshots are computed from history without being stored.
func (b *Builder) BuildRaceRows(ctx context.Context, raceKey string) ([]FeatureRow, error) {
	race, err := b.races.Get(ctx, raceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load race %s: %w", raceKey, err)
	}
	entries, err := b.entries.ListByRace(ctx, raceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries of %s: %w", raceKey, err)
	}
	stored, err := b.snapshots.ListByRace(ctx, raceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load feature snapshots of %s: %w", raceKey, err)
	}
	byHorse := make(map[string]*models.FeatureSnapshot, len(stored))
	for _, s := range stored {
		byHorse[s.HorseID] = s
	}

	rows := make([]FeatureRow, 0, len(entries))
	for _, e := range entries {
		row := baseRow(race, e)
		if e.HorseID != nil {
			snapshot, ok := byHorse[*e.HorseID]
			if !ok {
				asOf, err := race.RaceDate()
				if err != nil {
					return nil, err
				}
				snapshot, err = b.aggregator.Aggregate(ctx, raceKey, *e.HorseID, asOf, b.lookbackN)
				if err != nil {
					return nil, err
				}
			}
			row.applySnapshot(snapshot)
		}
		rows = append(rows, row)
	}

	applyRelative(rows)

	for _, ext := range b.extensions {
		switch ext {
		case ExtensionFieldSize:
			applyFieldSize(rows)
		case ExtensionLatestMetrics:
			for i := range rows {
				var m *models.HorseLatestMetrics
				if rows[i].HorseID != "" {
					if m, err = b.latestAsOf(ctx, &rows[i]); err != nil {
						return nil, err
					}
				}
				applyLatestMetrics(&rows[i], m)
			}
		}
	}
	return rows, nil
}

func baseRow(race *models.Race, e *models.Entry) FeatureRow {
	row := FeatureRow{
		RaceKey:           race.RaceKey,
		EntryKey:          e.EntryKey(),
		HorseNo:           e.HorseNo,
		Date:              race.Date,
		CourseCode:        race.CourseCode,
		GradeCode:         race.GradeCode,
		JockeyCode:        e.JockeyCode,
		TrainerCode:       e.TrainerCode,
		BodyWeight:        e.BodyWeight,
		HandicapWeightX10: e.HandicapWeightX10,
		DistanceM:         race.DistanceM,
		TrackCode:         race.TrackCode,
		Surface:           race.Surface,
		Placed:            e.Placed,
	}
	if e.HorseID != nil {
		row.HorseID = *e.HorseID
	}
	return row
}

func (r *FeatureRow) applySnapshot(s *models.FeatureSnapshot) {
	if s == nil {
		return
	}
	n := s.NPast
	r.NPast = &n
	r.AvgPos1C = s.AvgPos1C
	r.AvgPos4C = s.AvgPos4C
	r.AvgGain = s.AvgGain
	r.FrontRate = s.FrontRate
	r.AvgPos1CPct = s.AvgPos1CPct
	r.AvgPos4CPct = s.AvgPos4CPct
}

func applyRelative(rows []FeatureRow) {
	body := make([]*int, len(rows))
	handicap := make([]*int, len(rows))
	for i := range rows {
		body[i] = rows[i].BodyWeight
		handicap[i] = rows[i].HandicapWeightX10
	}
	bodyRel := RelativeStats(intsAsFloats(body))
	handicapRel := RelativeStats(intsAsFloats(handicap))
	for i := range rows {
		rows[i].BodyWeightDiff = bodyRel[i].Diff
		rows[i].BodyWeightZ = bodyRel[i].Z
		rows[i].HandicapWeightDiff = handicapRel[i].Diff
		rows[i].HandicapWeightZ = handicapRel[i].Z
	}
}
