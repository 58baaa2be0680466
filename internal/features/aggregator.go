// Package features derives per-horse passing history features and the
// per-race feature rows fed to the place probability model.
package features

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/repository"
)

// DefaultLookbackN is the number of past races aggregated when none is configured.
const DefaultLookbackN = 3

// frontShare is the share of the field that counts as running in front at corner 1.
const frontShare = 0.3

// PastRace is one earlier race of a horse as seen by the aggregator
type PastRace struct {
	RaceKey   string
	Pos1C     *int
	Pos4C     *int
	FieldSize int
}

// Aggregator computes FeatureSnapshots from stored entries and passing positions
type Aggregator struct {
	entries repository.EntryRepository
	passing repository.PassingRepository
}

// NewAggregator creates an aggregator over the given repositories
func NewAggregator(entries repository.EntryRepository, passing repository.PassingRepository) *Aggregator {
	return &Aggregator{entries: entries, passing: passing}
}

// Aggregate builds the snapshot of horseID for raceKey from at most lookbackN
// races run strictly before asOf.
func (a *Aggregator) Aggregate(ctx context.Context, raceKey, horseID string, asOf time.Time, lookbackN int) (*models.FeatureSnapshot, error) {
	asOfDate := models.FormatRaceDate(asOf)
	history, err := a.History(ctx, horseID, asOfDate, lookbackN)
	if err != nil {
		return nil, err
	}
	snapshot := Compute(history)
	snapshot.RaceKey = raceKey
	snapshot.HorseID = horseID
	snapshot.AsOf = asOfDate
	return snapshot, nil
}

// History loads the most recent lookbackN races of a horse dated before the
// yyyymmdd bound, oldest first.
func (a *Aggregator) History(ctx context.Context, horseID, before string, lookbackN int) ([]PastRace, error) {
	if lookbackN <= 0 {
		lookbackN = DefaultLookbackN
	}

	past, err := a.entries.ListByHorse(ctx, horseID, before)
	if err != nil {
		return nil, fmt.Errorf("failed to load history of horse %s: %w", horseID, err)
	}
	if len(past) > lookbackN {
		past = past[len(past)-lookbackN:]
	}
	if len(past) == 0 {
		return nil, nil
	}

	keys := make([]string, len(past))
	for i, e := range past {
		keys[i] = e.RaceKey
	}
	positions, err := a.passing.ListByRaces(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to load passing positions: %w", err)
	}

	history := make([]PastRace, 0, len(past))
	for _, e := range past {
		field, err := a.entries.ListByRace(ctx, e.RaceKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load field of %s: %w", e.RaceKey, err)
		}
		pr := PastRace{RaceKey: e.RaceKey, FieldSize: len(field)}
		for _, p := range positions[e.RaceKey] {
			if p.HorseNo != e.HorseNo {
				continue
			}
			pos := p.Position
			switch p.Corner {
			case models.FirstCorner:
				pr.Pos1C = &pos
			case models.LastCorner:
				pr.Pos4C = &pos
			}
		}
		history = append(history, pr)
	}
	return history, nil
}

// Compute aggregates a window of past races. Aggregates without inputs stay nil.
func Compute(history []PastRace) *models.FeatureSnapshot {
	snapshot := &models.FeatureSnapshot{NPast: len(history)}

	var pos1, pos4, pct1, pct4, gain, front []float64
	for _, r := range history {
		if r.Pos1C != nil && r.FieldSize > 0 {
			p := float64(*r.Pos1C)
			fs := float64(r.FieldSize)
			pos1 = append(pos1, p)
			pct1 = append(pct1, p/fs)
			if p <= math.Max(1, fs*frontShare) {
				front = append(front, 1)
			} else {
				front = append(front, 0)
			}
		}
		if r.Pos4C != nil && r.FieldSize > 0 {
			p := float64(*r.Pos4C)
			pos4 = append(pos4, p)
			pct4 = append(pct4, p/float64(r.FieldSize))
		}
		if r.Pos1C != nil && r.Pos4C != nil {
			gain = append(gain, float64(*r.Pos1C-*r.Pos4C))
		}
	}

	snapshot.AvgPos1C = mean(pos1)
	snapshot.AvgPos4C = mean(pos4)
	snapshot.AvgGain = mean(gain)
	snapshot.FrontRate = mean(front)
	snapshot.AvgPos1CPct = mean(pct1)
	snapshot.AvgPos4CPct = mean(pct4)
	return snapshot
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	return &m
}
