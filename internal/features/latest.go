package features

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourusername/place-better/internal/models"
)

// BuildLatestMetrics summarizes a horse's entries ordered by race key. The
// last race sets the race fields; weights come from the most recent entry
// that carries them. Starts counts entries with a finish.
func BuildLatestMetrics(horseID string, entries []*models.Entry) *models.HorseLatestMetrics {
	if len(entries) == 0 {
		return nil
	}
	m := &models.HorseLatestMetrics{HorseID: horseID}
	for _, e := range entries {
		if e.Finish != nil {
			m.Starts++
		}
		if e.Placed != nil && *e.Placed {
			m.Places++
		}
	}

	last := entries[len(entries)-1]
	raceKey := last.RaceKey
	raceDate := models.RaceKeyDate(raceKey)
	m.LastRaceKey = &raceKey
	m.LastRaceDate = &raceDate
	m.LastFinish = last.Finish

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if m.HorseName == nil {
			m.HorseName = e.HorseName
		}
		if m.LastBodyWeight == nil {
			m.LastBodyWeight = e.BodyWeight
		}
		if m.LastHandicapWeightX10 == nil {
			m.LastHandicapWeightX10 = e.HandicapWeightX10
		}
	}
	return m
}

// latestAsOf returns the horse's latest metrics as they stood before the
// row's race date. A stored row that already covers that date or later is
// rebuilt from the earlier entries.
func (b *Builder) latestAsOf(ctx context.Context, row *FeatureRow) (*models.HorseLatestMetrics, error) {
	m, err := b.latest.Get(ctx, row.HorseID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to load latest metrics: %w", err)
	}
	if coversBefore(m, row.Date) {
		return m, nil
	}
	entries, err := b.entries.ListByHorse(ctx, row.HorseID, row.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries of horse %s: %w", row.HorseID, err)
	}
	return BuildLatestMetrics(row.HorseID, entries), nil
}

func coversBefore(m *models.HorseLatestMetrics, yyyymmdd string) bool {
	return m != nil && m.LastRaceKey != nil && models.RaceKeyDate(*m.LastRaceKey) < yyyymmdd
}
