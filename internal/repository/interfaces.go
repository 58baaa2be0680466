package repository

import (
	"context"
	"time"

	"github.com/yourusername/place-better/internal/models"
)

// TelegramFilter selects raw telegrams for streaming
type TelegramFilter struct {
	// Kinds limits the stream to these kinds. Empty means all kinds.
	Kinds []string
	// Since excludes telegrams received before it when non-zero.
	Since time.Time
}

func (f TelegramFilter) matches(t *models.RawTelegram) bool {
	if !f.Since.IsZero() && t.ReceivedAt.Before(f.Since) {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if t.Kind == k {
			return true
		}
	}
	return false
}

// TelegramStore is the append-only store of raw telegrams
type TelegramStore interface {
	Append(ctx context.Context, telegram *models.RawTelegram) error
	AppendBatch(ctx context.Context, telegrams []*models.RawTelegram) error
	// Stream calls fn for each matching telegram in arrival order. An error
	// from fn stops the stream and is returned.
	Stream(ctx context.Context, filter TelegramFilter, fn func(*models.RawTelegram) error) error
	Count(ctx context.Context, filter TelegramFilter) (int64, error)
}

// RaceRepository defines the interface for race data access
type RaceRepository interface {
	Upsert(ctx context.Context, race *models.Race) error
	Get(ctx context.Context, raceKey string) (*models.Race, error)
	ListByDate(ctx context.Context, yyyymmdd string) ([]*models.Race, error)
	// ListKeys returns every race key in ascending order.
	ListKeys(ctx context.Context) ([]string, error)
	Truncate(ctx context.Context) error
}

// EntryRepository defines the interface for entry data access
type EntryRepository interface {
	Upsert(ctx context.Context, entry *models.Entry) error
	// ListByRace returns a race's entries in horse number order.
	ListByRace(ctx context.Context, raceKey string) ([]*models.Entry, error)
	// ListByHorse returns a horse's entries in races dated strictly before
	// the yyyymmdd bound, ordered by race key.
	ListByHorse(ctx context.Context, horseID, before string) ([]*models.Entry, error)
	// HorseNumbersByRace returns each race's horse numbers in ascending order.
	HorseNumbersByRace(ctx context.Context) (map[string][]int, error)
	Truncate(ctx context.Context) error
}

// OddsRepository defines the interface for place odds data access
type OddsRepository interface {
	Upsert(ctx context.Context, quote *models.OddsQuote) error
	ListByRace(ctx context.Context, raceKey string) ([]*models.OddsQuote, error)
	Truncate(ctx context.Context) error
}

// PassingRepository defines the interface for corner passing positions
type PassingRepository interface {
	// ReplaceForRace swaps a race's rows for the given set.
	ReplaceForRace(ctx context.Context, raceKey string, rows []models.PassingPosition) error
	ListByRace(ctx context.Context, raceKey string) ([]models.PassingPosition, error)
	ListByRaces(ctx context.Context, raceKeys []string) (map[string][]models.PassingPosition, error)
	Truncate(ctx context.Context) error
}

// FeatureRepository defines the interface for historical feature snapshots
type FeatureRepository interface {
	Upsert(ctx context.Context, snapshot *models.FeatureSnapshot) error
	Get(ctx context.Context, raceKey, horseID string) (*models.FeatureSnapshot, error)
	ListByRace(ctx context.Context, raceKey string) ([]*models.FeatureSnapshot, error)
	Truncate(ctx context.Context) error
}

// MasterRepository defines the interface for jockey and trainer masters
type MasterRepository interface {
	UpsertJockey(ctx context.Context, jockey *models.Jockey) error
	UpsertTrainer(ctx context.Context, trainer *models.Trainer) error
	UpsertJockeyAlias(ctx context.Context, code, shortName string) error
	UpsertTrainerAlias(ctx context.Context, code, shortName string) error
	GetJockey(ctx context.Context, code string) (*models.Jockey, error)
	GetTrainer(ctx context.Context, code string) (*models.Trainer, error)
	Truncate(ctx context.Context) error
}

// LatestMetricsRepository defines the interface for per-horse latest metrics
type LatestMetricsRepository interface {
	Upsert(ctx context.Context, metrics *models.HorseLatestMetrics) error
	Get(ctx context.Context, horseID string) (*models.HorseLatestMetrics, error)
	Truncate(ctx context.Context) error
}

// Transactor runs fn atomically when the backing store supports it
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}
