package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/place-better/internal/database"
	"github.com/yourusername/place-better/internal/models"
)

const oddsSelect = `
	SELECT race_key, horse_no, place_odds_min, place_odds_max, announced_at, updated_at
	FROM place_odds`

// PostgresOddsRepository implements OddsRepository for PostgreSQL
type PostgresOddsRepository struct {
	db *database.DB
}

// NewPostgresOddsRepository creates a new odds repository
func NewPostgresOddsRepository(db *database.DB) OddsRepository {
	return &PostgresOddsRepository{db: db}
}

// Upsert merges a quote over the stored one with models.MergeOddsQuote. The
// stored row is locked for the duration of the merge.
func (r *PostgresOddsRepository) Upsert(ctx context.Context, quote *models.OddsQuote) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		q := r.db.Querier(ctx)

		rows, err := q.Query(ctx, oddsSelect+` WHERE race_key = $1 AND horse_no = $2 FOR UPDATE`, quote.RaceKey, quote.HorseNo)
		if err != nil {
			return storeErr("lock odds", err)
		}
		stored, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.OddsQuote])
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return storeErr("lock odds", err)
		}

		merged := models.MergeOddsQuote(stored, quote)
		_, err = q.Exec(ctx, `
			INSERT INTO place_odds (race_key, horse_no, place_odds_min, place_odds_max, announced_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (race_key, horse_no) DO UPDATE SET
				place_odds_min = EXCLUDED.place_odds_min,
				place_odds_max = EXCLUDED.place_odds_max,
				announced_at   = EXCLUDED.announced_at,
				updated_at     = now()
		`, merged.RaceKey, merged.HorseNo, merged.OddsMin, merged.OddsMax, merged.AnnouncedAt)
		return storeErr("upsert odds", err)
	})
}

// ListByRace retrieves a race's quotes in horse number order
func (r *PostgresOddsRepository) ListByRace(ctx context.Context, raceKey string) ([]*models.OddsQuote, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, oddsSelect+` WHERE race_key = $1 ORDER BY horse_no`, raceKey)
	if err != nil {
		return nil, storeErr("list odds", err)
	}
	quotes, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.OddsQuote])
	if err != nil {
		return nil, storeErr("scan odds", err)
	}
	return quotes, nil
}

// Truncate removes every quote
func (r *PostgresOddsRepository) Truncate(ctx context.Context) error {
	return r.db.Truncate(ctx, database.TablePlaceOdds)
}
