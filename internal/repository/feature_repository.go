package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/place-better/internal/database"
	"github.com/yourusername/place-better/internal/models"
)

const featureSelect = `
	SELECT race_key, horse_id, as_of, n_past, avg_pos_1c, avg_pos_4c, avg_gain, front_rate,
	       avg_pos_1c_pct, avg_pos_4c_pct, updated_at
	FROM horse_past_passing_features`

// PostgresFeatureRepository implements FeatureRepository for PostgreSQL
type PostgresFeatureRepository struct {
	db *database.DB
}

// NewPostgresFeatureRepository creates a new feature snapshot repository
func NewPostgresFeatureRepository(db *database.DB) FeatureRepository {
	return &PostgresFeatureRepository{db: db}
}

// Upsert stores a snapshot. A recomputed snapshot replaces the stored one whole,
// including aggregates that became nil.
func (r *PostgresFeatureRepository) Upsert(ctx context.Context, s *models.FeatureSnapshot) error {
	query := `
		INSERT INTO horse_past_passing_features (race_key, horse_id, as_of, n_past, avg_pos_1c, avg_pos_4c,
		                                         avg_gain, front_rate, avg_pos_1c_pct, avg_pos_4c_pct, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (race_key, horse_id) DO UPDATE SET
			as_of          = EXCLUDED.as_of,
			n_past         = EXCLUDED.n_past,
			avg_pos_1c     = EXCLUDED.avg_pos_1c,
			avg_pos_4c     = EXCLUDED.avg_pos_4c,
			avg_gain       = EXCLUDED.avg_gain,
			front_rate     = EXCLUDED.front_rate,
			avg_pos_1c_pct = EXCLUDED.avg_pos_1c_pct,
			avg_pos_4c_pct = EXCLUDED.avg_pos_4c_pct,
			updated_at     = now()
	`
	_, err := r.db.Querier(ctx).Exec(ctx, query,
		s.RaceKey, s.HorseID, s.AsOf, s.NPast, s.AvgPos1C, s.AvgPos4C,
		s.AvgGain, s.FrontRate, s.AvgPos1CPct, s.AvgPos4CPct,
	)
	return storeErr("upsert feature snapshot", err)
}

// Get retrieves one horse's snapshot for a race
func (r *PostgresFeatureRepository) Get(ctx context.Context, raceKey, horseID string) (*models.FeatureSnapshot, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, featureSelect+` WHERE race_key = $1 AND horse_id = $2`, raceKey, horseID)
	if err != nil {
		return nil, storeErr("get feature snapshot", err)
	}
	snapshot, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.FeatureSnapshot])
	if err != nil {
		return nil, storeErr("get feature snapshot", err)
	}
	return snapshot, nil
}

// ListByRace retrieves every snapshot of a race
func (r *PostgresFeatureRepository) ListByRace(ctx context.Context, raceKey string) ([]*models.FeatureSnapshot, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, featureSelect+` WHERE race_key = $1 ORDER BY horse_id`, raceKey)
	if err != nil {
		return nil, storeErr("list feature snapshots", err)
	}
	snapshots, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.FeatureSnapshot])
	if err != nil {
		return nil, storeErr("scan feature snapshots", err)
	}
	return snapshots, nil
}

// Truncate removes every snapshot
func (r *PostgresFeatureRepository) Truncate(ctx context.Context) error {
	return r.db.Truncate(ctx, database.TableFeatures)
}
