package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/place-better/internal/database"
	"github.com/yourusername/place-better/internal/models"
)

// PostgresLatestMetricsRepository implements LatestMetricsRepository for PostgreSQL
type PostgresLatestMetricsRepository struct {
	db *database.DB
}

// NewPostgresLatestMetricsRepository creates a new latest metrics repository
func NewPostgresLatestMetricsRepository(db *database.DB) LatestMetricsRepository {
	return &PostgresLatestMetricsRepository{db: db}
}

// Upsert merges a horse's latest metrics. Start and place counts are replaced.
func (r *PostgresLatestMetricsRepository) Upsert(ctx context.Context, m *models.HorseLatestMetrics) error {
	query := `
		INSERT INTO horse_latest_metrics (horse_id, horse_name, last_race_key, last_race_date,
		                                  last_body_weight, last_handicap_weight_x10, last_finish,
		                                  starts, places, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (horse_id) DO UPDATE SET
			horse_name               = COALESCE(EXCLUDED.horse_name, horse_latest_metrics.horse_name),
			last_race_key            = COALESCE(EXCLUDED.last_race_key, horse_latest_metrics.last_race_key),
			last_race_date           = COALESCE(EXCLUDED.last_race_date, horse_latest_metrics.last_race_date),
			last_body_weight         = COALESCE(EXCLUDED.last_body_weight, horse_latest_metrics.last_body_weight),
			last_handicap_weight_x10 = COALESCE(EXCLUDED.last_handicap_weight_x10, horse_latest_metrics.last_handicap_weight_x10),
			last_finish              = COALESCE(EXCLUDED.last_finish, horse_latest_metrics.last_finish),
			starts                   = EXCLUDED.starts,
			places                   = EXCLUDED.places,
			updated_at               = now()
	`
	_, err := r.db.Querier(ctx).Exec(ctx, query,
		m.HorseID, m.HorseName, m.LastRaceKey, m.LastRaceDate,
		m.LastBodyWeight, m.LastHandicapWeightX10, m.LastFinish,
		m.Starts, m.Places,
	)
	return storeErr("upsert horse latest metrics", err)
}

// Get retrieves a horse's latest metrics
func (r *PostgresLatestMetricsRepository) Get(ctx context.Context, horseID string) (*models.HorseLatestMetrics, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT horse_id, horse_name, last_race_key, last_race_date, last_body_weight,
		       last_handicap_weight_x10, last_finish, starts, places, updated_at
		FROM horse_latest_metrics WHERE horse_id = $1`, horseID)
	if err != nil {
		return nil, storeErr("get horse latest metrics", err)
	}
	metrics, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.HorseLatestMetrics])
	if err != nil {
		return nil, storeErr("get horse latest metrics", err)
	}
	return metrics, nil
}

// Truncate removes every horse's latest metrics
func (r *PostgresLatestMetricsRepository) Truncate(ctx context.Context) error {
	return r.db.Truncate(ctx, database.TableLatestMetrics)
}
