package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/place-better/internal/database"
	"github.com/yourusername/place-better/internal/models"
)

const raceSelect = `
	SELECT race_key, yyyymmdd, course_code, kai, day, race_no, grade_code, race_name,
	       race_name_short, distance_m, track_code, surface, updated_at
	FROM races`

// PostgresRaceRepository implements RaceRepository for PostgreSQL
type PostgresRaceRepository struct {
	db *database.DB
}

// NewPostgresRaceRepository creates a new race repository
func NewPostgresRaceRepository(db *database.DB) RaceRepository {
	return &PostgresRaceRepository{db: db}
}

// Upsert inserts a race or merges it over the stored row
func (r *PostgresRaceRepository) Upsert(ctx context.Context, race *models.Race) error {
	query := `
		INSERT INTO races (race_key, yyyymmdd, course_code, kai, day, race_no, grade_code,
		                   race_name, race_name_short, distance_m, track_code, surface, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		ON CONFLICT (race_key) DO UPDATE SET
			yyyymmdd        = EXCLUDED.yyyymmdd,
			course_code     = EXCLUDED.course_code,
			kai             = EXCLUDED.kai,
			day             = EXCLUDED.day,
			race_no         = EXCLUDED.race_no,
			grade_code      = COALESCE(EXCLUDED.grade_code, races.grade_code),
			race_name       = COALESCE(EXCLUDED.race_name, races.race_name),
			race_name_short = COALESCE(EXCLUDED.race_name_short, races.race_name_short),
			distance_m      = COALESCE(EXCLUDED.distance_m, races.distance_m),
			track_code      = COALESCE(EXCLUDED.track_code, races.track_code),
			surface         = COALESCE(EXCLUDED.surface, races.surface),
			updated_at      = now()
	`
	_, err := r.db.Querier(ctx).Exec(ctx, query,
		race.RaceKey, race.Date, race.CourseCode, race.Kai, race.Day, race.RaceNo, race.GradeCode,
		race.Name, race.ShortName, race.DistanceM, race.TrackCode, race.Surface,
	)
	return storeErr("upsert race", err)
}

// Get retrieves a race by key
func (r *PostgresRaceRepository) Get(ctx context.Context, raceKey string) (*models.Race, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, raceSelect+` WHERE race_key = $1`, raceKey)
	if err != nil {
		return nil, storeErr("get race", err)
	}
	race, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.Race])
	if err != nil {
		return nil, storeErr("get race", err)
	}
	return race, nil
}

// ListByDate retrieves the races run on a date
func (r *PostgresRaceRepository) ListByDate(ctx context.Context, yyyymmdd string) ([]*models.Race, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, raceSelect+` WHERE yyyymmdd = $1 ORDER BY race_key`, yyyymmdd)
	if err != nil {
		return nil, storeErr("list races by date", err)
	}
	races, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.Race])
	if err != nil {
		return nil, storeErr("scan races", err)
	}
	return races, nil
}

// ListKeys returns every race key
func (r *PostgresRaceRepository) ListKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `SELECT race_key FROM races ORDER BY race_key`)
	if err != nil {
		return nil, storeErr("list race keys", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storeErr("scan race keys", err)
	}
	return keys, nil
}

// Truncate removes every race
func (r *PostgresRaceRepository) Truncate(ctx context.Context) error {
	return r.db.Truncate(ctx, database.TableRaces)
}
