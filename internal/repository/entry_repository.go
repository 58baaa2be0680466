package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/place-better/internal/database"
	"github.com/yourusername/place-better/internal/models"
)

const entrySelect = `
	SELECT race_key, horse_no, horse_id, horse_name, jockey_code, jockey_name_short,
	       trainer_code, trainer_name_short, body_weight, handicap_weight_x10, finish,
	       is_place, updated_at
	FROM entries`

// PostgresEntryRepository implements EntryRepository for PostgreSQL
type PostgresEntryRepository struct {
	db *database.DB
}

// NewPostgresEntryRepository creates a new entry repository
func NewPostgresEntryRepository(db *database.DB) EntryRepository {
	return &PostgresEntryRepository{db: db}
}

// Upsert inserts an entry or merges it over the stored row. The placed flag
// follows the merged finish.
func (r *PostgresEntryRepository) Upsert(ctx context.Context, e *models.Entry) error {
	query := `
		INSERT INTO entries (race_key, horse_no, horse_id, horse_name, jockey_code, jockey_name_short,
		                     trainer_code, trainer_name_short, body_weight, handicap_weight_x10,
		                     finish, is_place, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		ON CONFLICT (race_key, horse_no) DO UPDATE SET
			horse_id            = COALESCE(EXCLUDED.horse_id, entries.horse_id),
			horse_name          = COALESCE(EXCLUDED.horse_name, entries.horse_name),
			jockey_code         = COALESCE(EXCLUDED.jockey_code, entries.jockey_code),
			jockey_name_short   = COALESCE(EXCLUDED.jockey_name_short, entries.jockey_name_short),
			trainer_code        = COALESCE(EXCLUDED.trainer_code, entries.trainer_code),
			trainer_name_short  = COALESCE(EXCLUDED.trainer_name_short, entries.trainer_name_short),
			body_weight         = COALESCE(EXCLUDED.body_weight, entries.body_weight),
			handicap_weight_x10 = COALESCE(EXCLUDED.handicap_weight_x10, entries.handicap_weight_x10),
			finish              = COALESCE(EXCLUDED.finish, entries.finish),
			is_place            = CASE
			                          WHEN COALESCE(EXCLUDED.finish, entries.finish) IS NULL THEN NULL
			                          ELSE COALESCE(EXCLUDED.finish, entries.finish) <= $13
			                      END,
			updated_at          = now()
	`
	_, err := r.db.Querier(ctx).Exec(ctx, query,
		e.RaceKey, e.HorseNo, e.HorseID, e.HorseName, e.JockeyCode, e.JockeyName,
		e.TrainerCode, e.TrainerName, e.BodyWeight, e.HandicapWeightX10, e.Finish, e.Placed,
		models.PlaceCutoff,
	)
	return storeErr("upsert entry", err)
}

// ListByRace retrieves a race's entries
func (r *PostgresEntryRepository) ListByRace(ctx context.Context, raceKey string) ([]*models.Entry, error) {
	return r.list(ctx, "list entries by race", entrySelect+` WHERE race_key = $1 ORDER BY horse_no`, raceKey)
}

// ListByHorse retrieves a horse's earlier entries. Race keys start with the
// race date, so comparing against the 8-digit bound selects strictly earlier dates.
func (r *PostgresEntryRepository) ListByHorse(ctx context.Context, horseID, before string) ([]*models.Entry, error) {
	return r.list(ctx, "list entries by horse",
		entrySelect+` WHERE horse_id = $1 AND race_key < $2 ORDER BY race_key`, horseID, before)
}

func (r *PostgresEntryRepository) list(ctx context.Context, op, query string, args ...any) ([]*models.Entry, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.Entry])
	if err != nil {
		return nil, storeErr("scan entries", err)
	}
	return entries, nil
}

// HorseNumbersByRace returns the horse numbers of every race
func (r *PostgresEntryRepository) HorseNumbersByRace(ctx context.Context) (map[string][]int, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `SELECT race_key, horse_no FROM entries ORDER BY race_key, horse_no`)
	if err != nil {
		return nil, storeErr("list horse numbers", err)
	}
	defer rows.Close()

	out := make(map[string][]int)
	for rows.Next() {
		var (
			raceKey string
			horseNo int
		)
		if err := rows.Scan(&raceKey, &horseNo); err != nil {
			return nil, storeErr("scan horse number", err)
		}
		out[raceKey] = append(out[raceKey], horseNo)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list horse numbers", err)
	}
	return out, nil
}

// Truncate removes every entry
func (r *PostgresEntryRepository) Truncate(ctx context.Context) error {
	return r.db.Truncate(ctx, database.TableEntries)
}
