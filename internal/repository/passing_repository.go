package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/place-better/internal/database"
	"github.com/yourusername/place-better/internal/models"
)

var passingColumns = []string{"race_key", "horse_no", "corner", "pos"}

// PostgresPassingRepository implements PassingRepository for PostgreSQL
type PostgresPassingRepository struct {
	db *database.DB
}

// NewPostgresPassingRepository creates a new passing position repository
func NewPostgresPassingRepository(db *database.DB) PassingRepository {
	return &PostgresPassingRepository{db: db}
}

// ReplaceForRace deletes the race's rows and copies the new set in one transaction
func (r *PostgresPassingRepository) ReplaceForRace(ctx context.Context, raceKey string, positions []models.PassingPosition) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		q := r.db.Querier(ctx)
		if _, err := q.Exec(ctx, `DELETE FROM race_passing_positions WHERE race_key = $1`, raceKey); err != nil {
			return storeErr("delete passing positions", err)
		}
		if len(positions) == 0 {
			return nil
		}

		rows := make([][]any, 0, len(positions))
		for _, p := range positions {
			if p.RaceKey != raceKey {
				return fmt.Errorf("passing position for %s in replace of %s", p.RaceKey, raceKey)
			}
			rows = append(rows, []any{p.RaceKey, p.HorseNo, p.Corner, p.Position})
		}
		count, err := q.CopyFrom(ctx, pgx.Identifier{database.TablePassing}, passingColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return storeErr("copy passing positions", err)
		}
		if count != int64(len(rows)) {
			return fmt.Errorf("inserted %d passing positions, expected %d", count, len(rows))
		}
		return nil
	})
}

// ListByRace retrieves a race's positions ordered by corner then position
func (r *PostgresPassingRepository) ListByRace(ctx context.Context, raceKey string) ([]models.PassingPosition, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT race_key, horse_no, corner, pos FROM race_passing_positions
		WHERE race_key = $1 ORDER BY corner, pos`, raceKey)
	if err != nil {
		return nil, storeErr("list passing positions", err)
	}
	positions, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.PassingPosition])
	if err != nil {
		return nil, storeErr("scan passing positions", err)
	}
	return positions, nil
}

// ListByRaces retrieves the positions of several races keyed by race
func (r *PostgresPassingRepository) ListByRaces(ctx context.Context, raceKeys []string) (map[string][]models.PassingPosition, error) {
	out := make(map[string][]models.PassingPosition, len(raceKeys))
	if len(raceKeys) == 0 {
		return out, nil
	}
	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT race_key, horse_no, corner, pos FROM race_passing_positions
		WHERE race_key = ANY($1) ORDER BY race_key, corner, pos`, raceKeys)
	if err != nil {
		return nil, storeErr("list passing positions", err)
	}
	positions, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.PassingPosition])
	if err != nil {
		return nil, storeErr("scan passing positions", err)
	}
	for _, p := range positions {
		out[p.RaceKey] = append(out[p.RaceKey], p)
	}
	return out, nil
}

// Truncate removes every passing position
func (r *PostgresPassingRepository) Truncate(ctx context.Context) error {
	return r.db.Truncate(ctx, database.TablePassing)
}
