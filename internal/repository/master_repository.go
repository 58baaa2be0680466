package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/place-better/internal/database"
	"github.com/yourusername/place-better/internal/models"
)

// PostgresMasterRepository implements MasterRepository for PostgreSQL
type PostgresMasterRepository struct {
	db *database.DB
}

// NewPostgresMasterRepository creates a new jockey/trainer master repository
func NewPostgresMasterRepository(db *database.DB) MasterRepository {
	return &PostgresMasterRepository{db: db}
}

// UpsertJockey inserts or merges a jockey master row
func (r *PostgresMasterRepository) UpsertJockey(ctx context.Context, j *models.Jockey) error {
	query := `
		INSERT INTO jockeys (jockey_code, jockey_name, jockey_name_short, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (jockey_code) DO UPDATE SET
			jockey_name       = COALESCE(EXCLUDED.jockey_name, jockeys.jockey_name),
			jockey_name_short = COALESCE(EXCLUDED.jockey_name_short, jockeys.jockey_name_short),
			updated_at        = now()
	`
	_, err := r.db.Querier(ctx).Exec(ctx, query, j.Code, j.Name, j.ShortName)
	return storeErr("upsert jockey", err)
}

// UpsertTrainer inserts or merges a trainer master row
func (r *PostgresMasterRepository) UpsertTrainer(ctx context.Context, t *models.Trainer) error {
	query := `
		INSERT INTO trainers (trainer_code, trainer_name, trainer_name_short, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (trainer_code) DO UPDATE SET
			trainer_name       = COALESCE(EXCLUDED.trainer_name, trainers.trainer_name),
			trainer_name_short = COALESCE(EXCLUDED.trainer_name_short, trainers.trainer_name_short),
			updated_at         = now()
	`
	_, err := r.db.Querier(ctx).Exec(ctx, query, t.Code, t.Name, t.ShortName)
	return storeErr("upsert trainer", err)
}

// UpsertJockeyAlias records a short name seen for a jockey code
func (r *PostgresMasterRepository) UpsertJockeyAlias(ctx context.Context, code, shortName string) error {
	_, err := r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO jockey_aliases (jockey_code, jockey_name_short, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (jockey_code, jockey_name_short) DO UPDATE SET updated_at = now()
	`, code, shortName)
	return storeErr("upsert jockey alias", err)
}

// UpsertTrainerAlias records a short name seen for a trainer code
func (r *PostgresMasterRepository) UpsertTrainerAlias(ctx context.Context, code, shortName string) error {
	_, err := r.db.Querier(ctx).Exec(ctx, `
		INSERT INTO trainer_aliases (trainer_code, trainer_name_short, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (trainer_code, trainer_name_short) DO UPDATE SET updated_at = now()
	`, code, shortName)
	return storeErr("upsert trainer alias", err)
}

// GetJockey retrieves a jockey by code
func (r *PostgresMasterRepository) GetJockey(ctx context.Context, code string) (*models.Jockey, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT jockey_code, jockey_name, jockey_name_short, updated_at
		FROM jockeys WHERE jockey_code = $1`, code)
	if err != nil {
		return nil, storeErr("get jockey", err)
	}
	jockey, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.Jockey])
	if err != nil {
		return nil, storeErr("get jockey", err)
	}
	return jockey, nil
}

// GetTrainer retrieves a trainer by code
func (r *PostgresMasterRepository) GetTrainer(ctx context.Context, code string) (*models.Trainer, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `
		SELECT trainer_code, trainer_name, trainer_name_short, updated_at
		FROM trainers WHERE trainer_code = $1`, code)
	if err != nil {
		return nil, storeErr("get trainer", err)
	}
	trainer, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[models.Trainer])
	if err != nil {
		return nil, storeErr("get trainer", err)
	}
	return trainer, nil
}

// Truncate removes masters and aliases
func (r *PostgresMasterRepository) Truncate(ctx context.Context) error {
	return r.db.Truncate(ctx,
		database.TableJockeyAliases,
		database.TableTrainerAliases,
		database.TableJockeys,
		database.TableTrainers,
	)
}
