package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Table names
const (
	TableTelegrams      = "raw_telegrams"
	TableRaces          = "races"
	TableEntries        = "entries"
	TablePlaceOdds      = "place_odds"
	TablePassing        = "race_passing_positions"
	TableFeatures       = "horse_past_passing_features"
	TableJockeys        = "jockeys"
	TableTrainers       = "trainers"
	TableJockeyAliases  = "jockey_aliases"
	TableTrainerAliases = "trainer_aliases"
	TableLatestMetrics  = "horse_latest_metrics"
)

// DerivedTables are rebuilt from raw telegrams by a re-normalization pass.
var DerivedTables = []string{
	TableFeatures,
	TablePassing,
	TablePlaceOdds,
	TableEntries,
	TableRaces,
	TableLatestMetrics,
	TableJockeyAliases,
	TableTrainerAliases,
	TableJockeys,
	TableTrainers,
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS raw_telegrams (
		id          UUID PRIMARY KEY,
		kind        TEXT NOT NULL,
		dataspec    TEXT NOT NULL DEFAULT '',
		payload     BYTEA NOT NULL,
		received_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS raw_telegrams_kind_idx ON raw_telegrams (kind, received_at)`,
	`CREATE TABLE IF NOT EXISTS races (
		race_key        CHAR(16) PRIMARY KEY,
		yyyymmdd        CHAR(8) NOT NULL,
		course_code     CHAR(2) NOT NULL,
		kai             CHAR(2) NOT NULL,
		day             CHAR(2) NOT NULL,
		race_no         SMALLINT NOT NULL,
		grade_code      TEXT,
		race_name       TEXT,
		race_name_short TEXT,
		distance_m      INTEGER,
		track_code      TEXT,
		surface         TEXT,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS races_date_idx ON races (yyyymmdd)`,
	`CREATE TABLE IF NOT EXISTS entries (
		race_key            CHAR(16) NOT NULL,
		horse_no            SMALLINT NOT NULL,
		horse_id            TEXT,
		horse_name          TEXT,
		jockey_code         TEXT,
		jockey_name_short   TEXT,
		trainer_code        TEXT,
		trainer_name_short  TEXT,
		body_weight         INTEGER,
		handicap_weight_x10 INTEGER,
		finish              SMALLINT,
		is_place            BOOLEAN,
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (race_key, horse_no)
	)`,
	`CREATE INDEX IF NOT EXISTS entries_horse_idx ON entries (horse_id)`,
	`CREATE TABLE IF NOT EXISTS place_odds (
		race_key       CHAR(16) NOT NULL,
		horse_no       SMALLINT NOT NULL,
		place_odds_min DOUBLE PRECISION,
		place_odds_max DOUBLE PRECISION,
		announced_at   TIMESTAMPTZ,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (race_key, horse_no),
		CHECK (place_odds_min IS NULL OR place_odds_max IS NULL OR place_odds_min <= place_odds_max)
	)`,
	`CREATE TABLE IF NOT EXISTS race_passing_positions (
		race_key CHAR(16) NOT NULL,
		horse_no SMALLINT NOT NULL,
		corner   SMALLINT NOT NULL CHECK (corner BETWEEN 1 AND 4),
		pos      SMALLINT NOT NULL CHECK (pos >= 1),
		PRIMARY KEY (race_key, horse_no, corner),
		UNIQUE (race_key, corner, pos)
	)`,
	`CREATE TABLE IF NOT EXISTS horse_past_passing_features (
		race_key       CHAR(16) NOT NULL,
		horse_id       TEXT NOT NULL,
		as_of          CHAR(8) NOT NULL,
		n_past         INTEGER NOT NULL,
		avg_pos_1c     DOUBLE PRECISION,
		avg_pos_4c     DOUBLE PRECISION,
		avg_gain       DOUBLE PRECISION,
		front_rate     DOUBLE PRECISION,
		avg_pos_1c_pct DOUBLE PRECISION,
		avg_pos_4c_pct DOUBLE PRECISION,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (race_key, horse_id)
	)`,
	`CREATE TABLE IF NOT EXISTS jockeys (
		jockey_code       TEXT PRIMARY KEY,
		jockey_name       TEXT,
		jockey_name_short TEXT,
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS trainers (
		trainer_code       TEXT PRIMARY KEY,
		trainer_name       TEXT,
		trainer_name_short TEXT,
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS jockey_aliases (
		jockey_code       TEXT NOT NULL,
		jockey_name_short TEXT NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (jockey_code, jockey_name_short)
	)`,
	`CREATE TABLE IF NOT EXISTS trainer_aliases (
		trainer_code       TEXT NOT NULL,
		trainer_name_short TEXT NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (trainer_code, trainer_name_short)
	)`,
	`CREATE TABLE IF NOT EXISTS horse_latest_metrics (
		horse_id                 TEXT PRIMARY KEY,
		horse_name               TEXT,
		last_race_key            CHAR(16),
		last_race_date           CHAR(8),
		last_body_weight         INTEGER,
		last_handicap_weight_x10 INTEGER,
		last_finish              SMALLINT,
		starts                   INTEGER NOT NULL DEFAULT 0,
		places                   INTEGER NOT NULL DEFAULT 0,
		updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates every table and index that does not exist yet
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return ClassifyError(fmt.Errorf("failed to apply schema: %w", err))
		}
	}
	return nil
}

// Truncate empties the named tables
func (db *DB) Truncate(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	ids := make([]string, len(tables))
	for i, t := range tables {
		ids[i] = pgx.Identifier{t}.Sanitize()
	}
	stmt := "TRUNCATE " + strings.Join(ids, ", ")
	if _, err := db.Querier(ctx).Exec(ctx, stmt); err != nil {
		return ClassifyError(fmt.Errorf("failed to truncate %v: %w", tables, err))
	}
	return nil
}
