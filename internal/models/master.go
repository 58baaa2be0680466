package models

import "time"

// Jockey is a jockey master row from KS records
type Jockey struct {
	Code      string    `db:"jockey_code" json:"jockey_code" validate:"required,len=5"`
	Name      *string   `db:"jockey_name" json:"jockey_name"`
	ShortName *string   `db:"jockey_name_short" json:"jockey_name_short"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Trainer is a trainer master row from CH records
type Trainer struct {
	Code      string    `db:"trainer_code" json:"trainer_code" validate:"required,len=5"`
	Name      *string   `db:"trainer_name" json:"trainer_name"`
	ShortName *string   `db:"trainer_name_short" json:"trainer_name_short"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HorseLatestMetrics is the most recent known state of a horse
type HorseLatestMetrics struct {
	HorseID               string    `db:"horse_id" json:"horse_id"`
	HorseName             *string   `db:"horse_name" json:"horse_name"`
	LastRaceKey           *string   `db:"last_race_key" json:"last_race_key"`
	LastRaceDate          *string   `db:"last_race_date" json:"last_race_date"`
	LastBodyWeight        *int      `db:"last_body_weight" json:"last_body_weight"`
	LastHandicapWeightX10 *int      `db:"last_handicap_weight_x10" json:"last_handicap_weight_x10"`
	LastFinish            *int      `db:"last_finish" json:"last_finish"`
	Starts                int       `db:"starts" json:"starts"`
	Places                int       `db:"places" json:"places"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}
