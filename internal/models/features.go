package models

import "time"

// FeatureSnapshot holds a horse's passing history features as of one race.
// Every aggregate is nil when the window has no input for it.
type FeatureSnapshot struct {
	RaceKey     string    `db:"race_key" json:"race_key"`
	HorseID     string    `db:"horse_id" json:"horse_id"`
	AsOf        string    `db:"as_of" json:"as_of"`
	NPast       int       `db:"n_past" json:"n_past"`
	AvgPos1C    *float64  `db:"avg_pos_1c" json:"avg_pos_1c"`
	AvgPos4C    *float64  `db:"avg_pos_4c" json:"avg_pos_4c"`
	AvgGain     *float64  `db:"avg_gain" json:"avg_gain"`
	FrontRate   *float64  `db:"front_rate" json:"front_rate"`
	AvgPos1CPct *float64  `db:"avg_pos_1c_pct" json:"avg_pos_1c_pct"`
	AvgPos4CPct *float64  `db:"avg_pos_4c_pct" json:"avg_pos_4c_pct"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
