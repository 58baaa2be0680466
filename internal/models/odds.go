package models

import "time"

// OddsQuote is the announced place odds range for one horse
type OddsQuote struct {
	RaceKey     string     `db:"race_key" json:"race_key" validate:"required,len=16,numeric"`
	HorseNo     int        `db:"horse_no" json:"horse_no" validate:"gte=1,lte=28"`
	OddsMin     *float64   `db:"place_odds_min" json:"place_odds_min" validate:"omitempty,gt=0"`
	OddsMax     *float64   `db:"place_odds_max" json:"place_odds_max" validate:"omitempty,gt=0"`
	AnnouncedAt *time.Time `db:"announced_at" json:"announced_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ValidRange reports whether min <= max when both sides are present
func (o *OddsQuote) ValidRange() bool {
	if o.OddsMin == nil || o.OddsMax == nil {
		return true
	}
	return *o.OddsMin <= *o.OddsMax
}

// Mid returns the arithmetic mean of min and max, or nil if either is missing
func (o *OddsQuote) Mid() *float64 {
	if o.OddsMin == nil || o.OddsMax == nil {
		return nil
	}
	mid := (*o.OddsMin + *o.OddsMax) / 2
	return &mid
}
