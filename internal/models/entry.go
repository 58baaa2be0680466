package models

import (
	"fmt"
	"time"
)

// MaxHorseNo is the largest horse number a race can carry.
const MaxHorseNo = 28

// PlaceCutoff is the last finish position that counts as placed.
const PlaceCutoff = 3

// Entry is one horse's participation in one race
type Entry struct {
	RaceKey           string    `db:"race_key" json:"race_key" validate:"required,len=16,numeric"`
	HorseNo           int       `db:"horse_no" json:"horse_no" validate:"gte=1,lte=28"`
	HorseID           *string   `db:"horse_id" json:"horse_id"`
	HorseName         *string   `db:"horse_name" json:"horse_name"`
	JockeyCode        *string   `db:"jockey_code" json:"jockey_code"`
	JockeyName        *string   `db:"jockey_name_short" json:"jockey_name_short"`
	TrainerCode       *string   `db:"trainer_code" json:"trainer_code"`
	TrainerName       *string   `db:"trainer_name_short" json:"trainer_name_short"`
	BodyWeight        *int      `db:"body_weight" json:"body_weight" validate:"omitempty,gt=0"`
	HandicapWeightX10 *int      `db:"handicap_weight_x10" json:"handicap_weight_x10" validate:"omitempty,gt=0"`
	Finish            *int      `db:"finish" json:"finish" validate:"omitempty,gt=0"`
	Placed            *bool     `db:"is_place" json:"is_place"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// EntryKey returns race key + zero padded horse number
func (e *Entry) EntryKey() string {
	return EntryKey(e.RaceKey, e.HorseNo)
}

// SetFinish sets the finish position and the derived placed flag
func (e *Entry) SetFinish(finish *int) {
	e.Finish = finish
	e.Placed = placedFor(finish)
}

// EntryKey builds an entry key.
func EntryKey(raceKey string, horseNo int) string {
	return fmt.Sprintf("%s%02d", raceKey, horseNo)
}

func placedFor(finish *int) *bool {
	if finish == nil {
		return nil
	}
	placed := *finish <= PlaceCutoff
	return &placed
}
