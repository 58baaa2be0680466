package models

// Corners measured in the running order.
const (
	FirstCorner = 1
	LastCorner  = 4
)

// PassingPosition is a horse's rank at one corner
type PassingPosition struct {
	RaceKey  string `db:"race_key" json:"race_key" validate:"required,len=16,numeric"`
	HorseNo  int    `db:"horse_no" json:"horse_no" validate:"gte=1,lte=28"`
	Corner   int    `db:"corner" json:"corner" validate:"gte=1,lte=4"`
	Position int    `db:"pos" json:"pos" validate:"gte=1,lte=28"`
}
