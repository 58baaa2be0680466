package models

// Prediction is a model's place probability for one entrant. Not persisted.
type Prediction struct {
	RaceKey     string  `json:"race_key"`
	HorseNo     int     `json:"horse_no"`
	HorseID     string  `json:"horse_id,omitempty"`
	Probability float64 `json:"p_place" validate:"gte=0,lte=1"`
}

// EntryKey returns the prediction's entry key
func (p *Prediction) EntryKey() string {
	return EntryKey(p.RaceKey, p.HorseNo)
}
