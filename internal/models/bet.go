package models

// BetCandidate is a recommended place bet
type BetCandidate struct {
	RaceKey       string   `json:"race_key"`
	HorseNo       int      `json:"horse_no"`
	HorseID       string   `json:"horse_id,omitempty"`
	Probability   float64  `json:"p_place"`
	OddsMin       *float64 `json:"place_odds_min,omitempty"`
	OddsMax       *float64 `json:"place_odds_max,omitempty"`
	OddsUsed      float64  `json:"place_odds_used"`
	Stake         int      `json:"stake"`
	ExpectedValue float64  `json:"expected_value"`
	EVPerUnit     float64  `json:"ev_per_1unit"`
	Fallback      bool     `json:"fallback"`
}
