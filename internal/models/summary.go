package models

// RaceSummary statuses
const (
	SummaryStatusOK     = "ok"
	SummaryStatusFailed = "failed"
)

// RaceSummary aggregates one race's recommendation outcome
type RaceSummary struct {
	RaceKey          string   `json:"race_key"`
	Status           string   `json:"status"`
	NBets            int      `json:"n_bets"`
	TotalStake       int      `json:"total_stake"`
	SumExpectedValue float64  `json:"sum_expected_value"`
	AvgP             *float64 `json:"avg_p"`
	AvgOddsUsed      *float64 `json:"avg_odds_used"`
	MaxP             *float64 `json:"max_p"`
	MaxEVPerUnit     *float64 `json:"max_ev_per_unit"`
	FallbackUsed     bool     `json:"fallback_used"`
	MissingOdds      int      `json:"missing_odds"`
	Error            string   `json:"error"`
}

// Failed reports whether the race failed
func (s *RaceSummary) Failed() bool {
	return s.Status == SummaryStatusFailed
}

// FailedSummary builds a failed summary carrying the error text
func FailedSummary(raceKey string, err error) RaceSummary {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return RaceSummary{
		RaceKey: raceKey,
		Status:  SummaryStatusFailed,
		Error:   msg,
	}
}
