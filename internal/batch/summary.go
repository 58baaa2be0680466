package batch

import (
	"github.com/shopspring/decimal"

	"github.com/yourusername/place-better/internal/models"
	"github.com/yourusername/place-better/internal/wagering"
)

// Summarize aggregates one race's candidates. Averages and maxima are nil
// when there are no bets.
func Summarize(raceKey string, rec *wagering.Recommendation) models.RaceSummary {
	s := models.RaceSummary{
		RaceKey: raceKey,
		Status:  models.SummaryStatusOK,
	}
	if rec == nil {
		return s
	}
	s.MissingOdds = rec.MissingOdds

	n := len(rec.Candidates)
	if n == 0 {
		return s
	}

	ev := decimal.Zero
	var sumP, sumOdds, maxP, maxEV float64
	for i, c := range rec.Candidates {
		s.TotalStake += c.Stake
		ev = ev.Add(decimal.NewFromFloat(c.ExpectedValue))
		sumP += c.Probability
		sumOdds += c.OddsUsed
		if i == 0 || c.Probability > maxP {
			maxP = c.Probability
		}
		if i == 0 || c.EVPerUnit > maxEV {
			maxEV = c.EVPerUnit
		}
	}

	s.NBets = n
	s.SumExpectedValue, _ = ev.Round(2).Float64()
	s.AvgP = round4(sumP / float64(n))
	s.AvgOddsUsed = round4(sumOdds / float64(n))
	s.MaxP = round4(maxP)
	s.MaxEVPerUnit = round4(maxEV)
	s.FallbackUsed = rec.Fallback
	return s
}

func round4(v float64) *float64 {
	f, _ := decimal.NewFromFloat(v).Round(4).Float64()
	return &f
}
