package wagering

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/place-better/internal/models"
)

// Recommendation is the engine output for one race
type Recommendation struct {
	RaceKey     string                `json:"race_key"`
	Candidates  []models.BetCandidate `json:"candidates"`
	MissingOdds int                   `json:"missing_odds"`
	Fallback    bool                  `json:"fallback_used"`
	Filtered    FilterCounts          `json:"filtered"`
}

// FilterCounts records how many entrants each filter removed
type FilterCounts struct {
	MinProbability int `json:"min_p"`
	MaxOdds        int `json:"max_odds"`
	MinEV          int `json:"min_ev"`
	Truncated      int `json:"truncated"`
}

// Engine applies a policy to predictions and odds
type Engine struct {
	logger *logrus.Entry
}

// NewEngine creates a wagering engine
func NewEngine(logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{logger: logger.WithField("component", "wagering")}
}

// Recommend filters and ranks entrants. When nothing survives, it retries
// without the EV threshold and keeps the single most probable entrant,
// marked as fallback. The policy is resolved against the global defaults and
// must then pass Validate.
func (e *Engine) Recommend(preds []models.Prediction, odds map[int]models.OddsQuote, policy Policy) (Recommendation, error) {
	policy = Resolve(policy, Policy{})
	if err := policy.Validate(); err != nil {
		return Recommendation{}, err
	}

	rec := Recommendation{}
	if len(preds) > 0 {
		rec.RaceKey = preds[0].RaceKey
	}

	priced := make([]models.BetCandidate, 0, len(preds))
	for _, p := range preds {
		c, ok := price(p, odds, policy)
		if !ok {
			rec.MissingOdds++
			continue
		}
		priced = append(priced, c)
	}

	rec.Candidates, rec.Filtered = selectCandidates(priced, policy)
	if len(rec.Candidates) > 0 {
		e.logDecision(rec, policy)
		return rec, nil
	}

	fallback := policy
	fallback.MinExpectedValue = float64Ptr(math.Inf(-1))
	fallback.MaxBetCount = 1
	fallback.Ranking = RankByProbability

	candidates, _ := selectCandidates(priced, fallback)
	for i := range candidates {
		candidates[i].Fallback = true
	}
	rec.Candidates = candidates
	rec.Fallback = len(candidates) > 0
	e.logDecision(rec, policy)
	return rec, nil
}

func (e *Engine) logDecision(rec Recommendation, policy Policy) {
	e.logger.WithFields(logrus.Fields{
		"race_key":       rec.RaceKey,
		"candidates":     len(rec.Candidates),
		"missing_odds":   rec.MissingOdds,
		"filtered_min_p": rec.Filtered.MinProbability,
		"filtered_odds":  rec.Filtered.MaxOdds,
		"filtered_ev":    rec.Filtered.MinEV,
		"fallback":       rec.Fallback,
		"rank":           policy.Ranking,
		"odds_selection": policy.OddsSelection,
	}).Debug("Wagering decision")
}

// price computes odds_used and expected values. ok is false when the quote is
// missing or lacks the selected side.
func price(p models.Prediction, odds map[int]models.OddsQuote, policy Policy) (models.BetCandidate, bool) {
	q, ok := odds[p.HorseNo]
	if !ok {
		return models.BetCandidate{}, false
	}

	var used *float64
	switch policy.OddsSelection {
	case OddsMax:
		used = q.OddsMax
	case OddsMid:
		used = q.Mid()
	default:
		used = q.OddsMin
	}
	if used == nil {
		return models.BetCandidate{}, false
	}

	evPerUnit := p.Probability*(*used) - 1
	return models.BetCandidate{
		RaceKey:       p.RaceKey,
		HorseNo:       p.HorseNo,
		HorseID:       p.HorseID,
		Probability:   p.Probability,
		OddsMin:       q.OddsMin,
		OddsMax:       q.OddsMax,
		OddsUsed:      round(*used, 2),
		Stake:         policy.StakePerBet,
		ExpectedValue: round(evPerUnit*float64(policy.StakePerBet), 2),
		EVPerUnit:     round(evPerUnit, 4),
	}, true
}

// selectCandidates runs the filters in order, then ranks and truncates
func selectCandidates(priced []models.BetCandidate, policy Policy) ([]models.BetCandidate, FilterCounts) {
	var counts FilterCounts
	out := make([]models.BetCandidate, 0, len(priced))

	minP := 0.0
	if policy.MinProbability != nil {
		minP = *policy.MinProbability
	}
	minEV := 0.0
	if policy.MinExpectedValue != nil {
		minEV = *policy.MinExpectedValue
	}

	for _, c := range priced {
		if c.Probability < minP {
			counts.MinProbability++
			continue
		}
		if policy.MaxOddsUsed != nil && c.OddsUsed > *policy.MaxOddsUsed {
			counts.MaxOdds++
			continue
		}
		if c.EVPerUnit < minEV {
			counts.MinEV++
			continue
		}
		out = append(out, c)
	}

	rank(out, policy.Ranking)

	if policy.MaxBetCount > 0 && len(out) > policy.MaxBetCount {
		counts.Truncated = len(out) - policy.MaxBetCount
		out = out[:policy.MaxBetCount]
	}
	return out, counts
}

func rank(cs []models.BetCandidate, r Ranking) {
	switch r {
	case RankByProbability:
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].Probability > cs[j].Probability })
	case RankByEVThenProbability:
		sort.SliceStable(cs, func(i, j int) bool {
			if cs[i].EVPerUnit != cs[j].EVPerUnit {
				return cs[i].EVPerUnit > cs[j].EVPerUnit
			}
			return cs[i].Probability > cs[j].Probability
		})
	default:
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].EVPerUnit > cs[j].EVPerUnit })
	}
}

// round rounds half away from zero
func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
