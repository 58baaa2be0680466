// Package wagering turns place probabilities and place odds into ranked bet
// candidates.
package wagering

import (
	"errors"
	"fmt"

	"github.com/yourusername/place-better/internal/config"
)

// ErrInvalidPolicy is returned for a policy that cannot be applied
var ErrInvalidPolicy = errors.New("invalid wagering policy")

// OddsSelection picks which side of the place odds range is used
type OddsSelection string

const (
	OddsMin OddsSelection = "min"
	OddsMax OddsSelection = "max"
	OddsMid OddsSelection = "mid"
)

// Ranking orders surviving candidates
type Ranking string

const (
	RankByProbability       Ranking = "p"
	RankByExpectedValue     Ranking = "ev"
	RankByEVThenProbability Ranking = "ev_then_p"
)

// Global defaults applied after the preset
const (
	DefaultOddsSelection = OddsMin
	DefaultRanking       = RankByExpectedValue
	DefaultStakePerBet   = 100
	DefaultMaxBetCount   = 3
)

// Policy controls candidate filtering and ranking. Nil and zero fields are
// unset and are filled by Resolve.
type Policy struct {
	OddsSelection    OddsSelection `yaml:"odds_selection" json:"odds_selection"`
	MinExpectedValue *float64      `yaml:"min_ev" json:"min_ev"`
	MinProbability   *float64      `yaml:"min_p" json:"min_p"`
	MaxOddsUsed      *float64      `yaml:"max_odds" json:"max_odds"`
	Ranking          Ranking       `yaml:"rank" json:"rank"`
	StakePerBet      int           `yaml:"stake" json:"stake"`
	MaxBetCount      int           `yaml:"max_bets" json:"max_bets"`
}

// PolicyFromConfig maps the wagering config section to a policy
func PolicyFromConfig(cfg *config.WageringConfig) Policy {
	return Policy{
		OddsSelection:    OddsSelection(cfg.OddsSelection),
		MinExpectedValue: cfg.MinEV,
		MinProbability:   cfg.MinP,
		MaxOddsUsed:      cfg.MaxOdds,
		Ranking:          Ranking(cfg.Rank),
		StakePerBet:      cfg.Stake,
		MaxBetCount:      cfg.MaxBets,
	}
}

// Resolve fills unset fields of p from preset, then from the global defaults.
// Explicitly set fields always win.
func Resolve(p, preset Policy) Policy {
	out := p
	if out.OddsSelection == "" {
		out.OddsSelection = preset.OddsSelection
	}
	if out.MinExpectedValue == nil {
		out.MinExpectedValue = preset.MinExpectedValue
	}
	if out.MinProbability == nil {
		out.MinProbability = preset.MinProbability
	}
	if out.MaxOddsUsed == nil {
		out.MaxOddsUsed = preset.MaxOddsUsed
	}
	if out.Ranking == "" {
		out.Ranking = preset.Ranking
	}
	if out.StakePerBet == 0 {
		out.StakePerBet = preset.StakePerBet
	}
	if out.MaxBetCount == 0 {
		out.MaxBetCount = preset.MaxBetCount
	}

	if out.OddsSelection == "" {
		out.OddsSelection = DefaultOddsSelection
	}
	if out.MinExpectedValue == nil {
		out.MinExpectedValue = float64Ptr(0)
	}
	if out.MinProbability == nil {
		out.MinProbability = float64Ptr(0)
	}
	if out.Ranking == "" {
		out.Ranking = DefaultRanking
	}
	if out.StakePerBet == 0 {
		out.StakePerBet = DefaultStakePerBet
	}
	if out.MaxBetCount == 0 {
		out.MaxBetCount = DefaultMaxBetCount
	}
	return out
}

// Validate checks a resolved policy
func (p Policy) Validate() error {
	switch p.OddsSelection {
	case OddsMin, OddsMax, OddsMid:
	default:
		return fmt.Errorf("%w: odds selection %q", ErrInvalidPolicy, p.OddsSelection)
	}
	switch p.Ranking {
	case RankByProbability, RankByExpectedValue, RankByEVThenProbability:
	default:
		return fmt.Errorf("%w: ranking %q", ErrInvalidPolicy, p.Ranking)
	}
	if p.StakePerBet <= 0 {
		return fmt.Errorf("%w: stake must be positive, got %d", ErrInvalidPolicy, p.StakePerBet)
	}
	if p.MaxBetCount <= 0 {
		return fmt.Errorf("%w: max bets must be positive, got %d", ErrInvalidPolicy, p.MaxBetCount)
	}
	if p.MinProbability != nil && (*p.MinProbability < 0 || *p.MinProbability > 1) {
		return fmt.Errorf("%w: min_p must be within [0,1], got %v", ErrInvalidPolicy, *p.MinProbability)
	}
	if p.MaxOddsUsed != nil && *p.MaxOddsUsed <= 0 {
		return fmt.Errorf("%w: max_odds must be positive, got %v", ErrInvalidPolicy, *p.MaxOddsUsed)
	}
	return nil
}

func float64Ptr(v float64) *float64 {
	return &v
}
