package logger

import (
	"github.com/sirupsen/logrus"
)

// WageringLogger provides dedicated logging for per-race recommendation
// decisions.
type WageringLogger struct {
	*logrus.Entry
}

// NewWageringLogger creates a new wagering logger.
func NewWageringLogger(baseLogger *logrus.Logger) *WageringLogger {
	return &WageringLogger{
		Entry: baseLogger.WithField("component", "wagering"),
	}
}

// LogPolicy logs the resolved policy a run applies.
func (wl *WageringLogger) LogPolicy(preset, oddsSelection, ranking string, minEV, minP, maxOdds *float64, stake, maxBets int) {
	wl.WithFields(logrus.Fields{
		"preset":         preset,
		"odds_selection": oddsSelection,
		"rank":           ranking,
		"min_ev":         minEV,
		"min_p":          minP,
		"max_odds":       maxOdds,
		"stake":          stake,
		"max_bets":       maxBets,
	}).Info("Wagering policy resolved")
}

// LogDecision logs the recommendation outcome for one race.
func (wl *WageringLogger) LogDecision(raceKey string, entrants, candidates, missingOdds int, totalStake int, fallback bool) {
	wl.WithFields(logrus.Fields{
		"race_key":     raceKey,
		"entrants":     entrants,
		"candidates":   candidates,
		"missing_odds": missingOdds,
		"total_stake":  totalStake,
		"fallback":     fallback,
	}).Info("Race recommendation made")
}

// LogMissingPredictions logs entrants skipped because the predictor had no
// probability for them.
func (wl *WageringLogger) LogMissingPredictions(raceKey string, entrants, missing int) {
	wl.WithFields(logrus.Fields{
		"race_key": raceKey,
		"entrants": entrants,
		"missing":  missing,
	}).Warn("Entrants without a prediction skipped")
}

// LogFallback logs the entrant chosen when no candidate met the EV threshold.
func (wl *WageringLogger) LogFallback(raceKey string, horseNo int, probability float64) {
	wl.WithFields(logrus.Fields{
		"race_key":   raceKey,
		"horse_no":   horseNo,
		"p_place":    probability,
		"event_type": "fallback",
	}).Info("Fallback candidate selected")
}
