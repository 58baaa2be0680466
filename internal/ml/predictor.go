package ml

import (
	"context"
	"fmt"
	"math"

	"github.com/yourusername/place-better/internal/features"
	"github.com/yourusername/place-better/internal/models"
)

// Predictor returns one place probability per row, in row order. A row the
// predictor has nothing for is marked with NoPrediction.
type Predictor interface {
	Predict(ctx context.Context, rows []features.FeatureRow) ([]float64, error)
}

// NoPrediction marks a row without a probability
var NoPrediction = math.NaN()

// HasPrediction reports whether p is a probability rather than NoPrediction
func HasPrediction(p float64) bool {
	return !math.IsNaN(p)
}

// ValidateProbabilities checks a predictor result against its input rows
func ValidateProbabilities(rows []features.FeatureRow, probs []float64) error {
	if len(probs) != len(rows) {
		return fmt.Errorf("%w: got %d probabilities for %d rows", ErrInvalidPrediction, len(probs), len(rows))
	}
	for i, p := range probs {
		if HasPrediction(p) && (p < 0 || p > 1) {
			return fmt.Errorf("%w: probability %v for horse %d", ErrInvalidPrediction, p, rows[i].HorseNo)
		}
	}
	return nil
}

// ToPredictions pairs validated probabilities with their rows. Rows marked
// NoPrediction are left out.
func ToPredictions(rows []features.FeatureRow, probs []float64) []models.Prediction {
	out := make([]models.Prediction, 0, len(rows))
	for i, r := range rows {
		if !HasPrediction(probs[i]) {
			continue
		}
		out = append(out, models.Prediction{
			RaceKey:     r.RaceKey,
			HorseNo:     r.HorseNo,
			HorseID:     r.HorseID,
			Probability: probs[i],
		})
	}
	return out
}

// PredictRace calls p and validates the result
func PredictRace(ctx context.Context, p Predictor, rows []features.FeatureRow) ([]models.Prediction, error) {
	probs, err := p.Predict(ctx, rows)
	if err != nil {
		return nil, err
	}
	if err := ValidateProbabilities(rows, probs); err != nil {
		return nil, err
	}
	return ToPredictions(rows, probs), nil
}
