// Package ml provides place probability predictors. The model itself is an
// external collaborator reached over HTTP or through prediction files.
package ml

import "errors"

var (
	// ErrPredictorUnavailable indicates the model server cannot be reached
	ErrPredictorUnavailable = errors.New("predictor unavailable")

	// ErrInvalidPrediction indicates a response of the wrong length or with a
	// probability outside [0,1]
	ErrInvalidPrediction = errors.New("invalid prediction")
)
