package models

import "errors"

// Custom errors
var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateKey     = errors.New("duplicate key violation")
	ErrInvalidRaceKey   = errors.New("invalid race key")
	ErrStoreUnavailable = errors.New("entity store unavailable")
	ErrRaceProcessing   = errors.New("race processing failed")
)
