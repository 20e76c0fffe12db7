package models

import "errors"

var (
	// ErrDataUnavailable covers an empty window as well as an unreachable datastore.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrModelNotReady is returned when no training run has succeeded yet.
	ErrModelNotReady = errors.New("model not trained yet")

	ErrFeatureEngineering = errors.New("feature engineering failed")

	// ErrTrainingFailed leaves the active model untouched.
	ErrTrainingFailed = errors.New("training failed")

	// ErrParse marks a malformed time-of-day or duration value in a single record.
	ErrParse = errors.New("parse failure")

	ErrInvalidInput = errors.New("invalid input")
)
