package models

import "time"

// TrainingResult is the structured outcome of a retraining run.
type TrainingResult struct {
	Success         bool       `json:"success"`
	Error           string     `json:"error,omitempty"`
	TrainAccuracy   float64    `json:"train_accuracy"`
	TestAccuracy    float64    `json:"test_accuracy"`
	Samples         int        `json:"samples"`
	PositiveSamples int        `json:"positive_samples"`
	TrainSamples    int        `json:"train_samples"`
	TestSamples     int        `json:"test_samples"`
	ModelVersion    int64      `json:"model_version,omitempty"`
	TrainedAt       *time.Time `json:"trained_at,omitempty"`
	DurationMillis  int64      `json:"duration_ms"`
}

func NewTrainingFailure(err error) *TrainingResult {
	return &TrainingResult{Success: false, Error: err.Error()}
}
