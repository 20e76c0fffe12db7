package model

import (
	"fmt"
	"time"

	"github.com/OldStager01/press-downtime/internal/features"
	"github.com/OldStager01/press-downtime/internal/training"
)

// State is an immutable scaler and classifier pair. A new State replaces the
// previous one wholesale; it is never mutated after publication.
type State struct {
	Version         int64
	Scaler          *training.Scaler
	Forest          *training.Forest
	TrainedAt       time.Time
	TrainAccuracy   float64
	TestAccuracy    float64
	Samples         int
	PositiveSamples int
}

func NewState(result *training.Result, trainedAt time.Time) *State {
	return &State{
		Scaler:          result.Scaler,
		Forest:          result.Forest,
		TrainedAt:       trainedAt,
		TrainAccuracy:   result.TrainAccuracy,
		TestAccuracy:    result.TestAccuracy,
		Samples:         result.Samples,
		PositiveSamples: result.PositiveSamples,
	}
}

// RiskProbability scales a feature vector and returns the positive-class
// probability.
func (s *State) RiskProbability(vector []float64) float64 {
	proba := s.Forest.PredictProba(s.Scaler.TransformRow(vector))
	if len(proba) < 2 {
		return 0
	}
	return proba[1]
}

func (s *State) Validate() error {
	if s.Scaler == nil || s.Forest == nil {
		return fmt.Errorf("incomplete model state")
	}
	if err := s.Scaler.Validate(len(features.Columns)); err != nil {
		return err
	}
	if s.Forest.NumFeatures != len(features.Columns) {
		return fmt.Errorf("classifier expects %d features, want %d", s.Forest.NumFeatures, len(features.Columns))
	}
	return s.Forest.Validate()
}
