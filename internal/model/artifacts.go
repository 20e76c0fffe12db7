package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/OldStager01/press-downtime/internal/features"
	"github.com/OldStager01/press-downtime/internal/training"
	"github.com/OldStager01/press-downtime/pkg/models"
)

const (
	ScalerArtifact = "scaler.json"
	ModelArtifact  = "downtime_model.json"
)

var (
	ErrNoArtifacts = errors.New("no persisted model artifacts")
	// ErrMismatchedArtifacts means the scaler and classifier on disk were
	// not written by the same Save.
	ErrMismatchedArtifacts = errors.New("persisted scaler and classifier do not match")
)

// ArtifactStore persists the two model artifacts. Save overwrites both.
type ArtifactStore interface {
	Save(ctx context.Context, s *State) error
	Load(ctx context.Context) (*State, error)
	// Location describes where the classifier artifact lives.
	Location() string
}

// Both artifacts carry the generation minted by the Save that wrote them.
type scalerArtifact struct {
	Generation string           `json:"generation"`
	Version    int64            `json:"version"`
	Scaler     *training.Scaler `json:"scaler"`
}

type modelArtifact struct {
	Generation      string           `json:"generation"`
	Version         int64            `json:"version"`
	TrainedAt       time.Time        `json:"trained_at"`
	TrainAccuracy   float64          `json:"train_accuracy"`
	TestAccuracy    float64          `json:"test_accuracy"`
	Samples         int              `json:"samples"`
	PositiveSamples int              `json:"positive_samples"`
	Columns         []string         `json:"columns"`
	Forest          *training.Forest `json:"forest"`
}

func encode(s *State, columns []string) (scaler, classifier []byte, err error) {
	generation := models.NewUUID()

	scaler, err = json.Marshal(scalerArtifact{
		Generation: generation,
		Version:    s.Version,
		Scaler:     s.Scaler,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode scaler: %w", err)
	}

	classifier, err = json.Marshal(modelArtifact{
		Generation:      generation,
		Version:         s.Version,
		TrainedAt:       s.TrainedAt,
		TrainAccuracy:   s.TrainAccuracy,
		TestAccuracy:    s.TestAccuracy,
		Samples:         s.Samples,
		PositiveSamples: s.PositiveSamples,
		Columns:         columns,
		Forest:          s.Forest,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode classifier: %w", err)
	}
	return scaler, classifier, nil
}

func decode(scaler, classifier []byte) (*State, error) {
	var sc scalerArtifact
	if err := json.Unmarshal(scaler, &sc); err != nil {
		return nil, fmt.Errorf("failed to decode scaler: %w", err)
	}

	var m modelArtifact
	if err := json.Unmarshal(classifier, &m); err != nil {
		return nil, fmt.Errorf("failed to decode classifier: %w", err)
	}

	if m.Generation == "" || sc.Generation != m.Generation || sc.Version != m.Version {
		return nil, fmt.Errorf("%w: scaler generation %q version %d, classifier generation %q version %d",
			ErrMismatchedArtifacts, sc.Generation, sc.Version, m.Generation, m.Version)
	}
	if !slices.Equal(m.Columns, features.Columns) {
		return nil, fmt.Errorf("invalid persisted model: columns %v, want %v", m.Columns, features.Columns)
	}

	s := &State{
		Version:         m.Version,
		Scaler:          sc.Scaler,
		Forest:          m.Forest,
		TrainedAt:       m.TrainedAt,
		TrainAccuracy:   m.TrainAccuracy,
		TestAccuracy:    m.TestAccuracy,
		Samples:         m.Samples,
		PositiveSamples: m.PositiveSamples,
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid persisted model: %w", err)
	}
	return s, nil
}
