package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/OldStager01/press-downtime/internal/features"
	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/pkg/models"
)

type Config struct {
	Seed         int64
	TestFraction float64
	Forest       ForestConfig
}

type Trainer struct {
	config Config
}

// Result is a fitted scaler and classifier pair with its evaluation.
type Result struct {
	Scaler          *Scaler
	Forest          *Forest
	TrainAccuracy   float64
	TestAccuracy    float64
	Samples         int
	PositiveSamples int
	TrainSamples    int
	TestSamples     int
	Duration        time.Duration
}

func New(cfg Config) *Trainer {
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = 0.2
	}
	if cfg.Forest.Trees <= 0 {
		cfg.Forest.Trees = 100
	}
	if cfg.Forest.MaxDepth <= 0 {
		cfg.Forest.MaxDepth = 10
	}
	if cfg.Forest.MinSamplesSplit <= 0 {
		cfg.Forest.MinSamplesSplit = 5
	}
	cfg.Forest.Seed = cfg.Seed
	return &Trainer{config: cfg}
}

// Train splits rows into train and test sets, fits the scaler on the
// training split only, and fits the forest on the scaled training split.
// Every failure wraps models.ErrTrainingFailed.
func (t *Trainer) Train(ctx context.Context, rows []models.DailyMachineFeatureRow) (*Result, error) {
	started := time.Now()

	n := len(rows)
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 samples, got %d", models.ErrTrainingFailed, n)
	}

	labels := features.Labels(rows)
	positives := 0
	for _, l := range labels {
		positives += l
	}
	if positives == 0 || positives == n {
		return nil, fmt.Errorf("%w: training data contains a single class", models.ErrTrainingFailed)
	}

	trainIdx, testIdx := t.split(n)

	yTrain := pick(labels, trainIdx)
	if !hasBothClasses(yTrain) {
		return nil, fmt.Errorf("%w: training split contains a single class", models.ErrTrainingFailed)
	}
	yTest := pick(labels, testIdx)

	xTrain := features.Matrix(pickRows(rows, trainIdx))
	xTest := features.Matrix(pickRows(rows, testIdx))

	scaler := FitScaler(xTrain)
	scaledTrain := toRows(scaler.Transform(xTrain))
	scaledTest := toRows(scaler.Transform(xTest))

	forest, err := FitForest(ctx, scaledTrain, yTrain, t.config.Forest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrTrainingFailed, err)
	}

	result := &Result{
		Scaler:          scaler,
		Forest:          forest,
		TrainAccuracy:   Accuracy(forest, scaledTrain, yTrain),
		TestAccuracy:    Accuracy(forest, scaledTest, yTest),
		Samples:         n,
		PositiveSamples: positives,
		TrainSamples:    len(trainIdx),
		TestSamples:     len(testIdx),
		Duration:        time.Since(started),
	}

	logger.WithFields(map[string]interface{}{
		"samples":        n,
		"positives":      positives,
		"train_accuracy": result.TrainAccuracy,
		"test_accuracy":  result.TestAccuracy,
	}).Infof("Model trained - Train accuracy: %.3f, Test accuracy: %.3f", result.TrainAccuracy, result.TestAccuracy)

	return result, nil
}

// split shuffles indices with the configured seed and holds out
// ceil(TestFraction*n) of them, keeping at least one sample on each side.
func (t *Trainer) split(n int) (train, test []int) {
	perm := rand.New(rand.NewSource(t.config.Seed)).Perm(n)

	nTest := int(math.Ceil(t.config.TestFraction * float64(n)))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > n-1 {
		nTest = n - 1
	}
	return perm[nTest:], perm[:nTest]
}

func Accuracy(f *Forest, x [][]float64, y []int) float64 {
	if len(y) == 0 {
		return 0
	}
	correct := 0
	for i := range x {
		if f.Predict(x[i]) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y))
}

func hasBothClasses(y []int) bool {
	seen := map[int]bool{}
	for _, l := range y {
		seen[l] = true
	}
	return len(seen) >= 2
}

func pick(values []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

func pickRows(rows []models.DailyMachineFeatureRow, idx []int) []models.DailyMachineFeatureRow {
	out := make([]models.DailyMachineFeatureRow, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

func toRows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
