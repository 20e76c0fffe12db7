package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/internal/model"
	"github.com/OldStager01/press-downtime/pkg/database/queries"
)

const (
	defaultRunLimit = 10
	maxRunLimit     = 100
)

// RunHistory lists persisted training runs, newest first.
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]queries.TrainingRun, error)
}

type ModelHandler struct {
	registry *model.Registry
	location string
	runs     RunHistory
	nextRun  func() time.Time
}

// NewModelHandler describes the active model. runs and nextRun may be nil.
func NewModelHandler(registry *model.Registry, location string, runs RunHistory, nextRun func() time.Time) *ModelHandler {
	return &ModelHandler{registry: registry, location: location, runs: runs, nextRun: nextRun}
}

type ModelInfoResponse struct {
	ModelTrained    bool          `json:"model_trained"`
	ModelPath       *string       `json:"model_path"`
	Timestamp       string        `json:"timestamp"`
	Version         int64         `json:"version,omitempty"`
	TrainedAt       *time.Time    `json:"trained_at,omitempty"`
	TrainAccuracy   *float64      `json:"train_accuracy,omitempty"`
	TestAccuracy    *float64      `json:"test_accuracy,omitempty"`
	Samples         int           `json:"samples,omitempty"`
	PositiveSamples int           `json:"positive_samples,omitempty"`
	NextTraining    *time.Time    `json:"next_training,omitempty"`
	RecentRuns      []TrainingRun `json:"recent_runs,omitempty"`
}

type TrainingRun struct {
	Trigger       string    `json:"trigger"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	ModelVersion  int64     `json:"model_version,omitempty"`
	TrainAccuracy float64   `json:"train_accuracy,omitempty"`
	TestAccuracy  float64   `json:"test_accuracy,omitempty"`
	Samples       int64     `json:"samples,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

func toTrainingRun(r queries.TrainingRun) TrainingRun {
	return TrainingRun{
		Trigger:       r.Trigger,
		Success:       r.Success,
		Error:         r.Error.String,
		ModelVersion:  r.ModelVersion.Int64,
		TrainAccuracy: r.TrainAccuracy.Float64,
		TestAccuracy:  r.TestAccuracy.Float64,
		Samples:       r.Samples.Int64,
		DurationMs:    r.DurationMillis.Int64,
		CreatedAt:     r.CreatedAt,
	}
}

func (h *ModelHandler) Info(c *gin.Context) {
	resp := ModelInfoResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if state, ok := h.registry.Current(); ok {
		location := h.location
		trainedAt := state.TrainedAt
		trainAcc, testAcc := state.TrainAccuracy, state.TestAccuracy

		resp.ModelTrained = true
		resp.ModelPath = &location
		resp.Version = state.Version
		resp.TrainedAt = &trainedAt
		resp.TrainAccuracy = &trainAcc
		resp.TestAccuracy = &testAcc
		resp.Samples = state.Samples
		resp.PositiveSamples = state.PositiveSamples
	}

	if h.nextRun != nil {
		if next := h.nextRun(); !next.IsZero() {
			resp.NextTraining = &next
		}
	}

	if h.runs != nil {
		runs, err := h.runs.Recent(c.Request.Context(), 5)
		if err != nil {
			logger.WithTrace(c.Request.Context()).Warnf("Could not load training history: %v", err)
		}
		for _, r := range runs {
			resp.RecentRuns = append(resp.RecentRuns, toTrainingRun(r))
		}
	}

	c.JSON(http.StatusOK, resp)
}

// History lists recent training runs. ?limit= caps the count.
func (h *ModelHandler) History(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "runs": []TrainingRun{}})
		return
	}

	limit := parseLimit(c.Query("limit"), defaultRunLimit, maxRunLimit)
	runs, err := h.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]TrainingRun, 0, len(runs))
	for _, r := range runs {
		out = append(out, toTrainingRun(r))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "runs": out})
}

func parseLimit(raw string, def, max int) int {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
