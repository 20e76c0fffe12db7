package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/press-downtime/internal/orchestrator"
	"github.com/OldStager01/press-downtime/pkg/models"
)

type Trainer interface {
	Retrain(ctx context.Context, trigger string) (*models.TrainingResult, error)
}

type TrainingHandler struct {
	trainer   Trainer
	predictor Predictor
	timeout   time.Duration
}

func NewTrainingHandler(trainer Trainer, predictor Predictor, timeout time.Duration) *TrainingHandler {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &TrainingHandler{trainer: trainer, predictor: predictor, timeout: timeout}
}

// Train runs (or joins) a retraining run and returns its result.
func (h *TrainingHandler) Train(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.trainer.Retrain(ctx, orchestrator.TriggerManual)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type BatchAnalysisResponse struct {
	Success     bool                   `json:"success"`
	Training    *models.TrainingResult `json:"training"`
	Predictions interface{}            `json:"predictions"`
}

// BatchAnalysis retrains and then scores every machine. A prediction failure
// after a successful retrain is reported inside the predictions field.
func (h *TrainingHandler) BatchAnalysis(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	training, err := h.trainer.Retrain(ctx, orchestrator.TriggerBatch)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := BatchAnalysisResponse{Success: true, Training: training}

	predictions, err := h.predictor.Predict(ctx, nil)
	if err != nil {
		resp.Predictions = gin.H{"success": false, "error": err.Error()}
	} else {
		resp.Predictions = predictions
	}

	c.JSON(http.StatusOK, resp)
}
