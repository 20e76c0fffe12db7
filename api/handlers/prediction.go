package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/press-downtime/pkg/models"
	"github.com/OldStager01/press-downtime/pkg/validation"
)

type Predictor interface {
	Predict(ctx context.Context, machineID *int64) (*models.PredictionResult, error)
}

type PredictionHandler struct {
	predictor Predictor
	timeout   time.Duration
}

func NewPredictionHandler(predictor Predictor, timeout time.Duration) *PredictionHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PredictionHandler{predictor: predictor, timeout: timeout}
}

func (h *PredictionHandler) Predict(c *gin.Context) {
	machineID, err := validation.ParseMachineID(c.Query("machine_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.predictor.Predict(ctx, machineID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
