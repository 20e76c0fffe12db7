package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/pkg/database/queries"
	"github.com/OldStager01/press-downtime/pkg/models"
)

// StatusFor maps a service error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, queries.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrModelNotReady), errors.Is(err, models.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrTrainingFailed), errors.Is(err, models.ErrFeatureEngineering):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.WithTrace(c.Request.Context()).Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}
