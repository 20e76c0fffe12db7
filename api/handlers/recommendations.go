package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/press-downtime/pkg/models"
	"github.com/OldStager01/press-downtime/pkg/validation"
)

type Recommender interface {
	Recommend(ctx context.Context, filter models.RecommendationFilter) (*models.RecommendationResult, error)
}

type RecommendationHandler struct {
	recommender Recommender
	timeout     time.Duration
	location    *time.Location
}

// NewRecommendationHandler parses query dates in loc, which defaults to UTC.
func NewRecommendationHandler(recommender Recommender, timeout time.Duration, loc *time.Location) *RecommendationHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RecommendationHandler{recommender: recommender, timeout: timeout, location: loc}
}

func (h *RecommendationHandler) parseFilter(c *gin.Context) (models.RecommendationFilter, error) {
	var (
		filter models.RecommendationFilter
		err    error
	)

	if filter.PublicationIDs, err = validation.ParsePublicationIDs(c.Query("publication_ids")); err != nil {
		return filter, err
	}
	if filter.StartDate, err = validation.ParseDate("start_date", c.Query("start_date"), h.location); err != nil {
		return filter, err
	}
	if filter.EndDate, err = validation.ParseDate("end_date", c.Query("end_date"), h.location); err != nil {
		return filter, err
	}
	if filter.Location, err = validation.ValidateLocation(c.Query("location")); err != nil {
		return filter, err
	}
	return filter, nil
}

func (h *RecommendationHandler) Recommendations(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.recommender.Recommend(ctx, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
