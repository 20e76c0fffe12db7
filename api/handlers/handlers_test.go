package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/press-downtime/internal/model"
	"github.com/OldStager01/press-downtime/pkg/database/queries"
	"github.com/OldStager01/press-downtime/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTrainer struct {
	result   *models.TrainingResult
	err      error
	triggers []string
}

func (f *fakeTrainer) Retrain(ctx context.Context, trigger string) (*models.TrainingResult, error) {
	f.triggers = append(f.triggers, trigger)
	return f.result, f.err
}

type fakePredictor struct {
	result  *models.PredictionResult
	err     error
	machine *int64
}

func (f *fakePredictor) Predict(ctx context.Context, machineID *int64) (*models.PredictionResult, error) {
	f.machine = machineID
	return f.result, f.err
}

type fakeRecommender struct {
	result *models.RecommendationResult
	err    error
	filter models.RecommendationFilter
}

func (f *fakeRecommender) Recommend(ctx context.Context, filter models.RecommendationFilter) (*models.RecommendationResult, error) {
	f.filter = filter
	return f.result, f.err
}

type fakeChecker struct{ err error }

func (f fakeChecker) HealthCheck(ctx context.Context) error { return f.err }

type fakeRuns struct {
	runs  []queries.TrainingRun
	limit int
}

func (f *fakeRuns) Recent(ctx context.Context, limit int) ([]queries.TrainingRun, error) {
	f.limit = limit
	return f.runs, nil
}

func do(r *gin.Engine, method, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", models.ErrInvalidInput), http.StatusBadRequest},
		{queries.ErrInvalidRange, http.StatusBadRequest},
		{models.ErrModelNotReady, http.StatusServiceUnavailable},
		{fmt.Errorf("fetch: %w", models.ErrDataUnavailable), http.StatusServiceUnavailable},
		{models.ErrTrainingFailed, http.StatusUnprocessableEntity},
		{models.ErrFeatureEngineering, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("%w: fetch production records: %w", models.ErrDataUnavailable, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestHealth(t *testing.T) {
	registry := model.NewRegistry()

	r := gin.New()
	ok := NewHealthHandler(fakeChecker{}, registry)
	down := NewHealthHandler(fakeChecker{err: errors.New("refused")}, registry)
	r.GET("/health", ok.Health)
	r.GET("/health/ready", ok.Ready)
	r.GET("/health/live", ok.Live)
	r.GET("/down", down.Health)

	w, body := do(r, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "not trained", body["checks"].(map[string]interface{})["model"])

	w, _ = do(r, http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	registry.Swap(&model.State{TrainedAt: time.Now()})
	w, _ = do(r, http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)

	_, body = do(r, http.MethodGet, "/health")
	assert.Equal(t, "version 1 loaded", body["checks"].(map[string]interface{})["model"])

	w, _ = do(r, http.MethodGet, "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = do(r, http.MethodGet, "/down")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestTrain(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		trainer := &fakeTrainer{result: &models.TrainingResult{Success: true, TrainAccuracy: 0.9, Samples: 60}}
		r := gin.New()
		r.POST("/train", NewTrainingHandler(trainer, &fakePredictor{}, time.Second).Train)

		w, body := do(r, http.MethodPost, "/train")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, 60.0, body["samples"])
		assert.Equal(t, []string{"manual"}, trainer.triggers)
	})

	t.Run("failure", func(t *testing.T) {
		err := fmt.Errorf("%w: only one class present", models.ErrTrainingFailed)
		trainer := &fakeTrainer{result: models.NewTrainingFailure(err), err: err}
		r := gin.New()
		r.POST("/train", NewTrainingHandler(trainer, &fakePredictor{}, time.Second).Train)

		w, body := do(r, http.MethodPost, "/train")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, false, body["success"])
		assert.Contains(t, body["error"], "only one class")
	})
}

func TestBatchAnalysis(t *testing.T) {
	training := &models.TrainingResult{Success: true, Samples: 10}

	t.Run("predictions embedded", func(t *testing.T) {
		predictor := &fakePredictor{result: &models.PredictionResult{
			Success:     true,
			Predictions: []models.Prediction{{MachineID: 1, RiskLevel: models.RiskHigh}},
		}}
		trainer := &fakeTrainer{result: training}
		r := gin.New()
		r.POST("/batch-analysis", NewTrainingHandler(trainer, predictor, time.Second).BatchAnalysis)

		w, body := do(r, http.MethodPost, "/batch-analysis")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, []string{"batch"}, trainer.triggers)
		assert.Nil(t, predictor.machine)

		preds := body["predictions"].(map[string]interface{})
		assert.Equal(t, true, preds["success"])
		assert.Len(t, preds["predictions"], 1)
	})

	t.Run("prediction failure is reported inline", func(t *testing.T) {
		predictor := &fakePredictor{err: errors.New("no recent data")}
		r := gin.New()
		r.POST("/batch-analysis", NewTrainingHandler(&fakeTrainer{result: training}, predictor, time.Second).BatchAnalysis)

		w, body := do(r, http.MethodPost, "/batch-analysis")
		assert.Equal(t, http.StatusOK, w.Code)
		preds := body["predictions"].(map[string]interface{})
		assert.Equal(t, false, preds["success"])
		assert.Equal(t, "no recent data", preds["error"])
	})

	t.Run("training failure", func(t *testing.T) {
		trainer := &fakeTrainer{err: models.ErrDataUnavailable}
		r := gin.New()
		r.POST("/batch-analysis", NewTrainingHandler(trainer, &fakePredictor{}, time.Second).BatchAnalysis)

		w, body := do(r, http.MethodPost, "/batch-analysis")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, false, body["success"])
	})
}

func TestPredict(t *testing.T) {
	predictor := &fakePredictor{result: &models.PredictionResult{Success: true, Predictions: []models.Prediction{}}}
	r := gin.New()
	r.GET("/predict", NewPredictionHandler(predictor, time.Second).Predict)

	w, body := do(r, http.MethodGet, "/predict?machine_id=7")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	require.NotNil(t, predictor.machine)
	assert.Equal(t, int64(7), *predictor.machine)

	w, _ = do(r, http.MethodGet, "/predict")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, predictor.machine)

	w, body = do(r, http.MethodGet, "/predict?machine_id=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])

	predictor.err = models.ErrModelNotReady
	w, body = do(r, http.MethodGet, "/predict")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, models.ErrModelNotReady.Error(), body["error"])
}

func TestRecommendations(t *testing.T) {
	rec := &fakeRecommender{result: &models.RecommendationResult{
		Success:         true,
		Recommendations: []models.Recommendation{},
		AnalysisType:    models.AnalysisTypeDowntimeImpact,
		Status:          models.StatusNoDowntimeData,
	}}
	r := gin.New()
	r.GET("/recommendations", NewRecommendationHandler(rec, time.Second, nil).Recommendations)

	w, body := do(r, http.MethodGet, "/recommendations?publication_ids=3,1,3&start_date=2024-03-01&end_date=2024-03-09&location=North")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no_downtime_data", body["status"])

	assert.Equal(t, []int64{3, 1}, rec.filter.PublicationIDs)
	require.NotNil(t, rec.filter.StartDate)
	require.NotNil(t, rec.filter.EndDate)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *rec.filter.StartDate)
	assert.Equal(t, "North", rec.filter.Location)

	tests := []struct {
		name  string
		query string
	}{
		{"bad publication id", "publication_ids=1,x"},
		{"bad start date", "start_date=03/01/2024"},
		{"bad end date", "end_date=2024-13-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := do(r, http.MethodGet, "/recommendations?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, body["success"])
		})
	}

	rec.err = queries.ErrInvalidRange
	w, _ = do(r, http.MethodGet, "/recommendations")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModelInfo(t *testing.T) {
	registry := model.NewRegistry()
	runs := &fakeRuns{}
	r := gin.New()
	h := NewModelHandler(registry, "/var/lib/press/models", runs, nil)
	r.GET("/model-info", h.Info)
	r.GET("/training-runs", h.History)

	w, body := do(r, http.MethodGet, "/model-info")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["model_trained"])
	assert.Nil(t, body["model_path"])
	assert.NotEmpty(t, body["timestamp"])

	registry.Swap(&model.State{TrainedAt: time.Now(), TrainAccuracy: 0.95, TestAccuracy: 0.8, Samples: 60})
	runs.runs = []queries.TrainingRun{{Trigger: "manual", Success: true, CreatedAt: time.Now()}}

	w, body = do(r, http.MethodGet, "/model-info")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["model_trained"])
	assert.Equal(t, "/var/lib/press/models", body["model_path"])
	assert.Equal(t, 1.0, body["version"])
	assert.Equal(t, 0.8, body["test_accuracy"])
	assert.Len(t, body["recent_runs"], 1)

	w, body = do(r, http.MethodGet, "/training-runs?limit=500")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, maxRunLimit, runs.limit)
	assert.Len(t, body["runs"], 1)
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 10},
		{"abc", 10},
		{"-1", 10},
		{"25", 25},
		{"1000", 100},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLimit(tt.raw, defaultRunLimit, maxRunLimit))
		})
	}
}
