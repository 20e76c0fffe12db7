package prediction

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/OldStager01/press-downtime/internal/datasource"
	"github.com/OldStager01/press-downtime/internal/events"
	"github.com/OldStager01/press-downtime/internal/features"
	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/internal/metrics"
	"github.com/OldStager01/press-downtime/internal/model"
	"github.com/OldStager01/press-downtime/pkg/database/queries"
	"github.com/OldStager01/press-downtime/pkg/models"
)

type Config struct {
	WindowDays int
	Now        func() time.Time
}

type Service struct {
	source    datasource.Source
	registry  *model.Registry
	builder   *features.Builder
	publisher *events.Publisher
	metrics   *metrics.Metrics
	config    Config
}

func New(source datasource.Source, registry *model.Registry, publisher *events.Publisher, m *metrics.Metrics, cfg Config) *Service {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		source:    source,
		registry:  registry,
		builder:   features.New(features.Config{}),
		publisher: publisher,
		metrics:   m,
		config:    cfg,
	}
}

// Predict scores every machine-day in the recent window with the active
// model, optionally keeping only one machine, ordered by descending risk.
func (s *Service) Predict(ctx context.Context, machineID *int64) (*models.PredictionResult, error) {
	state, ok := s.registry.Current()
	if !ok {
		return nil, models.ErrModelNotReady
	}

	now := s.config.Now()
	production, err := s.source.ProductionEvents(ctx, queries.ProductionFilter{
		Start: now.AddDate(0, 0, -s.config.WindowDays),
		End:   now,
	})
	if err != nil {
		return nil, err
	}

	rows, err := s.builder.Build(production, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no feature rows", models.ErrFeatureEngineering)
	}

	result := &models.PredictionResult{
		Success:      true,
		Predictions:  make([]models.Prediction, 0, len(rows)),
		ModelVersion: state.Version,
	}

	for _, row := range rows {
		if machineID != nil && row.MachineID != *machineID {
			continue
		}

		p := state.RiskProbability(features.Vector(row))
		level := models.RiskLevelFor(p)

		result.Predictions = append(result.Predictions, models.Prediction{
			MachineID:       row.MachineID,
			MachineName:     row.MachineName,
			Date:            row.Date.Format(models.DateLayout),
			DowntimeRisk:    round(p*100, 2),
			RiskLevel:       level,
			PlatesPerPage:   round(row.PlatesPerPage, 3),
			PlatesDeviation: round(row.PlatesDeviation, 3),
			TotalPages:      int64(row.TotalPages),
		})

		switch level {
		case models.RiskHigh:
			result.HighRiskCount++
		case models.RiskMedium:
			result.MediumRiskCount++
		}
	}

	sort.SliceStable(result.Predictions, func(i, j int) bool {
		return result.Predictions[i].DowntimeRisk > result.Predictions[j].DowntimeRisk
	})

	s.record(ctx, result)
	return result, nil
}

func (s *Service) record(ctx context.Context, result *models.PredictionResult) {
	logger.WithTrace(ctx).WithField("model_version", result.ModelVersion).Infof(
		"Generated %d predictions (%d high, %d medium)",
		len(result.Predictions), result.HighRiskCount, result.MediumRiskCount,
	)

	if s.metrics != nil {
		for _, p := range result.Predictions {
			s.metrics.IncPrediction(string(p.RiskLevel))
		}
	}
	s.publisher.WithTraceID(logger.TraceIDFromContext(ctx)).PredictionsGenerated(result)
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
