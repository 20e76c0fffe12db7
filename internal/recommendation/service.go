package recommendation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OldStager01/press-downtime/internal/analyzer"
	"github.com/OldStager01/press-downtime/internal/datasource"
	"github.com/OldStager01/press-downtime/internal/decision"
	"github.com/OldStager01/press-downtime/internal/events"
	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/internal/metrics"
	"github.com/OldStager01/press-downtime/pkg/database/queries"
	"github.com/OldStager01/press-downtime/pkg/models"
)

type Config struct {
	DefaultWindowDays int
	Linkage           string
	Concurrency       int
	Decision          decision.Config
	Now               func() time.Time
}

type Service struct {
	source    datasource.Source
	analyzer  *analyzer.Analyzer
	engine    *decision.Engine
	publisher *events.Publisher
	metrics   *metrics.Metrics
	config    Config

	mu       sync.Mutex
	resolver DowntimeResolver
}

func New(source datasource.Source, publisher *events.Publisher, m *metrics.Metrics, cfg Config) *Service {
	if cfg.DefaultWindowDays <= 0 {
		cfg.DefaultWindowDays = 30
	}
	if cfg.Linkage == "" {
		cfg.Linkage = LinkageAuto
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Decision.Now == nil {
		cfg.Decision.Now = cfg.Now
	}

	return &Service{
		source:    source,
		analyzer:  analyzer.New(analyzer.Config{}),
		engine:    decision.NewEngine(cfg.Decision),
		publisher: publisher,
		metrics:   m,
		config:    cfg,
	}
}

// Recommend analyzes every machine over the filtered window and returns the
// maintenance actions the rule engine produced, ordered by machine name.
func (s *Service) Recommend(ctx context.Context, filter models.RecommendationFilter) (*models.RecommendationResult, error) {
	window, err := ResolveWindow(filter.StartDate, filter.EndDate, s.config.Now(), s.config.DefaultWindowDays)
	if err != nil {
		return nil, err
	}

	resolver, err := s.downtimeResolver(ctx)
	if err != nil {
		return nil, err
	}

	machines, err := s.source.Machines(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.WithTrace(ctx)
	log.Infof("Analyzing %d machines from %s to %s (linkage=%s)",
		len(machines), window.Start.Format(models.DateLayout), window.End.Format(models.DateLayout), resolver.Name())

	found := make([]*models.Recommendation, len(machines))
	skipped := make([]int, len(machines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for i, m := range machines {
		i, m := i, m
		g.Go(func() error {
			rec, parseFailures, err := s.analyzeMachine(gctx, resolver, m, window, filter)
			if err != nil {
				return fmt.Errorf("machine %d: %w", m.ID, err)
			}
			found[i] = rec
			skipped[i] = parseFailures
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &models.RecommendationResult{
		Success:         true,
		Recommendations: []models.Recommendation{},
		AnalysisType:    models.AnalysisTypeDowntimeImpact,
		Status:          models.StatusNoDowntimeData,
	}

	parseFailures := 0
	for i, rec := range found {
		parseFailures += skipped[i]
		if rec == nil {
			continue
		}
		result.Recommendations = append(result.Recommendations, *rec)
		switch rec.Priority {
		case models.PriorityUrgent:
			result.TotalUrgent++
		case models.PriorityNormal:
			result.TotalNormal++
		}
	}
	if len(result.Recommendations) > 0 {
		result.Status = models.StatusRealData
	}

	s.record(ctx, result, parseFailures)
	return result, nil
}

func (s *Service) analyzeMachine(
	ctx context.Context,
	resolver DowntimeResolver,
	machine models.Machine,
	window Window,
	filter models.RecommendationFilter,
) (*models.Recommendation, int, error) {
	machineID := machine.ID
	records, err := s.source.ProductionEvents(ctx, queries.ProductionFilter{
		Start:          window.Start,
		End:            window.End,
		MachineID:      &machineID,
		PublicationIDs: filter.PublicationIDs,
		Location:       filter.Location,
		Descending:     true,
	})
	if err != nil {
		return nil, 0, err
	}
	if len(records) == 0 {
		return nil, 0, nil
	}

	downtime, err := resolver.Resolve(ctx, machine.ID, records)
	if err != nil {
		return nil, 0, err
	}

	if machine.Name == "" {
		machine.Name = fmt.Sprintf("Machine %d", machine.ID)
	}

	analysis := s.analyzer.Analyze(machine, records, downtime)
	if analysis.SkippedRecords > 0 {
		logger.WithMachine(machine.ID).Warnf("Skipped %d malformed records", analysis.SkippedRecords)
	}

	rec, ok := s.engine.Decide(analysis)
	if !ok {
		return nil, analysis.SkippedRecords, nil
	}
	return rec, analysis.SkippedRecords, nil
}

func (s *Service) downtimeResolver(ctx context.Context) (DowntimeResolver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolver != nil {
		return s.resolver, nil
	}
	r, err := SelectResolver(ctx, s.source, s.config.Linkage)
	if err != nil {
		return nil, err
	}
	s.resolver = r
	return r, nil
}

func (s *Service) record(ctx context.Context, result *models.RecommendationResult, parseFailures int) {
	logger.WithTrace(ctx).Infof("Generated %d recommendations (%d urgent, %d normal)",
		len(result.Recommendations), result.TotalUrgent, result.TotalNormal)

	if s.metrics != nil {
		for _, r := range result.Recommendations {
			s.metrics.IncRecommendation(string(r.Priority))
		}
		s.metrics.AddParseFailures(parseFailures)
	}
	s.publisher.WithTraceID(logger.TraceIDFromContext(ctx)).RecommendationsGenerated(result)
}
