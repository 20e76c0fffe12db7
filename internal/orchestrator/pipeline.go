package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/OldStager01/press-downtime/internal/datasource"
	"github.com/OldStager01/press-downtime/internal/events"
	"github.com/OldStager01/press-downtime/internal/features"
	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/internal/metrics"
	"github.com/OldStager01/press-downtime/internal/model"
	"github.com/OldStager01/press-downtime/internal/training"
	"github.com/OldStager01/press-downtime/pkg/database/queries"
	"github.com/OldStager01/press-downtime/pkg/models"
)

const (
	TriggerStartup  = "startup"
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerBatch    = "batch"
)

type RetrainerConfig struct {
	WindowDays int
	Timeout    time.Duration
	Training   training.Config
	Now        func() time.Time
}

// Retrainer runs the fetch, feature, train, swap and persist pipeline.
// Overlapping triggers share a single run.
type Retrainer struct {
	config    RetrainerConfig
	source    datasource.Source
	builder   *features.Builder
	trainer   *training.Trainer
	registry  *model.Registry
	store     model.ArtifactStore
	publisher *events.Publisher
	metrics   *metrics.Metrics
	group     singleflight.Group
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewRetrainer(
	cfg RetrainerConfig,
	source datasource.Source,
	registry *model.Registry,
	store model.ArtifactStore,
	publisher *events.Publisher,
	m *metrics.Metrics,
) *Retrainer {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 90
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Training.Seed == 0 {
		cfg.Training.Seed = 42
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Retrainer{
		config:    cfg,
		source:    source,
		builder:   features.New(features.Config{}),
		trainer:   training.New(cfg.Training),
		registry:  registry,
		store:     store,
		publisher: publisher,
		metrics:   m,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Retrain trains a new model unless a run is already in flight, in which case
// it waits for that run's result. The run itself is not tied to ctx; ctx only
// bounds how long this caller waits.
func (r *Retrainer) Retrain(ctx context.Context, trigger string) (*models.TrainingResult, error) {
	traceID := logger.TraceIDFromContext(ctx)

	ch := r.group.DoChan("retrain", func() (interface{}, error) {
		runCtx := r.ctx
		if traceID != "" {
			runCtx = logger.WithTraceID(runCtx, traceID)
		}
		result, err := r.run(runCtx, trigger)
		return result, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			logger.WithTrace(ctx).Debugf("Joined in-flight training run (%s)", trigger)
		}
		result, _ := res.Val.(*models.TrainingResult)
		return result, res.Err
	}
}

// Close aborts any in-flight run.
func (r *Retrainer) Close() {
	r.cancel()
}

func (r *Retrainer) run(ctx context.Context, trigger string) (*models.TrainingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	started := time.Now()
	log := logger.WithTrace(ctx).WithField("trigger", trigger)
	publisher := r.publisher.WithTraceID(logger.TraceIDFromContext(ctx))

	log.Info("Training started")
	publisher.TrainingStarted(trigger)

	production, downtime, err := r.fetch(ctx)
	if err != nil {
		return r.fail(ctx, trigger, started, err)
	}

	rows, err := r.builder.Build(production, downtime)
	if err != nil {
		return r.fail(ctx, trigger, started, err)
	}

	fitted, err := r.trainer.Train(ctx, rows)
	if err != nil {
		return r.fail(ctx, trigger, started, err)
	}

	trainedAt := r.config.Now()
	state := r.registry.Swap(model.NewState(fitted, trainedAt))

	if r.store != nil {
		if err := r.store.Save(ctx, state); err != nil {
			log.Errorf("Failed to persist model artifacts: %v", err)
			publisher.Error("Failed to persist model artifacts", err)
		}
	}

	result := &models.TrainingResult{
		Success:         true,
		TrainAccuracy:   fitted.TrainAccuracy,
		TestAccuracy:    fitted.TestAccuracy,
		Samples:         fitted.Samples,
		PositiveSamples: fitted.PositiveSamples,
		TrainSamples:    fitted.TrainSamples,
		TestSamples:     fitted.TestSamples,
		ModelVersion:    state.Version,
		TrainedAt:       &trainedAt,
		DurationMillis:  time.Since(started).Milliseconds(),
	}

	if r.metrics != nil {
		r.metrics.ObserveTraining(trigger, true, time.Since(started))
		r.metrics.SetModel(state.Version, state.TrainAccuracy, state.TestAccuracy, state.TrainedAt)
	}
	publisher.TrainingCompleted(trigger, result)
	publisher.ModelSwapped(state.Version, state.TrainedAt)

	logger.WithModel(state.Version).Infof("Model trained with %d samples (%d with downtime)", result.Samples, result.PositiveSamples)
	return result, nil
}

func (r *Retrainer) fetch(ctx context.Context) ([]models.ProductionEvent, []models.DowntimeEvent, error) {
	end := r.config.Now()
	start := end.AddDate(0, 0, -r.config.WindowDays)

	var (
		production []models.ProductionEvent
		downtime   []models.DowntimeEvent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		production, err = r.source.ProductionEvents(gctx, queries.ProductionFilter{Start: start, End: end})
		return err
	})
	g.Go(func() error {
		var err error
		downtime, err = r.source.DowntimeInWindow(gctx, start, end, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	logger.WithTrace(ctx).Infof("Fetched %d production records and %d downtime records", len(production), len(downtime))
	return production, downtime, nil
}

// fail reports a failed run. The active model is left untouched.
func (r *Retrainer) fail(ctx context.Context, trigger string, started time.Time, err error) (*models.TrainingResult, error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: timed out after %s: %w", models.ErrTrainingFailed, r.config.Timeout, err)
	}

	result := models.NewTrainingFailure(err)
	result.DurationMillis = time.Since(started).Milliseconds()

	logger.WithTrace(ctx).WithField("trigger", trigger).Errorf("Training failed: %v", err)
	if r.metrics != nil {
		r.metrics.ObserveTraining(trigger, false, time.Since(started))
	}
	r.publisher.WithTraceID(logger.TraceIDFromContext(ctx)).TrainingFailed(trigger, result)

	return result, err
}

// WarmStart loads persisted artifacts into the registry. A missing store or
// missing artifacts is not an error.
func (r *Retrainer) WarmStart(ctx context.Context) (bool, error) {
	if r.store == nil {
		return false, nil
	}

	state, err := r.store.Load(ctx)
	if errors.Is(err, model.ErrNoArtifacts) {
		logger.Info("No persisted model found, waiting for first training run")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	stored := r.registry.Swap(state)
	if r.metrics != nil {
		r.metrics.SetModel(stored.Version, stored.TrainAccuracy, stored.TestAccuracy, stored.TrainedAt)
	}
	r.publisher.ModelSwapped(stored.Version, stored.TrainedAt)

	logger.WithModel(stored.Version).Infof("Loaded persisted model from %s", r.store.Location())
	return true, nil
}
