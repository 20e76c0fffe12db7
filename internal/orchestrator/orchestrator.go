package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/OldStager01/press-downtime/internal/datasource"
	"github.com/OldStager01/press-downtime/internal/events"
	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/internal/metrics"
	"github.com/OldStager01/press-downtime/internal/model"
	"github.com/OldStager01/press-downtime/pkg/models"
)

type Config struct {
	// Schedule is a six-field cron expression; empty disables scheduled runs.
	Schedule       string
	TrainOnStartup bool
	BufferSize     int
	Retrainer      RetrainerConfig
}

type Dependencies struct {
	Source   datasource.Source
	Registry *model.Registry
	Store    model.ArtifactStore
	Recorder events.RunRecorder
	Metrics  *metrics.Metrics
}

// Orchestrator owns the event bus and decides when the model is retrained.
type Orchestrator struct {
	config      Config
	eventBus    *events.EventBus
	eventLogger *events.EventLogger
	retrainer   *Retrainer
	scheduler   *cron.Cron
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
}

func New(cfg Config, deps Dependencies) *Orchestrator {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	eventBus := events.NewEventBus(cfg.BufferSize)

	// Subscribe event logger to all events
	allEvents := eventBus.SubscribeAll()
	eventLogger := events.NewEventLogger(deps.Recorder, allEvents)

	retrainer := NewRetrainer(
		cfg.Retrainer,
		deps.Source,
		deps.Registry,
		deps.Store,
		events.NewPublisher(eventBus),
		deps.Metrics,
	)

	return &Orchestrator{
		config:      cfg,
		eventBus:    eventBus,
		eventLogger: eventLogger,
		retrainer:   retrainer,
		scheduler:   cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC), cron.WithLogger(logger.CronLogger())),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start loads persisted artifacts, registers the retrain schedule and, if
// configured, kicks off a background training run.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return nil
	}

	if o.config.Schedule != "" {
		if _, err := o.scheduler.AddFunc(o.config.Schedule, o.scheduledRun); err != nil {
			return fmt.Errorf("invalid training schedule %q: %w", o.config.Schedule, err)
		}
	}

	logger.Info("Orchestrator starting")
	o.eventLogger.Start()

	loaded, err := o.retrainer.WarmStart(o.ctx)
	if err != nil {
		logger.Warnf("Could not load persisted model: %v", err)
	}

	if o.config.Schedule != "" {
		o.scheduler.Start()
		logger.Infof("Retraining scheduled: %s (UTC)", o.config.Schedule)
	}

	if o.config.TrainOnStartup {
		if loaded {
			logger.Info("Persisted model active, refreshing in background")
		}
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.trigger(TriggerStartup)
		}()
	}

	o.running = true
	return nil
}

func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	o.mu.Unlock()

	logger.Info("Orchestrator stopping")

	<-o.scheduler.Stop().Done()

	o.retrainer.Close()
	o.cancel()
	o.wg.Wait()

	o.eventBus.Close()
	o.eventLogger.Stop()

	logger.Info("Orchestrator stopped")
}

func (o *Orchestrator) scheduledRun() {
	o.wg.Add(1)
	defer o.wg.Done()
	o.trigger(TriggerSchedule)
}

func (o *Orchestrator) trigger(trigger string) {
	ctx := logger.WithTraceID(o.ctx, models.NewUUID())
	if _, err := o.retrainer.Retrain(ctx, trigger); err != nil {
		logger.WithTrace(ctx).Warnf("%s training did not produce a model: %v", trigger, err)
	}
}

// Retrain runs or joins a training run on behalf of a caller.
func (o *Orchestrator) Retrain(ctx context.Context, trigger string) (*models.TrainingResult, error) {
	return o.retrainer.Retrain(ctx, trigger)
}

// NextRun returns the next scheduled retrain, or the zero time when no
// schedule is active.
func (o *Orchestrator) NextRun() time.Time {
	entries := o.scheduler.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (o *Orchestrator) Publisher() *events.Publisher {
	return events.NewPublisher(o.eventBus)
}

// SubscribeEvents returns a channel of the given event types, closed on Stop.
func (o *Orchestrator) SubscribeEvents(types ...models.EventType) <-chan *models.Event {
	return o.eventBus.Subscribe(types...)
}

func (o *Orchestrator) SubscribeAllEvents() <-chan *models.Event {
	return o.eventBus.SubscribeAll()
}
