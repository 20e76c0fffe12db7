package main

import (
	"context"
	"fmt"

	"github.com/OldStager01/press-downtime/internal/datasource"
	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/internal/metrics"
	"github.com/OldStager01/press-downtime/internal/model"
	"github.com/OldStager01/press-downtime/internal/orchestrator"
	"github.com/OldStager01/press-downtime/internal/resilience"
	"github.com/OldStager01/press-downtime/internal/training"
	"github.com/OldStager01/press-downtime/pkg/config"
	"github.com/OldStager01/press-downtime/pkg/database"
	"github.com/OldStager01/press-downtime/pkg/database/queries"
)

// runtime holds the long-lived components shared by serve and train.
type runtime struct {
	db           *database.DB
	source       *datasource.ResilientSource
	registry     *model.Registry
	store        model.ArtifactStore
	runs         *queries.TrainingRunRepository
	metrics      *metrics.Metrics
	orchestrator *orchestrator.Orchestrator
}

func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	db, err := database.Open(cfg.Database.ToDBConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		logger.Warnf("Database unreachable at startup, serving degraded until it recovers: %v", err)
	} else {
		logger.Info("Database connection established")
	}

	m := metrics.Get()
	if err := m.WatchDB(db.SQL(), cfg.Database.Name); err != nil {
		logger.Warnf("Failed to register database pool metrics: %v", err)
	}

	source := datasource.NewResilientSource(datasource.ResilientSourceConfig{
		Source:      datasource.NewSQLSource(db),
		MaxFailures: cfg.CircuitBreaker.MaxFailures,
		Timeout:     cfg.CircuitBreaker.Timeout,
		OnStateChange: func(name string, from, to resilience.State) {
			m.SetCircuitBreakerState(name, int(to))
		},
	})

	store, err := newArtifactStore(ctx, cfg.Model)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry := model.NewRegistry()
	runs := queries.NewTrainingRunRepository(db)

	orch := orchestrator.New(orchestrator.Config{
		Schedule:       cfg.Training.Schedule,
		TrainOnStartup: cfg.Training.TrainOnStartup,
		BufferSize:     cfg.Events.BufferSize,
		Retrainer:      retrainerConfig(cfg),
	}, orchestrator.Dependencies{
		Source:   source,
		Registry: registry,
		Store:    store,
		Recorder: runs,
		Metrics:  m,
	})

	return &runtime{
		db:           db,
		source:       source,
		registry:     registry,
		store:        store,
		runs:         runs,
		metrics:      m,
		orchestrator: orch,
	}, nil
}

func (r *runtime) Close() {
	if err := r.db.Close(); err != nil {
		logger.Warnf("Database close failed: %v", err)
	}
}

func newArtifactStore(ctx context.Context, cfg config.ModelConfig) (model.ArtifactStore, error) {
	switch cfg.Store {
	case "minio":
		store, err := model.NewMinioStore(ctx, model.MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open minio model store: %w", err)
		}
		return store, nil
	default:
		store, err := model.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open model directory: %w", err)
		}
		return store, nil
	}
}

func retrainerConfig(cfg *config.Config) orchestrator.RetrainerConfig {
	return orchestrator.RetrainerConfig{
		WindowDays: cfg.Training.WindowDays,
		Timeout:    cfg.Training.Timeout,
		Training: training.Config{
			Seed:         cfg.Training.Seed,
			TestFraction: cfg.Training.TestFraction,
			Forest: training.ForestConfig{
				Trees:           cfg.Training.Trees,
				MaxDepth:        cfg.Training.MaxDepth,
				MinSamplesSplit: cfg.Training.MinSamplesSplit,
				Seed:            cfg.Training.Seed,
			},
		},
	}
}
