package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/OldStager01/press-downtime/api"
	"github.com/OldStager01/press-downtime/internal/auth"
	"github.com/OldStager01/press-downtime/internal/events"
	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/internal/metrics"
	"github.com/OldStager01/press-downtime/internal/orchestrator"
	"github.com/OldStager01/press-downtime/internal/prediction"
	"github.com/OldStager01/press-downtime/internal/recommendation"
	"github.com/OldStager01/press-downtime/pkg/config"
	"github.com/OldStager01/press-downtime/pkg/database"
	"github.com/OldStager01/press-downtime/pkg/models"
)

// kafkaEventTypes are forwarded to the backend; per-request prediction
// events stay on the WebSocket feed.
var kafkaEventTypes = []models.EventType{
	models.EventTypeTrainingCompleted,
	models.EventTypeTrainingFailed,
	models.EventTypeModelSwapped,
	models.EventTypeAlert,
}

type options struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "press-downtime",
		Short:         "Downtime risk prediction and maintenance recommendations for print machines",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file")

	cmd.AddCommand(
		newServeCommand(opts),
		newTrainCommand(opts),
		newMigrateCommand(opts),
		newTokenCommand(opts),
	)
	return cmd
}

func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger.Setup(cfg.App.LogLevel, cfg.App.Mode, cfg.App.Name)
	return cfg, nil
}

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the retraining scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
}

func runServe(opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Mode)

	ctx := context.Background()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	// The sink subscribes before Start so it sees the startup run.
	var sink *events.KafkaSink
	if cfg.Kafka.Enabled {
		writer := events.NewKafkaWriter(events.KafkaSinkConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		sink = events.NewKafkaSink(writer, rt.orchestrator.SubscribeEvents(kafkaEventTypes...), cfg.Kafka.WriteTimeout)
		sink.Start()
		logger.Infof("Publishing model events to kafka topic %s", cfg.Kafka.Topic)
	}

	if err := rt.orchestrator.Start(); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}
	defer func() {
		// Stop closes the bus, which lets the sink drain and exit.
		rt.orchestrator.Stop()
		if sink != nil {
			if err := sink.Stop(); err != nil {
				logger.Warnf("Kafka sink close failed: %v", err)
			}
		}
	}()

	var metricsServer *http.Server
	if cfg.Prometheus.Enabled {
		metricsServer = metrics.StartServer(cfg.Prometheus.Port)
	}

	publisher := rt.orchestrator.Publisher()

	predictor := prediction.New(rt.source, rt.registry, publisher, rt.metrics, prediction.Config{
		WindowDays: cfg.Prediction.WindowDays,
	})
	recommender := recommendation.New(rt.source, publisher, rt.metrics, recommendation.Config{
		DefaultWindowDays: cfg.Recommendations.DefaultWindowDays,
		Linkage:           cfg.Recommendations.Linkage,
	})

	server := api.NewServer(cfg.API, api.Dependencies{
		DB:            rt.source,
		Registry:      rt.registry,
		ModelLocation: rt.store.Location(),
		Runs:          rt.runs,
		Trainer:       rt.orchestrator,
		Predictor:     predictor,
		Recommender:   recommender,
		Events:        rt.orchestrator,
		NextRun:       rt.orchestrator.NextRun,
		Metrics:       rt.metrics,
		WebSocket:     cfg.WebSocket,
		Location:      time.UTC,

		TrainingTimeout:       cfg.Training.Timeout,
		PredictionTimeout:     cfg.Prediction.Timeout,
		RecommendationTimeout: cfg.Recommendations.Timeout,
	})

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Infof("API server listening on port %d", cfg.API.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var runErr error
	select {
	case err := <-errChan:
		runErr = fmt.Errorf("server error: %w", err)
	case sig := <-shutdownChan:
		logger.Infof("Received signal %v, shutting down", sig)
	}

	timeout := cfg.App.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown error: %w", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Metrics server shutdown failed: %v", err)
		}
	}

	if runErr == nil {
		logger.Info("Server stopped gracefully")
	}
	return runErr
}

func newTrainCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Retrain the model once and persist the artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			rt, err := newRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			retrainer := orchestrator.NewRetrainer(
				retrainerConfig(cfg),
				rt.source,
				rt.registry,
				rt.store,
				nil,
				rt.metrics,
			)
			defer retrainer.Close()

			result, err := retrainer.Retrain(ctx, orchestrator.TriggerManual)
			if result != nil {
				if recErr := rt.runs.RecordRun(ctx, orchestrator.TriggerManual, result); recErr != nil {
					logger.Warnf("Could not record training run: %v", recErr)
				}
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"model v%d trained on %d samples (%d positive): train accuracy %.3f, test accuracy %.3f\n",
				result.ModelVersion, result.Samples, result.PositiveSamples, result.TrainAccuracy, result.TestAccuracy)
			return nil
		},
	}
}

func newMigrateCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the service's database migrations",
	}

	withMigrator := func(fn func(*database.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			db, err := database.New(cfg.Database.ToDBConfig())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			return fn(database.NewMigrator(db))
		}
	}

	up := withMigrator(func(m *database.Migrator) error {
		version, err := m.Up()
		if err != nil {
			return err
		}
		logger.Infof("Schema at version %d", version)
		return nil
	})
	down := withMigrator(func(m *database.Migrator) error {
		if err := m.Down(); err != nil {
			return err
		}
		logger.Info("All migrations rolled back")
		return nil
	})
	version := withMigrator(func(m *database.Migrator) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "version=%d dirty=%t\n", v, dirty)
		return nil
	})

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", RunE: up},
		&cobra.Command{Use: "down", Short: "Roll back all migrations", RunE: down},
		&cobra.Command{Use: "version", Short: "Print the applied schema version", RunE: version},
	)
	return cmd
}

func newTokenCommand(opts *options) *cobra.Command {
	var (
		subject string
		scope   string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the training endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.API.JWTSecret == "" {
				return errors.New("api.jwt_secret is not set")
			}

			token, err := auth.NewService(cfg.API.JWTSecret, cfg.API.JWTIssuer, ttl).GenerateToken(subject, scope)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "press-backend", "token subject")
	cmd.Flags().StringVar(&scope, "scope", "train", "token scope")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	return cmd
}
