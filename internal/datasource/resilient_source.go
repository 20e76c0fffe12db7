package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/internal/resilience"
	"github.com/OldStager01/press-downtime/pkg/database/queries"
	"github.com/OldStager01/press-downtime/pkg/models"
)

// ResilientSource guards a Source with a circuit breaker and bounded retries.
// Every failure it returns wraps models.ErrDataUnavailable.
type ResilientSource struct {
	source         Source
	circuitBreaker *resilience.CircuitBreaker
	retryAttempts  int
	retryDelay     time.Duration
}

type ResilientSourceConfig struct {
	Source        Source
	MaxFailures   int
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	OnStateChange func(name string, from, to resilience.State)
}

func NewResilientSource(cfg ResilientSourceConfig) *ResilientSource {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 2
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:          "datastore",
		MaxFailures:   cfg.MaxFailures,
		Timeout:       cfg.Timeout,
		IsFailure:     countsAgainstDatastore,
		OnStateChange: cfg.OnStateChange,
	})

	return &ResilientSource{
		source:         cfg.Source,
		circuitBreaker: cb,
		retryAttempts:  cfg.RetryAttempts,
		retryDelay:     cfg.RetryDelay,
	}
}

// countsAgainstDatastore ignores rejected input and the caller's own
// cancellation; neither says anything about datastore health.
func countsAgainstDatastore(ctx context.Context, err error) bool {
	if errors.Is(err, queries.ErrInvalidRange) {
		return false
	}
	return !(errors.Is(err, context.Canceled) && ctx.Err() != nil)
}

func (s *ResilientSource) do(ctx context.Context, op string, fn func(context.Context) error) error {
	err := s.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var lastErr error
		for attempt := 1; attempt <= s.retryAttempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			lastErr = fn(ctx)
			if lastErr == nil || errors.Is(lastErr, queries.ErrInvalidRange) {
				return lastErr
			}

			logger.WithTrace(ctx).Warnf("%s attempt %d/%d failed: %v", op, attempt, s.retryAttempts, lastErr)

			if attempt < s.retryAttempts {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.retryDelay):
				}
			}
		}
		return lastErr
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, queries.ErrInvalidRange):
		return fmt.Errorf("%w: %w", models.ErrInvalidInput, err)
	default:
		return fmt.Errorf("%w: %s: %w", models.ErrDataUnavailable, op, err)
	}
}

func (s *ResilientSource) ProductionEvents(ctx context.Context, filter queries.ProductionFilter) ([]models.ProductionEvent, error) {
	var events []models.ProductionEvent
	err := s.do(ctx, "fetch production records", func(ctx context.Context) error {
		var err error
		events, err = s.source.ProductionEvents(ctx, filter)
		return err
	})
	return events, err
}

func (s *ResilientSource) DowntimeForRecords(ctx context.Context, recordIDs []int64) ([]models.DowntimeEvent, error) {
	var events []models.DowntimeEvent
	err := s.do(ctx, "fetch linked downtime", func(ctx context.Context) error {
		var err error
		events, err = s.source.DowntimeForRecords(ctx, recordIDs)
		return err
	})
	return events, err
}

func (s *ResilientSource) DowntimeInWindow(ctx context.Context, start, end time.Time, machineID *int64) ([]models.DowntimeEvent, error) {
	var events []models.DowntimeEvent
	err := s.do(ctx, "fetch downtime window", func(ctx context.Context) error {
		var err error
		events, err = s.source.DowntimeInWindow(ctx, start, end, machineID)
		return err
	})
	return events, err
}

func (s *ResilientSource) Machines(ctx context.Context) ([]models.Machine, error) {
	var machines []models.Machine
	err := s.do(ctx, "fetch machines", func(ctx context.Context) error {
		var err error
		machines, err = s.source.Machines(ctx)
		return err
	})
	return machines, err
}

func (s *ResilientSource) SupportsRecordLinkage(ctx context.Context) (bool, error) {
	var ok bool
	err := s.do(ctx, "probe schema", func(ctx context.Context) error {
		var err error
		ok, err = s.source.SupportsRecordLinkage(ctx)
		return err
	})
	return ok, err
}

func (s *ResilientSource) HealthCheck(ctx context.Context) error {
	return s.source.HealthCheck(ctx)
}

func (s *ResilientSource) CircuitState() resilience.State {
	return s.circuitBreaker.State()
}

func (s *ResilientSource) ResetCircuit() {
	s.circuitBreaker.Reset()
}
