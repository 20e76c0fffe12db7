package metrics

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OldStager01/press-downtime/internal/logger"
)

const namespace = "press"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	trainingRuns        *prometheus.CounterVec
	trainingDuration    prometheus.Histogram
	modelVersion        prometheus.Gauge
	modelAccuracy       *prometheus.GaugeVec
	modelTrainedAt      prometheus.Gauge
	predictions         *prometheus.CounterVec
	recommendations     *prometheus.CounterVec
	parseFailures       prometheus.Counter
	circuitBreakerState *prometheus.GaugeVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide metrics set.
func Get() *Metrics {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New builds a metrics set on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		trainingRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "Retraining runs by trigger and outcome.",
		}, []string{"trigger", "result"}),
		trainingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Duration of retraining runs.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		modelVersion: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_version",
			Help:      "Version of the active model, 0 when none.",
		}),
		modelAccuracy: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_accuracy",
			Help:      "Accuracy of the active model by split.",
		}, []string{"split"}),
		modelTrainedAt: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_trained_timestamp_seconds",
			Help:      "Unix time the active model was trained.",
		}),
		predictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions served by risk level.",
		}, []string{"risk_level"}),
		recommendations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Recommendations produced by priority.",
		}, []string{"priority"}),
		parseFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_parse_failures_total",
			Help:      "Production or downtime records skipped for malformed values.",
		}),
		circuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"name"}),
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ObserveTraining(trigger string, success bool, d time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.trainingRuns.WithLabelValues(trigger, result).Inc()
	m.trainingDuration.Observe(d.Seconds())
}

func (m *Metrics) SetModel(version int64, trainAccuracy, testAccuracy float64, trainedAt time.Time) {
	m.modelVersion.Set(float64(version))
	m.modelAccuracy.WithLabelValues("train").Set(trainAccuracy)
	m.modelAccuracy.WithLabelValues("test").Set(testAccuracy)
	m.modelTrainedAt.Set(float64(trainedAt.Unix()))
}

func (m *Metrics) IncPrediction(riskLevel string) {
	m.predictions.WithLabelValues(riskLevel).Inc()
}

func (m *Metrics) IncRecommendation(priority string) {
	m.recommendations.WithLabelValues(priority).Inc()
}

func (m *Metrics) AddParseFailures(n int) {
	m.parseFailures.Add(float64(n))
}

func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// WatchDB exports connection pool stats for db under the given name.
func (m *Metrics) WatchDB(db *sql.DB, name string) error {
	err := m.registry.Register(collectors.NewDBStatsCollector(db, name))
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return nil
	}
	return err
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func StartServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Get().Handler())

	addr := ":" + strconv.Itoa(port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Infof("Prometheus metrics server listening on %s", addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Prometheus server error: %v", err)
		}
	}()
	return srv
}
