package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/press-downtime/api/handlers"
	"github.com/OldStager01/press-downtime/api/middleware"
	"github.com/OldStager01/press-downtime/api/websocket"
	"github.com/OldStager01/press-downtime/internal/auth"
	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/internal/metrics"
	"github.com/OldStager01/press-downtime/internal/model"
	"github.com/OldStager01/press-downtime/pkg/config"
	"github.com/OldStager01/press-downtime/pkg/models"
)

const (
	maxRequestBytes = 1 << 20

	// ScopeTrain is the token scope that may trigger retraining.
	ScopeTrain = "train"
)

// EventSource feeds model and training events to WebSocket clients.
type EventSource interface {
	SubscribeAllEvents() <-chan *models.Event
}

// Dependencies are the services the HTTP surface delegates to. Runs, Events,
// NextRun and Metrics are optional.
type Dependencies struct {
	DB            handlers.HealthChecker
	Registry      *model.Registry
	ModelLocation string
	Runs          handlers.RunHistory
	Trainer       handlers.Trainer
	Predictor     handlers.Predictor
	Recommender   handlers.Recommender
	Events        EventSource
	NextRun       func() time.Time
	Metrics       *metrics.Metrics
	WebSocket     config.WebSocketConfig
	Location      *time.Location

	TrainingTimeout       time.Duration
	PredictionTimeout     time.Duration
	RecommendationTimeout time.Duration
}

type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      config.APIConfig
	deps        Dependencies
	authService *auth.Service
	wsHub       *websocket.Hub
	wsBridge    *websocket.EventBridge
}

func NewServer(cfg config.APIConfig, deps Dependencies) *Server {
	if cfg.JWTSecret == "" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	var authService *auth.Service
	if cfg.JWTSecret != "" {
		authService = auth.NewService(cfg.JWTSecret, cfg.JWTIssuer, 24*time.Hour)
	} else {
		logger.Warn("api.jwt_secret is empty, training endpoints are unauthenticated")
	}

	wsHub := websocket.NewHub(&deps.WebSocket)

	s := &Server{
		router:      gin.New(),
		config:      cfg,
		deps:        deps,
		authService: authService,
		wsHub:       wsHub,
	}

	s.setupMiddleware()
	s.setupRoutes()

	go wsHub.Run()

	if deps.Events != nil {
		s.wsBridge = websocket.NewEventBridge(wsHub, deps.Events.SubscribeAllEvents())
		s.wsBridge.Start()
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.RecoveryWithWriter(logger.RecoveryWriter()))
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.CORS(s.config.CORS))
	s.router.Use(middleware.TraceID())
	s.router.Use(middleware.RequestLogger(s.deps.Metrics))
	s.router.Use(middleware.RequestSizeLimit(maxRequestBytes))

	if s.config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(s.config.RateLimit, time.Minute)
		s.router.Use(middleware.RateLimit(rateLimiter))
	}

	// Retraining is expensive; keep manual triggers rare.
	s.router.Use(middleware.RouteLimits{}.
		Limit("/train", 5, time.Minute).
		Limit("/batch-analysis", 5, time.Minute).
		Middleware())
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.deps.DB, s.deps.Registry)
	trainingHandler := handlers.NewTrainingHandler(s.deps.Trainer, s.deps.Predictor, s.deps.TrainingTimeout)
	predictionHandler := handlers.NewPredictionHandler(s.deps.Predictor, s.deps.PredictionTimeout)
	recommendationHandler := handlers.NewRecommendationHandler(s.deps.Recommender, s.deps.RecommendationTimeout, s.deps.Location)
	modelHandler := handlers.NewModelHandler(s.deps.Registry, s.deps.ModelLocation, s.deps.Runs, s.deps.NextRun)

	// Public routes
	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/health/ready", healthHandler.Ready)
	s.router.GET("/health/live", healthHandler.Live)

	s.router.GET("/predict", predictionHandler.Predict)
	s.router.GET("/recommendations", recommendationHandler.Recommendations)
	s.router.GET("/model-info", modelHandler.Info)
	s.router.GET("/training-runs", modelHandler.History)

	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	s.router.GET("/ws", websocket.ServeWebSocket(s.wsHub))

	// Training triggers
	protected := s.router.Group("/")
	protected.Use(middleware.JWTAuth(s.authService, ScopeTrain))
	{
		protected.POST("/train", trainingHandler.Train)
		protected.POST("/batch-analysis", trainingHandler.BatchAnalysis)
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	idle := s.config.IdleTimeout
	if idle <= 0 {
		idle = 60 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  idle,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.wsBridge != nil {
		s.wsBridge.Stop()
	}
	s.wsHub.Stop()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) WebSocketHub() *websocket.Hub {
	return s.wsHub
}
