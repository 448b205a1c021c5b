package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/coronary-score-server/internal/domain"
	"github.com/coronary-score-server/internal/middleware"
	"github.com/coronary-score-server/internal/service"
	"github.com/coronary-score-server/internal/store"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	scoring       *service.ScoringService
	runs          store.Store
	patients      domain.PatientRepository
	health        []HealthCheck
	router        *gin.Engine
	server        *http.Server
}

// HealthCheck reports the state of one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithRunStore exposes score-run history under /api/v1/runs.
func WithRunStore(runs store.Store) Option {
	return func(s *Server) { s.runs = runs }
}

// WithPatientRepository exposes stored patient records under /api/v1/patients.
func WithPatientRepository(repo domain.PatientRepository) Option {
	return func(s *Server) { s.patients = repo }
}

// WithHealthCheck adds a dependency to the health report.
func WithHealthCheck(name string, check func(ctx context.Context) error) Option {
	return func(s *Server) { s.health = append(s.health, HealthCheck{Name: name, Check: check}) }
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, logger *logrus.Logger, scoring *service.ScoringService, opts ...Option) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)))
	}
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	server := &Server{
		configManager: configManager,
		logger:        logger,
		scoring:       scoring,
		router:        router,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupRoutes()

	return server
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/score/:calculator", s.handleScore)
		v1.POST("/batch", s.handleBatch)
		v1.POST("/validate", s.handleValidate)
		v1.GET("/catalog/segments", s.handleSegments)

		v1.GET("/runs", s.requireRuns, s.handleListRuns)
		v1.GET("/runs/:id", s.requireRuns, s.handleGetRun)
		v1.DELETE("/runs/:id", s.requireRuns, s.handleDeleteRun)

		v1.POST("/patients", s.requirePatients, s.handleCreatePatient)
		v1.GET("/patients", s.requirePatients, s.handleListPatients)
		v1.GET("/patients/:id", s.requirePatients, s.handleGetPatient)
		v1.DELETE("/patients/:id", s.requirePatients, s.handleDeletePatient)
		v1.POST("/patients/:id/score", s.requirePatients, s.handleScoreStoredPatient)
	}
}
