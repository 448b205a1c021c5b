package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/coronary-score-server/internal/api"
	"github.com/coronary-score-server/internal/cache"
	"github.com/coronary-score-server/internal/config"
	"github.com/coronary-score-server/internal/database"
	"github.com/coronary-score-server/internal/logging"
	"github.com/coronary-score-server/internal/repository"
	"github.com/coronary-score-server/internal/service"
	"github.com/coronary-score-server/internal/store"
)

func main() {
	flags := pflag.NewFlagSet("coronary-server", pflag.ExitOnError)
	configFile := flags.String("config", "", "configuration file (default: ./config.yaml or ./configs/config.yaml)")
	flags.Int("port", 8080, "HTTP listen port")
	flags.String("dominance", "right", "default coronary dominance")
	_ = flags.Parse(os.Args[1:])

	opts := []config.Option{config.WithFlags(flags, map[string]string{
		"port":      "server.port",
		"dominance": "scoring.default_dominance",
	})}
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}

	// Load configuration
	configManager, err := config.NewManager(opts...)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logCloser.Close()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	var fallbackDSN string
	if cfg.Database.Enabled() {
		fallbackDSN = configManager.GetDatabaseURL()
	}
	runs, err := store.Open(cfg.Store, fallbackDSN)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open run store")
	}
	if runs != nil {
		defer runs.Close()
	}

	var results *cache.ResultCache
	if cfg.Cache.Enabled {
		results, err = cache.NewResultCache(logger, cfg.Cache)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create result cache")
		}
		defer results.Close()
	}

	var recorder service.RunRecorder
	if cfg.Scoring.RecordRuns && runs != nil {
		recorder = runs
	}
	scoring, err := service.NewScoringService(logger, results, recorder, cfg.Scoring)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create scoring service")
	}

	serverOpts := []api.Option{}
	if runs != nil {
		serverOpts = append(serverOpts, api.WithRunStore(runs))
	}

	if cfg.Database.Enabled() {
		dbConfig := database.ConfigFrom(cfg.Database)
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, dbConfig.URL(), cfg.Database.MigrationsPath, logger); err != nil {
				logger.WithError(err).Fatal("Failed to apply migrations")
			}
		} else if err := database.CheckSchema(dbConfig.URL(), cfg.Database.MigrationsPath, logger); err != nil {
			logger.WithError(err).Fatal("Database schema check failed; enable database.auto_migrate or run the migrations")
		}

		db, err := database.NewConnection(ctx, dbConfig, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()

		serverOpts = append(serverOpts,
			api.WithPatientRepository(repository.NewPatientRepository(db.Pool, logger)),
			api.WithHealthCheck("database", db.Health),
		)
	}

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"store":       cfg.Store.Driver,
		"record_runs": recorder != nil,
		"patients":    cfg.Database.Enabled(),
	}).Info("Starting coronary score server")

	// Start server
	server := api.NewServer(configManager, logger, scoring, serverOpts...)
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		return
	}

	logger.Info("Server stopped")
}
