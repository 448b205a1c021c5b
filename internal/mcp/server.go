// Package mcp exposes the scoring service as MCP tools. It requires no
// external databases: results are cached in memory and score runs go to
// SQLite in the data directory.
package mcp

import (
	"context"
	"fmt"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/coronary-score-server/internal/cache"
	"github.com/coronary-score-server/internal/config"
	"github.com/coronary-score-server/internal/dataio"
	"github.com/coronary-score-server/internal/logging"
	"github.com/coronary-score-server/internal/service"
	"github.com/coronary-score-server/internal/store"
)

// Server is the MCP tool server.
type Server struct {
	config    *config.LiteConfig
	mcpServer *mcp.Server
	scoring   *service.ScoringService
	importer  *dataio.Importer
	results   *cache.ResultCache
	runs      store.Store
	logger    *logrus.Logger
	logCloser io.Closer
	ownsRuns  bool
}

// Option is a functional option for Server.
type Option func(*Server) error

// WithRunStore sets the score-run store instead of opening one in the data
// directory.
func WithRunStore(runs store.Store) Option {
	return func(s *Server) error {
		s.runs = runs
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// NewServer creates the MCP server and registers its tools.
func NewServer(cfg *config.LiteConfig, opts ...Option) (*Server, error) {
	server := &Server{config: cfg}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.logger == nil {
		// stdout carries the protocol, so logs go to stderr
		logger, closer, err := logging.New(cfg.LoggingConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		server.logger = logger
		server.logCloser = closer
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	results, err := cache.NewResultCache(server.logger, cfg.CacheConfig())
	if err != nil {
		return nil, err
	}
	server.results = results

	if server.runs == nil {
		runs, err := store.Open(cfg.StoreConfig(), "")
		if err != nil {
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		server.runs = runs
		server.ownsRuns = runs != nil
	}

	var recorder service.RunRecorder
	if server.runs != nil {
		recorder = server.runs
	}
	scoring, err := service.NewScoringService(server.logger, results, recorder, cfg.ScoringConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create scoring service: %w", err)
	}
	server.scoring = scoring
	server.importer = dataio.NewImporter(server.logger)

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}, nil)
	server.registerTools()

	server.logger.WithFields(logrus.Fields{
		"data_dir":    cfg.DataDir,
		"record_runs": server.runs != nil,
	}).Info("MCP server initialized successfully")
	return server, nil
}

// Run serves the tools over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting coronary score MCP server on stdio")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Connect serves the tools over an arbitrary transport.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, transport, nil)
}

// Close releases the cache, the run store when the server opened it, and
// the log file.
func (s *Server) Close() error {
	if s.results != nil {
		if err := s.results.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close result cache")
		}
	}
	if s.ownsRuns && s.runs != nil {
		if err := s.runs.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close run store")
		}
	}
	if s.logCloser != nil {
		return s.logCloser.Close()
	}
	return nil
}
