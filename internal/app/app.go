// Package app initializes and orchestrates the main components of the
// reviewd service. It wires together the configuration, storage, model
// backends, and server.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/reviewd/internal/config"
	"github.com/sevigo/reviewd/internal/db"
	"github.com/sevigo/reviewd/internal/github"
	"github.com/sevigo/reviewd/internal/jobs"
	"github.com/sevigo/reviewd/internal/llm"
	"github.com/sevigo/reviewd/internal/policy"
	"github.com/sevigo/reviewd/internal/publisher"
	"github.com/sevigo/reviewd/internal/server"
	"github.com/sevigo/reviewd/internal/storage"
)

// App holds the main application components.
type App struct {
	cfg        *config.Config
	server     *server.Server
	dispatcher *jobs.Dispatcher
	dbCleanup  func()
	logger     *slog.Logger
}

// NewApp sets up the application with all its dependencies. Configuration is
// loaded once before this call and never mutated afterwards; every component
// receives what it needs through its constructor.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	logger.Info("initializing reviewd",
		"backends", len(cfg.Backends),
		"max_workers", cfg.MaxWorkers,
		"token_budget", cfg.TokenBudget,
	)

	dbConn, dbCleanup, err := db.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	backends, err := llm.NewBackends(cfg.Backends, logger)
	if err != nil {
		dbCleanup()
		return nil, fmt.Errorf("failed to configure model backends: %w", err)
	}
	modelDispatcher, err := llm.NewDispatcher(backends, logger)
	if err != nil {
		dbCleanup()
		return nil, err
	}

	promptMgr, err := llm.NewPromptManager()
	if err != nil {
		dbCleanup()
		return nil, fmt.Errorf("failed to initialize prompt manager: %w", err)
	}

	store := storage.NewStore(dbConn.DB)
	pub := publisher.NewPublisher(store, logger)
	policyEngine := policy.NewEngine(logger)

	clientFactory := func(ctx context.Context, installationID int64) (github.Client, error) {
		return github.CreateInstallationClient(ctx, cfg, installationID, logger)
	}

	reviewJob := jobs.NewReviewJob(cfg, clientFactory, promptMgr, modelDispatcher, policyEngine, pub, logger)
	dispatcher := jobs.NewDispatcher(reviewJob, cfg.MaxWorkers, logger)
	httpServer := server.NewServer(cfg, dispatcher, store, logger)

	logger.Info("reviewd initialized successfully")
	return &App{
		cfg:        cfg,
		server:     httpServer,
		dispatcher: dispatcher,
		dbCleanup:  dbCleanup,
		logger:     logger,
	}, nil
}

// Start runs the HTTP server.
func (a *App) Start() error {
	a.logger.Info("starting reviewd",
		"server_port", a.cfg.Server.Port,
		"max_workers", a.cfg.MaxWorkers,
	)

	if err := a.server.Start(); err != nil {
		a.logger.Error("failed to start HTTP server", "error", err)
		return err
	}
	return nil
}

// Stop shuts down the application cleanly.
func (a *App) Stop() error {
	a.logger.Info("shutting down reviewd services")

	// Stop the HTTP server first to prevent new incoming requests.
	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
		// Continue to stop other components even if the server failed.
	}

	// Stop the job dispatcher, allowing in-flight jobs to finish.
	a.dispatcher.Stop()

	a.logger.Info("closing database connection")
	a.dbCleanup()

	if serverErr != nil {
		return serverErr
	}
	a.logger.Info("reviewd stopped successfully")
	return nil
}
