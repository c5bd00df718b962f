package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/qaforge/internal/chunker"
	"github.com/dshills/qaforge/internal/config"
	"github.com/dshills/qaforge/internal/generation"
	"github.com/dshills/qaforge/internal/logging"
	"github.com/dshills/qaforge/internal/resilience"
	"github.com/dshills/qaforge/internal/resource"
	"github.com/dshills/qaforge/internal/scheduler"
	"github.com/dshills/qaforge/internal/statusapi"
	"github.com/dshills/qaforge/internal/storage"
)

// app holds the wired components shared by the subcommands
type app struct {
	cfg       *config.Config
	logger    *zap.SugaredLogger
	store     *storage.SQLiteStorage
	client    *generation.Client
	scheduler *scheduler.Scheduler
}

// loadConfig reads configuration with the command's flags bound on top
func loadConfig(cmd *cobra.Command) (*config.Config, *zap.SugaredLogger, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.Options{File: file, Flags: cmd.Flags()})
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openStore opens only the store, for commands that never generate
func openStore(cmd *cobra.Command) (*app, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return &app{cfg: cfg, logger: logger, store: store}, nil
}

// newApp wires the full pipeline
func newApp(cmd *cobra.Command) (*app, error) {
	a, err := openStore(cmd)
	if err != nil {
		return nil, err
	}
	cfg, logger := a.cfg, a.logger

	backend, err := generation.NewBackend(cfg.BackendConfig())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create generation backend: %w", err)
	}
	a.client = generation.NewClient(backend, cfg.ClientConfig(), logger)

	breaker := resilience.NewBreaker(cfg.BreakerConfig(), logger)
	policy := resilience.NewPolicy(cfg.RetryConfig(), breaker, generation.IsTransient, logger)

	monitor := resource.All(
		resource.NewBattery(cfg.Resource.MinBatteryPercent, cfg.Resource.ResumeBatteryPercent, logger),
		resource.NewHeap(cfg.Resource.MaxHeapMB, logger),
	)

	a.scheduler, err = scheduler.New(scheduler.Dependencies{
		Store:     a.store,
		Generator: a.client,
		Policy:    policy,
		Monitor:   monitor,
		Chunker:   chunker.NewWithConfig(cfg.ChunkerConfig()),
		Logger:    logger,
	}, cfg.SchedulerConfig())
	if err != nil {
		a.close()
		return nil, err
	}

	logger.Infow("pipeline configured",
		"db", cfg.DBPath,
		"driver", storage.DriverName,
		"backend", backend.Name(),
		"concurrency", cfg.Scheduler.Concurrency,
	)
	return a, nil
}

// serveStatus starts the status HTTP API when an address is configured. The
// returned function shuts it down.
func (a *app) serveStatus() func() {
	if a.cfg.StatusAddr == "" {
		return func() {}
	}

	deps := statusapi.Deps{Store: a.store, Logger: a.logger}
	if a.scheduler != nil {
		deps.Progress = a.scheduler
	}
	srv := &http.Server{
		Addr:              a.cfg.StatusAddr,
		Handler:           statusapi.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Infow("status api listening", "addr", a.cfg.StatusAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorw("status api stopped", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func (a *app) close() {
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logger.Sync()
}
