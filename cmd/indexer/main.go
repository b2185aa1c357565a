// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Command indexer is the entrypoint for the Usenet binary indexer core:
// it loads configuration, opens the DuckDB store, wires the NNTP client
// factory, the deobfuscation pipeline and its external lookup clients,
// the release materializer, and the Group Scheduler's update/backfill
// loops, then serves the §6 ORN sharing boundary and /healthz and
// /metrics over HTTP until signaled to stop.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/cartographus/internal/assembler"
	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/database"
	"github.com/tomtom215/cartographus/internal/deobfuscate"
	"github.com/tomtom215/cartographus/internal/eventbus"
	"github.com/tomtom215/cartographus/internal/external"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/nntp"
	"github.com/tomtom215/cartographus/internal/ornshare"
	"github.com/tomtom215/cartographus/internal/progress"
	"github.com/tomtom215/cartographus/internal/release"
	"github.com/tomtom215/cartographus/internal/scheduler"
	"github.com/tomtom215/cartographus/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting indexer")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Str("db_path", cfg.Database.Path).Msg("Database initialized successfully")

	// Create context for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog compatibility.
	slogLogger := logging.NewSlogLogger()

	// A new NNTP connection is opened per group-pass worker; GROUP
	// selection is connection-scoped and cannot be shared across
	// concurrent workers (§4.1).
	limiter := nntp.NewLimiter(cfg.NNTP)
	newClient := func(ctx context.Context) (scheduler.GroupClient, error) {
		client := nntp.New(cfg.NNTP, limiter)
		if err := client.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect to nntp server: %w", err)
		}
		return client, nil
	}

	preDBClients := external.NewPreDBClients(cfg.PreDB, slogLogger)
	preDB := make([]deobfuscate.PreDBClient, len(preDBClients))
	for i, c := range preDBClients {
		preDB[i] = c
	}
	logging.Info().Int("endpoints", len(preDB)).Msg("PreDB lookup clients configured")

	newznabClients := external.NewNewznabPool(cfg.Newznab, cfg.NZBHydra2, slogLogger)
	newznab := make([]deobfuscate.NewznabClient, len(newznabClients))
	for i, c := range newznabClients {
		newznab[i] = c
	}
	logging.Info().Int("endpoints", len(newznab)).Msg("Newznab lookup clients configured")

	pipeline := deobfuscate.New(db, cfg.Deobfuscation, preDB, newznab)
	materializer := release.New(db, pipeline, cfg.Storage.NZBDir)

	sched := scheduler.New(db, materializer, newClient, cfg.Scheduler, cfg.Deobfuscation.MaxArticleBytes, slogLogger)

	// The progress hub broadcasts loop/group/release events to any
	// operator connected to /progress; attached before the loop
	// services are built since they snapshot it at construction.
	progressHub := progress.NewHub()
	sched.SetProgress(progressHub)

	// The event bus is disabled by default, in which case Publish/Consume
	// are no-ops and the scheduler materializes releases synchronously.
	bus, err := eventbus.New(cfg.EventBus)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()
	sched.SetEventBus(bus)

	tree, err := scheduler.NewTree(slogLogger, scheduler.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create scheduler supervisor tree")
	}
	tree.AddUpdateService(sched.UpdateLoopService())
	tree.AddBackfillService(sched.BackfillLoopService())
	logging.Info().Msg("Group scheduler update/backfill loops added to supervisor tree")

	tree.Root().Add(services.NewWebSocketHubService(progressHub))
	logging.Info().Msg("Progress hub service added")

	tree.Root().Add(services.NewEventBusService(func(ctx context.Context) error {
		return bus.Consume(ctx, func(ctx context.Context, bin *assembler.Binary) error {
			sched.MaterializeBinary(ctx, bin.GroupName, bin)
			return nil
		})
	}))
	logging.Info().Msg("Event bus consumer service added")

	httpServer, err := buildHTTPServer(cfg, db, pipeline, progressHub, slogLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build HTTP server")
	}
	tree.Root().Add(services.NewHTTPServerService(httpServer, cfg.Server.Timeout))
	logging.Info().Str("addr", httpServer.Addr).Msg("HTTP server service added")

	// Setup signal handling.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Indexer stopped gracefully")
}

// buildHTTPServer assembles the narrow HTTP surface this repo owns: the
// §6 ORN sharing boundary (which also serves /healthz), /metrics, and
// the operator-facing /progress WebSocket stream.
func buildHTTPServer(cfg *config.Config, db *database.DB, pipeline *deobfuscate.Pipeline, progressHub *progress.Hub, logger *slog.Logger) (*http.Server, error) {
	var jwtManager *ornshare.JWTManager
	if cfg.Security.JWTSecret != "" {
		var err error
		jwtManager, err = ornshare.NewJWTManager(&cfg.Security)
		if err != nil {
			return nil, fmt.Errorf("build jwt manager: %w", err)
		}
	}

	enforcer, err := ornshare.NewEnforcer(ornshare.NewEnforcerConfig(cfg.Security.Casbin))
	if err != nil {
		return nil, fmt.Errorf("build casbin enforcer: %w", err)
	}

	ornRouter, err := ornshare.NewRouter(&cfg.Security, db, pipeline, jwtManager, enforcer, logger)
	if err != nil {
		return nil, fmt.Errorf("build ornshare router: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", ornRouter)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/progress", progress.Handler(progressHub))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}, nil
}
