// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-dlm.
//
// go-dlm is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-dlm/pkg/adapters"
	"github.com/jeremyhahn/go-dlm/pkg/catalog"
	"github.com/jeremyhahn/go-dlm/pkg/config"
	"github.com/jeremyhahn/go-dlm/pkg/ingest"
	"github.com/jeremyhahn/go-dlm/pkg/metadata"
	"github.com/jeremyhahn/go-dlm/pkg/migration"
	"github.com/jeremyhahn/go-dlm/pkg/rclone"
	"github.com/jeremyhahn/go-dlm/pkg/request"
	"github.com/jeremyhahn/go-dlm/pkg/server/middleware"
	restserver "github.com/jeremyhahn/go-dlm/pkg/server/rest"
	"github.com/jeremyhahn/go-dlm/pkg/storage"
	"github.com/jeremyhahn/go-dlm/pkg/sweeper"
	"github.com/jeremyhahn/go-dlm/pkg/version"
)

func main() {
	cfgPath := flag.String("config", "", "Path to the configuration file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dlm-server %s (%s, built %s)\n", version.Version, version.Commit, version.BuildDate)
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := adapters.NewLoggerWithLevel(logLevel(cfg.Logging.Level))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := catalog.NewStore(cfg.Database.DSN(), tableNames(cfg.Database.Tables))
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate catalog schema: %v", err)
	}

	agent := rclone.NewClient(cfg.Agent.URL,
		rclone.WithHTTPClient(&http.Client{Timeout: cfg.Agent.Timeout}),
		rclone.WithLogger(logger),
	)

	var sink metadata.Sink = metadata.NoOpSink{}
	if cfg.Metadata.URL != "" {
		sink = metadata.NewHTTPSink(cfg.Metadata.URL, logger)
	}

	ingestService := ingest.NewService(store, agent, sink, logger, cfg.Ingest.UIDExpiration)
	registry := storage.NewRegistry(store, agent, logger)
	controller := migration.NewController(store, agent, ingestService, logger)
	requestService := request.NewService(store, logger)
	swp := sweeper.New(store, agent, logger, cfg.Agent.SweepInterval)
	reconciler := migration.NewReconciler(store, agent, logger, cfg.Agent.ReconcileInterval)

	go reconciler.Run(ctx)
	go swp.Run(ctx)
	go drainPhaseChanges(ctx, controller, cfg.Agent.ReconcileInterval, logger)

	handler := restserver.NewHandler(ingestService, controller, registry, requestService, swp, logger)

	serverConfig := restserver.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = cfg.Server.ReadTimeout
	serverConfig.WriteTimeout = cfg.Server.WriteTimeout
	serverConfig.RateLimitConfig = &middleware.RateLimitConfig{
		RequestsPerSecond: cfg.Server.RateLimitRPS,
		Burst:             cfg.Server.RateLimitBurst,
	}
	serverConfig.Logger = logger
	serverConfig.Authenticator = authenticator(cfg.Server.Auth)

	server, err := restserver.NewServer(handler, serverConfig)
	if err != nil {
		log.Fatalf("Failed to create REST server: %v", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Printf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// drainPhaseChanges services the phase-change queue on the reconcile cadence.
func drainPhaseChanges(ctx context.Context, controller *migration.Controller, interval time.Duration, logger adapters.Logger) {
	if interval <= 0 {
		interval = migration.DefaultReconcileInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := controller.DrainPhaseChanges(ctx); err != nil {
				logger.Warn(ctx, "Phase change drain failed",
					adapters.Field{Key: "error", Value: err.Error()},
				)
			}
		}
	}
}

func authenticator(mode string) adapters.Authenticator {
	if mode == "bearer" {
		return adapters.NewBearerAuthenticator()
	}
	return adapters.NewNoOpAuthenticator()
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func tableNames(overrides config.TableOverrides) catalog.TableNames {
	tables := catalog.DefaultTableNames()
	if overrides.Locations != "" {
		tables.Locations = overrides.Locations
	}
	if overrides.Storages != "" {
		tables.Storages = overrides.Storages
	}
	if overrides.StorageConfigs != "" {
		tables.StorageConfigs = overrides.StorageConfigs
	}
	if overrides.DataItems != "" {
		tables.DataItems = overrides.DataItems
	}
	if overrides.Migrations != "" {
		tables.Migrations = overrides.Migrations
	}
	if overrides.PhaseChangeRequests != "" {
		tables.PhaseChangeRequests = overrides.PhaseChangeRequests
	}
	if overrides.Provenance != "" {
		tables.Provenance = overrides.Provenance
	}
	return tables
}
