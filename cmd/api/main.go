// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

// Command api is the entry point for the Torii SCIM server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Load the tenant registry.
//  4. Connect to the storage backend (PostgreSQL or SQLite).
//  5. Connect to Redis (optional version cache).
//  6. Provision per-tenant tables (idempotent).
//  7. Wire HTTP handlers.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Embedded timezone database so User.timezone validation works on
	// minimal container images without /usr/share/zoneinfo.
	_ "time/tzdata"

	"github.com/hiromu-dev/torii/internal/api"
	"github.com/hiromu-dev/torii/internal/discovery"
	"github.com/hiromu-dev/torii/internal/platform/config"
	"github.com/hiromu-dev/torii/internal/platform/constants"
	"github.com/hiromu-dev/torii/internal/platform/migration"
	pgstore "github.com/hiromu-dev/torii/internal/platform/postgres"
	redisstore "github.com/hiromu-dev/torii/internal/platform/redis"
	"github.com/hiromu-dev/torii/internal/platform/sec"
	sqlitestore "github.com/hiromu-dev/torii/internal/platform/sqlite"
	"github.com/hiromu-dev/torii/internal/resource"
	"github.com/hiromu-dev/torii/internal/storage"
	"github.com/hiromu-dev/torii/internal/tenant"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "torii"))
	slog.SetDefault(log)

	log.Info("[Torii] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "torii"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("backend", cfg.Backend),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Tenant Registry ────────────────────────────────────────────────
	registry, err := tenant.Load(cfg.TenantRegistryPath)
	must(log, err, "load tenant registry")
	log.Info("tenant_registry_loaded", slog.Int("tenants", len(registry.All())))

	// ── 4. Storage Backend ────────────────────────────────────────────────
	var store storage.Store
	var checkDatabase func() error

	switch cfg.Backend {
	case config.BackendPostgres:
		pool, perr := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
		must(log, perr, "connect to postgres")

		// Base (non-tenant) schema lives in versioned SQL migrations. The
		// directory is optional; tenant provisioning below covers the rest.
		if migration.Available(cfg.MigrationPath) {
			must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")
		} else {
			log.Info("migrations_skipped", slog.String("path", cfg.MigrationPath))
		}

		store = storage.NewPostgresStore(pool)
		checkDatabase = func() error {
			return pgstore.Ping(context.Background(), pool)
		}

	case config.BackendSQLite:
		db, serr := sqlitestore.Open(startupCtx, cfg.SQLitePath, log)
		must(log, serr, "open sqlite database")

		store = storage.NewSQLiteStore(db)
		checkDatabase = func() error {
			return sqlitestore.Ping(context.Background(), db)
		}
	}

	defer func() {
		log.Info("closing storage backend")
		store.Close()
	}()

	// ── 5. Redis (optional) ───────────────────────────────────────────────
	// When REDIS_URL is unset the version cache stays nil and conditional
	// requests fall through to the database.
	var versions *redisstore.VersionCache
	var checkCache func() error

	if cfg.RedisURL != "" {
		rdb, rerr := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, rerr, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()

		versions = redisstore.NewVersionCache(rdb)
		checkCache = func() error {
			return redisstore.Ping(context.Background(), rdb)
		}
	}

	// ── 6. Tenant Provisioning ────────────────────────────────────────────
	// Create the per-tenant table sets. Safe to re-run on every boot.
	for _, ten := range registry.All() {
		must(log, store.ProvisionTenant(startupCtx, ten.ID), "provision tenant "+ten.Name)
	}
	log.Info("tenants_provisioned", slog.Int("count", len(registry.All())))

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: checkDatabase,
		CheckCache:    checkCache,
	}, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	passwords := sec.NewPasswordManager()
	resourceService := resource.NewService(store, passwords, versions, log, cfg.BaseURL)
	resourceHandler := resource.NewHandler(resourceService)
	discoveryHandler := discovery.NewHandler(cfg.BaseURL)

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Resource:  resourceHandler,
		Discovery: discoveryHandler,
	}

	server := api.NewServer(context.Background(), cfg, log, registry, handlers)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
