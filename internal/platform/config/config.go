// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. Per-tenant settings
live in the YAML registry (see internal/tenant), not here.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// # Backend Selection

const (
	// BackendPostgres selects the pgx-backed store.
	BackendPostgres = "postgres"
	// BackendSQLite selects the mattn/go-sqlite3 backed store.
	BackendSQLite = "sqlite"
)

// # Configuration Schema

// Config holds all runtime configuration for the Torii SCIM server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"3000"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// BaseURL is the externally visible scheme://host[:port] used to
	// absolutize meta.location values. When empty, locations are rendered
	// as absolute paths without a host.
	BaseURL string `env:"BASE_URL"`

	// Backend selects the storage engine: "postgres" or "sqlite".
	Backend string `env:"BACKEND" envDefault:"postgres"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL"`

	// SQLitePath is the database file path for the sqlite backend.
	SQLitePath string `env:"SQLITE_PATH" envDefault:"./data/torii.db"`

	// MigrationPath is the filesystem path to the SQL migrations directory
	// holding the shared (non-tenant) base schema.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// TenantRegistryPath is the YAML file describing all tenants.
	TenantRegistryPath string `env:"TENANT_REGISTRY_PATH" envDefault:"./config/tenants.yaml"`

	// Key-Value Cache (Redis). Optional: when empty, the version cache
	// is disabled and If-None-Match falls through to the database.
	RedisURL string `env:"REDIS_URL"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	// The postgres backend cannot start without a DSN.
	if cfg.Backend == BackendPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required when BACKEND=postgres")
	}

	if cfg.Backend != BackendPostgres && cfg.Backend != BackendSQLite {
		return nil, fmt.Errorf("config: unknown BACKEND %q (expected %q or %q)", cfg.Backend, BackendPostgres, BackendSQLite)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
