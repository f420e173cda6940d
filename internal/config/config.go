// Package config defines the top-level configuration for the greenbond
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by GREENBOND_* environment
// variables.
type Config struct {
	Ledger   LedgerConfig   `toml:"ledger"`
	Assets   AssetsConfig   `toml:"assets"`
	Issuer   IssuerConfig   `toml:"issuer"`
	Engine   EngineConfig   `toml:"engine"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// LedgerConfig holds the ledger network endpoints and chain parameters.
type LedgerConfig struct {
	Endpoint  string `toml:"endpoint"`
	FaucetURL string `toml:"faucet_url"`
	NetworkID uint32 `toml:"network_id"`
	BookLimit int    `toml:"book_limit"`
}

// AssetsConfig holds the issuer-scoped asset codes this deployment trades.
type AssetsConfig struct {
	PFMUCurrency       string  `toml:"pfmu_currency"`
	PFMUIssuer         string  `toml:"pfmu_issuer"`
	DerivativeCurrency string  `toml:"derivative_currency"`
	USDIssuer          string  `toml:"usd_issuer"`
	ConversionRate     float64 `toml:"conversion_rate"`
}

// IssuerConfig holds the issuer and staking account credentials.
type IssuerConfig struct {
	Address           string `toml:"address"`
	Seed              string `toml:"seed"`
	EncryptedSeedPath string `toml:"encrypted_seed_path"`
	SeedPassword      string `toml:"seed_password"`
	StakingAddress    string `toml:"staking_address"`
}

// EngineConfig holds the settlement engine's tunables.
type EngineConfig struct {
	// ExpiryWindow bounds, in ledgers, how long the network will consider a
	// submitted transaction for inclusion.
	ExpiryWindow uint32 `toml:"expiry_window"`
	// MaxAttempts bounds submission retries on stale-sequence conflicts.
	MaxAttempts int `toml:"max_attempts"`
	// SafetyFloor is the minimum spendable native balance, in whole units,
	// below which the reserve guard triggers faucet funding.
	SafetyFloor float64 `toml:"safety_floor"`
	// SettleTolerance is the rounding tolerance applied when comparing a
	// settlement balance diff against the desired amount.
	SettleTolerance float64 `toml:"settle_tolerance"`
	// TrustLineLimit is the limit stamped on TrustSet intents.
	TrustLineLimit float64 `toml:"trust_line_limit"`
	// MaturityMonths is added to the creation date to derive a new bond's
	// maturity date.
	MaturityMonths int `toml:"maturity_months"`
	// LockTTLSeconds bounds how long a per-bond or per-account lock may be
	// held before it expires on its own.
	LockTTLSeconds int `toml:"lock_ttl_seconds"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// BookTTLSeconds is how long formatted order-book reads stay cached.
	BookTTLSeconds int `toml:"book_ttl_seconds"`
}

// S3Config holds S3-compatible object storage parameters for the submission
// archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit caps requests per client IP per minute; 0 disables limiting.
	RateLimit int `toml:"rate_limit"`
}

// NotifyConfig holds notification webhook parameters.
type NotifyConfig struct {
	WebhookURL string   `toml:"webhook_url"`
	Events     []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Ledger: LedgerConfig{
			Endpoint:  "wss://s.altnet.rippletest.net:51233",
			FaucetURL: "https://faucet.altnet.rippletest.net/accounts",
			NetworkID: 21337,
			BookLimit: 10,
		},
		Assets: AssetsConfig{
			PFMUCurrency:       "PFMU-BRA-03182024",
			DerivativeCurrency: "d_PFMU",
			ConversionRate:     10.5,
		},
		Engine: EngineConfig{
			ExpiryWindow:    500,
			MaxAttempts:     3,
			SafetyFloor:     10,
			SettleTolerance: 0.0001,
			TrustLineLimit:  1_000_000,
			MaturityMonths:  6,
			LockTTLSeconds:  30,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "greenbond",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			DB:             0,
			PoolSize:       20,
			MaxRetries:     3,
			BookTTLSeconds: 15,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "greenbond-archive",
			ForcePathStyle: true,
			RetentionDays:  90,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   300,
		},
		Notify: NotifyConfig{
			Events: []string{"settlement_failed", "capacity_exceeded", "stake_recorded"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Ledger.Endpoint == "" {
		errs = append(errs, "ledger: endpoint must not be empty")
	}
	if c.Ledger.BookLimit < 1 {
		errs = append(errs, "ledger: book_limit must be >= 1")
	}

	if c.Assets.PFMUCurrency == "" {
		errs = append(errs, "assets: pfmu_currency must not be empty")
	}
	if c.Assets.PFMUIssuer == "" {
		errs = append(errs, "assets: pfmu_issuer must not be empty")
	}
	if c.Assets.ConversionRate <= 0 {
		errs = append(errs, "assets: conversion_rate must be > 0")
	}

	if c.Issuer.Seed == "" && c.Issuer.EncryptedSeedPath == "" {
		errs = append(errs, "issuer: either seed or encrypted_seed_path must be set")
	}
	if c.Issuer.EncryptedSeedPath != "" && c.Issuer.SeedPassword == "" {
		errs = append(errs, "issuer: seed_password is required when encrypted_seed_path is set")
	}
	if c.Issuer.StakingAddress == "" {
		errs = append(errs, "issuer: staking_address must not be empty")
	}

	if c.Engine.ExpiryWindow == 0 {
		errs = append(errs, "engine: expiry_window must be > 0")
	}
	if c.Engine.MaxAttempts < 1 {
		errs = append(errs, "engine: max_attempts must be >= 1")
	}
	if c.Engine.SettleTolerance <= 0 {
		errs = append(errs, "engine: settle_tolerance must be > 0")
	}
	if c.Engine.LockTTLSeconds < 1 {
		errs = append(errs, "engine: lock_ttl_seconds must be >= 1")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
