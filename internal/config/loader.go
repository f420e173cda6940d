package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies GREENBOND_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known GREENBOND_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Ledger ──
	setStr(&cfg.Ledger.Endpoint, "GREENBOND_LEDGER_ENDPOINT")
	setStr(&cfg.Ledger.FaucetURL, "GREENBOND_LEDGER_FAUCET_URL")
	setUint32(&cfg.Ledger.NetworkID, "GREENBOND_LEDGER_NETWORK_ID")
	setInt(&cfg.Ledger.BookLimit, "GREENBOND_LEDGER_BOOK_LIMIT")

	// ── Assets ──
	setStr(&cfg.Assets.PFMUCurrency, "GREENBOND_ASSETS_PFMU_CURRENCY")
	setStr(&cfg.Assets.PFMUIssuer, "GREENBOND_ASSETS_PFMU_ISSUER")
	setStr(&cfg.Assets.DerivativeCurrency, "GREENBOND_ASSETS_DERIVATIVE_CURRENCY")
	setStr(&cfg.Assets.USDIssuer, "GREENBOND_ASSETS_USD_ISSUER")
	setFloat64(&cfg.Assets.ConversionRate, "GREENBOND_ASSETS_CONVERSION_RATE")

	// ── Issuer ──
	setStr(&cfg.Issuer.Address, "GREENBOND_ISSUER_ADDRESS")
	setStr(&cfg.Issuer.Seed, "GREENBOND_ISSUER_SEED")
	setStr(&cfg.Issuer.EncryptedSeedPath, "GREENBOND_ISSUER_ENCRYPTED_SEED_PATH")
	setStr(&cfg.Issuer.SeedPassword, "GREENBOND_ISSUER_SEED_PASSWORD")
	setStr(&cfg.Issuer.StakingAddress, "GREENBOND_ISSUER_STAKING_ADDRESS")

	// ── Engine ──
	setUint32(&cfg.Engine.ExpiryWindow, "GREENBOND_ENGINE_EXPIRY_WINDOW")
	setInt(&cfg.Engine.MaxAttempts, "GREENBOND_ENGINE_MAX_ATTEMPTS")
	setFloat64(&cfg.Engine.SafetyFloor, "GREENBOND_ENGINE_SAFETY_FLOOR")
	setFloat64(&cfg.Engine.SettleTolerance, "GREENBOND_ENGINE_SETTLE_TOLERANCE")
	setFloat64(&cfg.Engine.TrustLineLimit, "GREENBOND_ENGINE_TRUST_LINE_LIMIT")
	setInt(&cfg.Engine.MaturityMonths, "GREENBOND_ENGINE_MATURITY_MONTHS")
	setInt(&cfg.Engine.LockTTLSeconds, "GREENBOND_ENGINE_LOCK_TTL_SECONDS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "GREENBOND_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "GREENBOND_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "GREENBOND_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "GREENBOND_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "GREENBOND_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "GREENBOND_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "GREENBOND_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "GREENBOND_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "GREENBOND_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "GREENBOND_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "GREENBOND_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "GREENBOND_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "GREENBOND_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "GREENBOND_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "GREENBOND_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "GREENBOND_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.BookTTLSeconds, "GREENBOND_REDIS_BOOK_TTL_SECONDS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "GREENBOND_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "GREENBOND_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "GREENBOND_S3_REGION")
	setStr(&cfg.S3.Bucket, "GREENBOND_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "GREENBOND_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "GREENBOND_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "GREENBOND_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "GREENBOND_S3_RETENTION_DAYS")

	// ── Server ──
	setInt(&cfg.Server.Port, "GREENBOND_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "GREENBOND_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "GREENBOND_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "GREENBOND_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.WebhookURL, "GREENBOND_NOTIFY_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "GREENBOND_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "GREENBOND_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint32(dst *uint32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
