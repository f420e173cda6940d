package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
log_level = "debug"

[ledger]
endpoint = "wss://example.test:51233"

[issuer]
seed = "sEdTestSeedValue"
staking_address = "rStakingAccount"

[assets]
pfmu_issuer = "rPFMUIssuer"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "wss://example.test:51233", cfg.Ledger.Endpoint)

	// Untouched sections keep their defaults.
	assert.Equal(t, uint32(500), cfg.Engine.ExpiryWindow)
	assert.Equal(t, 3, cfg.Engine.MaxAttempts)
	assert.Equal(t, 10.5, cfg.Assets.ConversionRate)
	assert.Equal(t, 5432, cfg.Postgres.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
[issuer]
seed = "sEdTestSeedValue"
staking_address = "rStakingAccount"

[assets]
pfmu_issuer = "rPFMUIssuer"
`)

	t.Setenv("GREENBOND_LEDGER_ENDPOINT", "wss://override.test:443")
	t.Setenv("GREENBOND_ENGINE_MAX_ATTEMPTS", "5")
	t.Setenv("GREENBOND_ENGINE_EXPIRY_WINDOW", "200")
	t.Setenv("GREENBOND_REDIS_TLS_ENABLED", "true")
	t.Setenv("GREENBOND_SERVER_CORS_ORIGINS", "https://a.test, https://b.test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://override.test:443", cfg.Ledger.Endpoint)
	assert.Equal(t, 5, cfg.Engine.MaxAttempts)
	assert.Equal(t, uint32(200), cfg.Engine.ExpiryWindow)
	assert.True(t, cfg.Redis.TLSEnabled)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.Server.CORSOrigins)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Ledger.Endpoint = ""
	cfg.Engine.MaxAttempts = 0
	cfg.Assets.ConversionRate = 0
	// Issuer credentials deliberately absent.

	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "log_level")
	assert.Contains(t, msg, "ledger: endpoint")
	assert.Contains(t, msg, "max_attempts")
	assert.Contains(t, msg, "conversion_rate")
	assert.Contains(t, msg, "issuer: either seed or encrypted_seed_path")
	assert.GreaterOrEqual(t, strings.Count(msg, "\n  - "), 4)
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Assets.PFMUIssuer = "rPFMUIssuer"
	cfg.Issuer.Seed = "sEdTestSeedValue"
	cfg.Issuer.StakingAddress = "rStakingAccount"

	assert.NoError(t, cfg.Validate())
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Issuer.Seed = "sEdSuperSecret"
	cfg.Issuer.SeedPassword = "hunter1"
	cfg.Postgres.Password = "hunter2"
	cfg.Redis.Password = "redispw"
	cfg.S3.SecretKey = "minio-secret"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Issuer.Seed)
	assert.Equal(t, "***", red.Issuer.SeedPassword)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.SecretKey)

	// Original untouched.
	assert.Equal(t, "sEdSuperSecret", cfg.Issuer.Seed)
}
