package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/security"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"DATABASE_URL": "postgres://localhost/stock",
		"JWT_SECRET":   "0123456789abcdef",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Empty(t, cfg.Policies)
	assert.True(t, cfg.Development())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"DATABASE_URL":          "postgres://db/stock",
		"JWT_SECRET":            "0123456789abcdef",
		"APP_ENV":               "production",
		"REDIS_DB":              "3",
		"RATE_LIMIT_RPS":        "2.5",
		"RATE_LIMIT_BURST":      "10",
		"CORS_ORIGINS":          "https://a.example, https://b.example,",
		"SWEEP_INTERVAL":        "30s",
		"STOCK_POLICY_TRANSFER": `"stock_manager" in roles`,
	}))
	require.NoError(t, err)

	assert.False(t, cfg.Development())
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, map[security.Action]string{security.ActionTransfer: `"stock_manager" in roles`}, cfg.Policies)
}

func TestFromEnv_Errors(t *testing.T) {
	_, err := FromEnv(env(map[string]string{
		"REDIS_DB":         "zero",
		"CACHE_TTL":        "5 minutes",
		"RATE_LIMIT_BURST": "0",
	}))
	require.Error(t, err)
	for _, want := range []string{"DATABASE_URL is required", "JWT_SECRET is required", "REDIS_DB", "CACHE_TTL", "RATE_LIMIT_BURST"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("STOCK_TEST_ONLY_KEY=from-file\n"), 0o600))
	t.Setenv("DATABASE_URL", "postgres://localhost/stock")
	t.Setenv("JWT_SECRET", "0123456789abcdef")

	_, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", os.Getenv("STOCK_TEST_ONLY_KEY"))
	os.Unsetenv("STOCK_TEST_ONLY_KEY")

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestPolicyKey(t *testing.T) {
	assert.Equal(t, "STOCK_POLICY_MANAGE_LOCATIONS", PolicyKey(security.ActionManageLocations))
}
