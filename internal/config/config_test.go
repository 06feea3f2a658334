package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("SEED_ADMIN_PASSWORD", "")

	cfg := Load()
	assert.Empty(t, cfg.AuthSecret)
	assert.Empty(t, cfg.SeedAdminPassword)
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")
	t.Setenv("SEED_DEMO_PRODUCTS", "false")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TIMEZONE", "Not/AZone")
	t.Setenv("LOGIN_MAX_ATTEMPTS", "3")
	t.Setenv("LOGIN_WINDOW_SECONDS", "zero")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 480, cfg.AccessTokenTTLMinutes)
	assert.False(t, cfg.SeedDemoProducts)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, 3, cfg.LoginMaxAttempts)
	assert.Equal(t, time.Minute, cfg.LoginWindow())
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REDIS_KEY_PREFIX=from-dotenv\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("REDIS_KEY_PREFIX", "")
	require.NoError(t, os.Unsetenv("REDIS_KEY_PREFIX"))

	cfg := Load()
	assert.Equal(t, "from-dotenv", cfg.RedisKeyPrefix)
	require.NoError(t, os.Unsetenv("REDIS_KEY_PREFIX"))
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	logger, err := NewLogger(Config{LogLevel: "warn", LogFormat: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}
