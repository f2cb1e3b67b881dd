package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "session_id", cfg.SessionCookieName)
	assert.Equal(t, "csrf_token", cfg.CSRFCookieName)
	assert.Equal(t, 120*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 120, cfg.RateLimitPerWindow)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 60*time.Minute, cfg.VerifyTokenTTL)
	assert.Equal(t, 30*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.MFATokenTTL)
	assert.Equal(t, "PolyLab", cfg.TOTPIssuer)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.False(t, cfg.IsProduction())
}

func TestLoadDotenvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(
		"APP_ENV=production\nSESSION_TTL=90m\nTOTP_ISSUER=OtherLab\n",
	), 0o600))

	cfg, err := Load(envPath)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 90*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "OtherLab", cfg.TOTPIssuer)
	assert.True(t, cfg.IsProduction())
}

func TestLoadExplicitZeroSticks(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	t.Setenv("SWEEP_INTERVAL", "0s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Zero(t, cfg.RateLimitPerWindow)
	assert.Zero(t, cfg.SweepInterval)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MAX_LOGIN_ATTEMPTS", "3")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxLoginAttempts)
}
