package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/hub_test")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 5*time.Minute, cfg.PinTTL())
	assert.Equal(t, time.Minute, cfg.SweepInterval())
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval())
	assert.Equal(t, 10, cfg.PairingRatePerMin)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DatabaseURL:   "postgres://localhost/hub",
			RedisURL:      "redis://localhost:6379",
			PinTTLSeconds: 300,
			SweepSeconds:  60,
		}
	}

	t.Run("accepts bcrypt admin hash", func(t *testing.T) {
		cfg := base()
		cfg.AdminPasswordHash = "$2b$12$abcdefghijklmnopqrstuv"
		assert.NoError(t, cfg.Validate(false))
	})

	t.Run("rejects plaintext admin password", func(t *testing.T) {
		cfg := base()
		cfg.AdminPasswordHash = "hunter2"
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects non-positive pin ttl", func(t *testing.T) {
		cfg := base()
		cfg.PinTTLSeconds = 0
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects weak session secret in production", func(t *testing.T) {
		cfg := base()
		cfg.AdminSessionSecret = "secret"
		assert.Error(t, cfg.Validate(true))
	})

	t.Run("accepts strong session secret in production", func(t *testing.T) {
		cfg := base()
		cfg.AdminSessionSecret = "0123456789abcdef0123456789abcdef"
		assert.NoError(t, cfg.Validate(true))
	})
}
