package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Anthropic.APIKey = "sk-test"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "claude-haiku-4-5", cfg.Anthropic.Model)
	assert.Equal(t, 1000, cfg.Anthropic.MaxTokens)
	assert.Equal(t, time.Hour, cfg.Session.IdleTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Session.SweepInterval)
	assert.Equal(t, 10*time.Second, cfg.Weather.FetchTimeout)
	assert.Equal(t, 20*time.Minute, cfg.Weather.CacheTTL)
}

func TestValidate(t *testing.T) {
	t.Run("should accept a valid config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("should require an api key", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.ErrorContains(t, cfg.Validate(), "api key")
	})

	t.Run("should reject an invalid port", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Port = 70000
		assert.ErrorContains(t, cfg.Validate(), "port")
	})

	t.Run("should reject a non-positive idle timeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Session.IdleTimeout = 0
		assert.ErrorContains(t, cfg.Validate(), "idle_timeout")
	})

	t.Run("should reject a missing weather endpoint", func(t *testing.T) {
		cfg := validConfig()
		cfg.Weather.Endpoint = ""
		assert.ErrorContains(t, cfg.Validate(), "weather endpoint")
	})
}

func TestLoader(t *testing.T) {
	t.Run("should fall back to defaults without a config file", func(t *testing.T) {
		cfg, err := NewLoader("/nonexistent/humelink.json").Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "claude-haiku-4-5", cfg.Anthropic.Model)
	})

	t.Run("should apply environment overrides", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-from-env")
		t.Setenv("PORT", "8080")

		cfg, err := NewLoader("/nonexistent/humelink.json").Load()
		require.NoError(t, err)

		assert.Equal(t, "sk-from-env", cfg.Anthropic.APIKey)
		assert.Equal(t, 8080, cfg.Server.Port)
	})
}
