package channel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/photon/core/channel"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range []string{
			"PHOTON_CHANNEL_BROKER", "PHOTON_REDIS_URL", "REDIS_URL", "PHOTON_REDIS_PREFIX",
			"PHOTON_CHANNEL_HTTP_URL", "PHOTON_CHANNEL_SSE_URL", "PHOTON_DAEMON_ENABLED",
		} {
			t.Setenv(key, "")
		}

		cfg, err := channel.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, channel.DefaultRedisPrefix, cfg.Prefix())
		assert.True(t, cfg.DaemonAllowed())
		assert.Empty(t, cfg.RedisConnectionURL())
		assert.Empty(t, cfg.StreamURL())
	})

	t.Run("reads environment", func(t *testing.T) {
		t.Setenv("PHOTON_CHANNEL_BROKER", "redis")
		t.Setenv("PHOTON_REDIS_URL", "")
		t.Setenv("REDIS_URL", "redis://fallback:6379/0")
		t.Setenv("PHOTON_REDIS_PREFIX", "kanban:")
		t.Setenv("PHOTON_CHANNEL_HTTP_URL", "http://hooks.local/publish")
		t.Setenv("PHOTON_CHANNEL_SSE_URL", "")
		t.Setenv("PHOTON_CHANNEL_AUTH_TOKEN", "secret")
		t.Setenv("PHOTON_DAEMON_ENABLED", "false")
		t.Setenv("PHOTON_NAME", "kanban")

		cfg, err := channel.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "redis", cfg.Broker)
		assert.Equal(t, "redis://fallback:6379/0", cfg.RedisConnectionURL())
		assert.Equal(t, "kanban:", cfg.Prefix())
		assert.Equal(t, "http://hooks.local/publish", cfg.StreamURL())
		assert.Equal(t, "secret", cfg.AuthToken)
		assert.False(t, cfg.DaemonAllowed())
		assert.Equal(t, "kanban", cfg.Source())
	})
}

func TestConfig_Helpers(t *testing.T) {
	t.Parallel()

	cfg := channel.Config{
		RedisURL:         "redis://primary",
		RedisFallbackURL: "redis://fallback",
		HTTPURL:          "http://publish",
		SSEURL:           "http://stream",
		DaemonEnabled:    "FALSE",
	}
	assert.Equal(t, "redis://primary", cfg.RedisConnectionURL())
	assert.Equal(t, "http://stream", cfg.StreamURL())
	assert.False(t, cfg.DaemonAllowed())

	cfg.DaemonEnabled = "0"
	assert.True(t, cfg.DaemonAllowed(), "only the literal false disables the daemon")

	assert.NotEmpty(t, channel.Config{}.Source())
}
