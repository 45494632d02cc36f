package channel

import (
	"strings"

	"github.com/dmitrymomot/photon/core/config"
)

// DefaultRedisPrefix namespaces every logical channel on a shared Redis instance.
const DefaultRedisPrefix = "photon:channel:"

// Config holds the environment settings that drive transport selection.
type Config struct {
	Broker string `env:"PHOTON_CHANNEL_BROKER"` // Explicit transport type override

	RedisURL         string `env:"PHOTON_REDIS_URL"`
	RedisFallbackURL string `env:"REDIS_URL"`
	RedisPrefix      string `env:"PHOTON_REDIS_PREFIX" envDefault:"photon:channel:"`

	HTTPURL   string `env:"PHOTON_CHANNEL_HTTP_URL"`
	SSEURL    string `env:"PHOTON_CHANNEL_SSE_URL"`
	AuthToken string `env:"PHOTON_CHANNEL_AUTH_TOKEN"`

	DaemonEnabled   string `env:"PHOTON_DAEMON_ENABLED" envDefault:"true"`
	DaemonSocketDir string `env:"PHOTON_DAEMON_SOCKET_DIR"`
	Name            string `env:"PHOTON_NAME"`

	Debug bool `env:"PHOTON_CHANNEL_DEBUG"`
}

// LoadConfig reads Config from the current environment (and .env, if present).
// Unlike config.Load the result is not cached, so re-running detection sees
// changes to the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RedisConnectionURL returns PHOTON_REDIS_URL, falling back to REDIS_URL.
func (c Config) RedisConnectionURL() string {
	if u := strings.TrimSpace(c.RedisURL); u != "" {
		return u
	}
	return strings.TrimSpace(c.RedisFallbackURL)
}

// StreamURL returns the SSE endpoint, defaulting to the publish URL.
func (c Config) StreamURL() string {
	if u := strings.TrimSpace(c.SSEURL); u != "" {
		return u
	}
	return strings.TrimSpace(c.HTTPURL)
}

// DaemonAllowed reports whether daemon auto-detection is enabled. Only the
// literal "false" disables it.
func (c Config) DaemonAllowed() bool {
	return !strings.EqualFold(strings.TrimSpace(c.DaemonEnabled), "false")
}

// Prefix returns the Redis channel prefix, defaulting to DefaultRedisPrefix.
func (c Config) Prefix() string {
	if c.RedisPrefix == "" {
		return DefaultRedisPrefix
	}
	return c.RedisPrefix
}

// Source returns the configured process name or the executable base name.
func (c Config) Source() string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	return DefaultSource()
}
