package redis

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	redisdb "github.com/dmitrymomot/photon/integration/database/redis"
)

const (
	// DefaultPublishTimeout bounds a single PUBLISH round trip.
	DefaultPublishTimeout = 5 * time.Second

	// DefaultSubscribeTimeout bounds the wait for a subscribe acknowledgement.
	DefaultSubscribeTimeout = 5 * time.Second
)

// Option configures a Broker.
type Option func(*Broker)

// WithURL sets the Redis connection URL, e.g. "redis://localhost:6379/0".
func WithURL(url string) Option {
	return func(b *Broker) {
		b.connect.ConnectionURL = url
	}
}

// WithPrefix sets the namespace prepended to every channel name.
func WithPrefix(prefix string) Option {
	return func(b *Broker) {
		b.prefix = prefix
	}
}

// WithSource sets the source stamped on messages published without one.
func WithSource(source string) Option {
	return func(b *Broker) {
		if source != "" {
			b.source = source
		}
	}
}

// WithLogger sets the broker logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMeterProvider sets the meter provider for broker metrics.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(b *Broker) {
		b.provider = provider
	}
}

// WithPublishTimeout bounds each publish call.
func WithPublishTimeout(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.publishTimeout = d
		}
	}
}

// WithSubscribeTimeout bounds how long Subscribe waits for Redis to
// acknowledge a new channel or pattern.
func WithSubscribeTimeout(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.subscribeTimeout = d
		}
	}
}

// WithConnectConfig sets the retry policy used when opening connections.
// The connection URL is kept if cfg.ConnectionURL is empty.
func WithConnectConfig(cfg redisdb.Config) Option {
	return func(b *Broker) {
		if cfg.ConnectionURL == "" {
			cfg.ConnectionURL = b.connect.ConnectionURL
		}
		b.connect = cfg
	}
}

// WithDebug enables logging of dropped malformed payloads.
func WithDebug(debug bool) Option {
	return func(b *Broker) {
		b.debug = debug
	}
}
