package daemon

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Default request timeouts.
const (
	DefaultPublishTimeout   = 5 * time.Second
	DefaultSubscribeTimeout = 5 * time.Second
)

// Option configures a Broker.
type Option func(*Broker)

// WithSocketDir sets the directory holding daemon sockets. Ignored on Windows.
func WithSocketDir(dir string) Option {
	return func(b *Broker) {
		b.socketDir = dir
	}
}

// WithAddress sets the full socket path (or pipe name), bypassing the
// directory and name lookup.
func WithAddress(addr string) Option {
	return func(b *Broker) {
		b.address = addr
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

// WithPublishTimeout bounds the wait for a publish acknowledgement.
func WithPublishTimeout(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.publishTimeout = d
		}
	}
}

// WithSubscribeTimeout bounds the wait for a subscribe confirmation.
func WithSubscribeTimeout(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.subscribeTimeout = d
		}
	}
}

// WithDebug enables logging of dropped malformed frames.
func WithDebug(debug bool) Option {
	return func(b *Broker) {
		b.debug = debug
	}
}
