package httpsse

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Defaults for publish requests and stream reconnects.
const (
	DefaultPublishTimeout = 30 * time.Second
	DefaultReconnectDelay = 5 * time.Second
	DefaultMaxEventSize   = 1 << 20
)

// Option configures a Broker.
type Option func(*Broker)

// WithURL sets the webhook URL messages are POSTed to.
func WithURL(url string) Option {
	return func(b *Broker) {
		b.publishURL = url
	}
}

// WithStreamURL sets the Server-Sent Events endpoint. Defaults to the publish URL.
func WithStreamURL(url string) Option {
	return func(b *Broker) {
		b.streamURL = url
	}
}

// WithAuthToken sends "Authorization: Bearer <token>" on every request.
func WithAuthToken(token string) Option {
	return func(b *Broker) {
		b.token = token
	}
}

// WithHTTPClient sets the client used for publish and stream requests. The
// client must not have a Timeout, since streams are long-lived; publish calls
// are bounded by the publish timeout instead.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Broker) {
		if client != nil {
			b.client = client
		}
	}
}

// WithPublishTimeout bounds each publish request.
func WithPublishTimeout(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.publishTimeout = d
		}
	}
}

// WithReconnectDelay sets the pause between a stream ending and the next attempt.
func WithReconnectDelay(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.reconnectDelay = d
		}
	}
}

// WithMalformedLimit drops and re-opens a stream after n consecutive events
// that cannot be decoded. Zero, the default, never re-opens for that reason.
func WithMalformedLimit(n int) Option {
	return func(b *Broker) {
		if n >= 0 {
			b.malformedLimit = n
		}
	}
}

// WithMaxEventSize limits the size of a single stream event in bytes.
func WithMaxEventSize(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.maxEventSize = n
		}
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

// WithDebug enables logging of dropped malformed events.
func WithDebug(debug bool) Option {
	return func(b *Broker) {
		b.debug = debug
	}
}
