package detect

import (
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/dmitrymomot/photon/core/channel"
	"github.com/dmitrymomot/photon/integration/channel/daemon"
	"github.com/dmitrymomot/photon/integration/channel/httpsse"
)

type options struct {
	logger   *slog.Logger
	provider metric.MeterProvider
	registry []channel.RegistryOption
}

// Option configures the registry built by NewRegistry.
type Option func(*options)

// WithLogger sets the logger handed to the registry and every broker it creates.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeterProvider sets the meter provider handed to every broker.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithRegistryOptions passes options through to channel.NewRegistry, e.g.
// channel.WithConfig or channel.WithDetector.
func WithRegistryOptions(opts ...channel.RegistryOption) Option {
	return func(o *options) {
		o.registry = append(o.registry, opts...)
	}
}

// NewRegistry returns a registry with every built-in transport registered:
// noop, memory, daemon, http and, unless built with the noredis tag, redis.
func NewRegistry(opts ...Option) *channel.Registry {
	o := &options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}

	reg := channel.NewRegistry(append([]channel.RegistryOption{
		channel.WithRegistryLogger(o.logger),
	}, o.registry...)...)

	_ = reg.Register(channel.TypeNoOp, func(channel.Config) (channel.Broker, error) {
		return channel.NewNoOp(), nil
	})
	_ = reg.Register(channel.TypeMemory, func(cfg channel.Config) (channel.Broker, error) {
		return channel.NewMemory(
			channel.WithMemoryLogger(o.logger),
			channel.WithMemorySource(cfg.Source()),
			channel.WithMemoryMeterProvider(o.provider),
		), nil
	})
	_ = reg.Register(channel.TypeDaemon, func(cfg channel.Config) (channel.Broker, error) {
		return daemon.FromConfig(cfg,
			daemon.WithLogger(o.logger),
			daemon.WithMeterProvider(o.provider),
		)
	})
	_ = reg.Register(channel.TypeHTTP, func(cfg channel.Config) (channel.Broker, error) {
		return httpsse.FromConfig(cfg,
			httpsse.WithLogger(o.logger),
			httpsse.WithMeterProvider(o.provider),
		)
	})
	registerRedis(reg, o)

	return reg
}
