package channel

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

// Memory is an in-process broker. Messages are delivered synchronously on the
// publishing goroutine to every subscriber of the exact channel, every
// matching pattern subscriber and every "*" subscriber.
//
// Memory is the reference implementation of the Broker contract and backs the
// HTTP relay server.
//
// Example:
//
//	broker := channel.NewMemory(channel.WithMemoryLogger(logger))
//	sub, _ := broker.Subscribe(ctx, "board:1", func(msg channel.Message) {
//	    fmt.Println(msg.Event, msg.Data)
//	})
//	defer sub.Unsubscribe()
//
//	_ = broker.Publish(ctx, channel.Message{Channel: "board:1", Event: "update"})
type Memory struct {
	mu       sync.RWMutex
	channels map[string]*HandlerSet

	source  string
	logger  *slog.Logger
	metrics *Metrics
}

// MemoryOption configures a Memory broker.
type MemoryOption func(*Memory)

// WithMemoryLogger sets the logger used to report handler panics.
func WithMemoryLogger(logger *slog.Logger) MemoryOption {
	return func(m *Memory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMemorySource sets the source stamped on messages published without one.
func WithMemorySource(source string) MemoryOption {
	return func(m *Memory) {
		if source != "" {
			m.source = source
		}
	}
}

// WithMemoryMeterProvider sets the meter provider for broker metrics.
func WithMemoryMeterProvider(provider metric.MeterProvider) MemoryOption {
	return func(m *Memory) {
		m.metrics = NewMetrics(TypeMemory, provider)
	}
}

// NewMemory creates an in-memory broker.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		channels: make(map[string]*HandlerSet),
		source:   DefaultSource(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.metrics == nil {
		m.metrics = NewMetrics(TypeMemory, nil)
	}

	return m
}

// Publish delivers msg to every matching subscriber before returning.
func (m *Memory) Publish(ctx context.Context, msg Message) error {
	msg = msg.Prepare(m.source)

	handlers := m.match(msg.Channel)
	failed := Deliver(ctx, m.logger, msg, handlers...)

	m.metrics.Published(ctx, nil)
	m.metrics.Delivered(ctx, len(handlers), failed)
	return nil
}

func (m *Memory) match(channel string) []Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var handlers []Handler
	for key, set := range m.channels {
		if key == channel || key == Wildcard || (IsPattern(key) && MatchPattern(key, channel)) {
			handlers = append(handlers, set.Snapshot()...)
		}
	}
	return handlers
}

// Subscribe registers handler for channel. channel may be an exact name, a
// colon-segment pattern such as "board:*", or "*" for every channel.
func (m *Memory) Subscribe(ctx context.Context, channel string, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.channels[channel]
	if !ok {
		set = NewHandlerSet()
		m.channels[channel] = set
	}

	m.metrics.SubscriptionsChanged(ctx, 1)

	return set.Subscribe(channel, handler, func(remaining int) {
		m.metrics.SubscriptionsChanged(context.Background(), -1)
		if remaining > 0 {
			return
		}

		m.mu.Lock()
		if current, ok := m.channels[channel]; ok && current == set && set.Len() == 0 {
			delete(m.channels, channel)
		}
		m.mu.Unlock()
	}), nil
}

// IsConnected reports whether at least one subscription is live.
func (m *Memory) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels) > 0
}

// Connect does nothing.
func (m *Memory) Connect(context.Context) error {
	return nil
}

// Disconnect drops every subscription. Outstanding handles become inactive.
func (m *Memory) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	channels := m.channels
	m.channels = make(map[string]*HandlerSet)
	m.mu.Unlock()

	for _, set := range channels {
		m.metrics.SubscriptionsChanged(ctx, -set.Len())
		set.Close()
	}
	return nil
}
