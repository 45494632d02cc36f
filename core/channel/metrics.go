package channel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/dmitrymomot/photon/core/channel"

// Metrics records broker activity through the OpenTelemetry metric API.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	attrs metric.MeasurementOption

	published     metric.Int64Counter
	delivered     metric.Int64Counter
	dropped       metric.Int64Counter
	panics        metric.Int64Counter
	reconnects    metric.Int64Counter
	subscriptions metric.Int64UpDownCounter
}

// NewMetrics creates instruments tagged with the transport type. A nil
// provider falls back to the global one, which is a no-op until configured.
func NewMetrics(transport string, provider metric.MeterProvider) *Metrics {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	m := &Metrics{
		attrs: metric.WithAttributes(attribute.String("transport", transport)),
	}

	m.published, _ = meter.Int64Counter("photon_channel_published",
		metric.WithDescription("Publish attempts by result"),
		metric.WithUnit("{message}"))

	m.delivered, _ = meter.Int64Counter("photon_channel_delivered",
		metric.WithDescription("Messages handed to local handlers"),
		metric.WithUnit("{message}"))

	m.dropped, _ = meter.Int64Counter("photon_channel_dropped_frames",
		metric.WithDescription("Inbound frames dropped because they could not be parsed"),
		metric.WithUnit("{frame}"))

	m.panics, _ = meter.Int64Counter("photon_channel_handler_panics",
		metric.WithDescription("Handler invocations that panicked"),
		metric.WithUnit("{panic}"))

	m.reconnects, _ = meter.Int64Counter("photon_channel_reconnects",
		metric.WithDescription("Stream reconnect attempts"),
		metric.WithUnit("{reconnect}"))

	m.subscriptions, _ = meter.Int64UpDownCounter("photon_channel_subscriptions",
		metric.WithDescription("Live handler subscriptions"),
		metric.WithUnit("{subscription}"))

	return m
}

// Published records a publish attempt. err == nil counts as success.
func (m *Metrics) Published(ctx context.Context, err error) {
	if m == nil || m.published == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.published.Add(ctx, 1, m.attrs, metric.WithAttributes(attribute.String("result", result)))
}

// Delivered records n handler deliveries, failed of which panicked.
func (m *Metrics) Delivered(ctx context.Context, n, failed int) {
	if m == nil {
		return
	}
	if m.delivered != nil && n > 0 {
		m.delivered.Add(ctx, int64(n), m.attrs)
	}
	if m.panics != nil && failed > 0 {
		m.panics.Add(ctx, int64(failed), m.attrs)
	}
}

// Dropped records an inbound frame that was discarded.
func (m *Metrics) Dropped(ctx context.Context) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Add(ctx, 1, m.attrs)
}

// Reconnected records a stream reconnect attempt.
func (m *Metrics) Reconnected(ctx context.Context) {
	if m == nil || m.reconnects == nil {
		return
	}
	m.reconnects.Add(ctx, 1, m.attrs)
}

// SubscriptionsChanged adjusts the live subscription gauge by delta.
func (m *Metrics) SubscriptionsChanged(ctx context.Context, delta int) {
	if m == nil || m.subscriptions == nil || delta == 0 {
		return
	}
	m.subscriptions.Add(ctx, int64(delta), m.attrs)
}
