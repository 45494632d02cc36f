package httpsse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/metric"

	"github.com/dmitrymomot/photon/core/channel"
	"github.com/dmitrymomot/photon/core/logger"
	"github.com/dmitrymomot/photon/pkg/sse"
)

// Event types accepted on the stream. Anything else is ignored.
const (
	eventMessage = "message"
	eventChannel = "channel"
)

// Broker is a channel.Broker that publishes through an HTTP webhook and
// subscribes through a Server-Sent Events stream.
//
// Subscribe never fails for connectivity reasons: it returns an active
// subscription immediately and the stream is opened in the background,
// re-opened after a fixed delay whenever it ends, until the last handler of
// the channel unsubscribes.
type Broker struct {
	publishURL     string
	streamURL      string
	token          string
	source         string
	publishTimeout time.Duration
	reconnectDelay time.Duration
	malformedLimit int
	maxEventSize   int
	debug          bool

	client   *http.Client
	logger   *slog.Logger
	provider metric.MeterProvider
	metrics  *channel.Metrics
	drops    *channel.DropReporter

	mu      sync.Mutex
	streams map[string]*stream
	wg      conc.WaitGroup
}

// stream is the background connection shared by all handlers of one channel.
type stream struct {
	channel  string
	cancel   context.CancelFunc
	handlers *channel.HandlerSet
	live     atomic.Bool
}

// New creates an HTTP broker. It fails with ErrMissingURL when no publish
// URL is set.
func New(opts ...Option) (*Broker, error) {
	b := &Broker{
		source:         channel.DefaultSource(),
		publishTimeout: DefaultPublishTimeout,
		reconnectDelay: DefaultReconnectDelay,
		maxEventSize:   DefaultMaxEventSize,
		client:         &http.Client{},
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		streams:        make(map[string]*stream),
	}

	for _, opt := range opts {
		opt(b)
	}

	b.publishURL = strings.TrimSpace(b.publishURL)
	if b.publishURL == "" {
		return nil, ErrMissingURL
	}
	if strings.TrimSpace(b.streamURL) == "" {
		b.streamURL = b.publishURL
	}

	b.logger = b.logger.With(logger.Component("channel"), logger.Transport(channel.TypeHTTP))
	b.metrics = channel.NewMetrics(channel.TypeHTTP, b.provider)
	b.drops = channel.NewDropReporter(b.logger, b.metrics, b.debug)

	return b, nil
}

// FromConfig builds a broker from environment configuration. opts are
// applied after the configured values.
func FromConfig(cfg channel.Config, opts ...Option) (channel.Broker, error) {
	b, err := New(append([]Option{
		WithURL(cfg.HTTPURL),
		WithStreamURL(cfg.StreamURL()),
		WithAuthToken(cfg.AuthToken),
		WithSource(cfg.Source()),
		WithDebug(cfg.Debug),
	}, opts...)...)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Publish POSTs msg as JSON. A non-2xx answer or a transport failure is
// returned as an error wrapping ErrPublishFailed.
func (b *Broker) Publish(ctx context.Context, msg channel.Message) error {
	if msg.Channel == "" {
		return channel.ErrEmptyChannel
	}
	msg = msg.Prepare(b.source)

	err := b.publish(ctx, msg)
	b.metrics.Published(ctx, err)
	return err
}

func (b *Broker) publish(ctx context.Context, msg channel.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: channel %q: encode message: %w", ErrPublishFailed, msg.Channel, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.publishTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.publishURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: channel %q: %w", ErrPublishFailed, msg.Channel, err)
	}
	req.Header.Set("Content-Type", "application/json")
	b.authorize(req)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: channel %q: %w", ErrPublishFailed, msg.Channel, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b.logger.DebugContext(ctx, "publish rejected by server",
			logger.Channel(msg.Channel),
			logger.Address(b.publishURL),
			logger.StatusCode(resp.StatusCode))
		return fmt.Errorf("%w: channel %q: status %d", ErrPublishFailed, msg.Channel, resp.StatusCode)
	}
	return nil
}

func (b *Broker) authorize(req *http.Request) {
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
}

// Subscribe registers handler for ch and makes sure a stream for ch is
// running. ch may be "*" to receive every channel the server streams.
func (b *Broker) Subscribe(ctx context.Context, ch string, handler channel.Handler) (*channel.Subscription, error) {
	if handler == nil {
		return nil, channel.ErrNilHandler
	}
	if ch == "" {
		return nil, channel.ErrEmptyChannel
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.streams[ch]
	if !ok {
		sctx, cancel := context.WithCancel(context.Background())
		s = &stream{channel: ch, cancel: cancel, handlers: channel.NewHandlerSet()}
		b.streams[ch] = s
		b.wg.Go(func() { b.run(sctx, s) })
	}

	b.metrics.SubscriptionsChanged(ctx, 1)

	return s.handlers.Subscribe(ch, handler, func(remaining int) {
		b.release(s, remaining)
	}), nil
}

// release stops s once its last handler is gone.
func (b *Broker) release(s *stream, remaining int) {
	b.metrics.SubscriptionsChanged(context.Background(), -1)
	if remaining > 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.streams[s.channel] != s || s.handlers.Len() > 0 {
		return
	}
	delete(b.streams, s.channel)
	s.cancel()
}

// run keeps the stream for s open until ctx is cancelled, reopening it at
// the constant reconnect delay whenever it ends.
func (b *Broker) run(ctx context.Context, s *stream) {
	var attempts int
	_, _ = backoff.Retry(ctx, func() (struct{}, error) {
		if attempts > 0 {
			b.metrics.Reconnected(ctx)
		}
		attempts++

		if err := b.consume(ctx, s); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, errStreamEnded
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(b.reconnectDelay)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			b.logger.DebugContext(ctx, "event stream closed, reconnecting",
				logger.Channel(s.channel),
				logger.Duration(next),
				logger.Error(err))
		}),
	)
}

// consume reads one stream connection until it ends.
func (b *Broker) consume(ctx context.Context, s *stream) error {
	u, err := url.Parse(b.streamURL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("channel", s.channel)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	b.authorize(req)

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b.logger.DebugContext(ctx, "event stream refused",
			logger.Channel(s.channel),
			logger.StatusCode(resp.StatusCode))
		return fmt.Errorf("%w: %d", errStreamStatus, resp.StatusCode)
	}

	s.live.Store(true)
	defer s.live.Store(false)

	dec := sse.NewDecoder(resp.Body, sse.WithMaxEventSize(b.maxEventSize))
	malformed := 0

	for {
		ev, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errStreamEnded
			}
			return err
		}

		if t := ev.Type(); t != eventMessage && t != eventChannel {
			continue
		}

		var msg channel.Message
		if err := json.Unmarshal([]byte(ev.Data), &msg); err != nil {
			b.drops.Drop(ctx, "invalid json", err, logger.Channel(s.channel))
			malformed++
			if b.malformedLimit > 0 && malformed >= b.malformedLimit {
				return fmt.Errorf("%w: %d in a row", errTooManyMalformed, malformed)
			}
			continue
		}
		malformed = 0

		if s.channel != channel.Wildcard && msg.Channel != s.channel {
			continue
		}

		handlers := s.handlers.Snapshot()
		failed := channel.Deliver(ctx, b.logger, msg, handlers...)
		b.metrics.Delivered(ctx, len(handlers), failed)
	}
}

// IsConnected reports whether at least one stream is currently open.
func (b *Broker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.streams {
		if s.live.Load() {
			return true
		}
	}
	return false
}

// Connect does nothing; streams are opened per channel by Subscribe.
func (b *Broker) Connect(context.Context) error {
	return nil
}

// Disconnect stops every stream and waits for them to exit. It must not be
// called from a handler.
func (b *Broker) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	streams := b.streams
	b.streams = make(map[string]*stream)
	b.mu.Unlock()

	for _, s := range streams {
		s.cancel()
		b.metrics.SubscriptionsChanged(ctx, -s.handlers.Len())
		s.handlers.Close()
	}

	b.wg.Wait()
	return nil
}

var _ channel.Broker = (*Broker)(nil)
