package redis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/metric"

	"github.com/dmitrymomot/photon/core/channel"
	"github.com/dmitrymomot/photon/core/logger"
	redisdb "github.com/dmitrymomot/photon/integration/database/redis"
)

// Broker is a channel.Broker backed by Redis pub/sub.
//
// It keeps two connections: one for PUBLISH and one dedicated to the
// subscription stream. Both are opened lazily by the first Publish or
// Subscribe, or eagerly by Connect. Every channel name is prefixed before it
// reaches Redis, so several deployments can share one instance.
//
// Channels containing "*" are subscribed with PSUBSCRIBE. Redis glob
// matching is looser than colon-segment matching, so every pattern delivery
// is re-checked with channel.MatchPattern before handlers run.
//
// Subscribe returns only after the receive loop has seen Redis acknowledge
// the SUBSCRIBE or PSUBSCRIBE, so a message published after Subscribe returns
// is delivered. Handlers run on that loop: subscribing to a new channel from
// inside a handler fails with ErrConfirmTimeout.
type Broker struct {
	prefix           string
	source           string
	publishTimeout   time.Duration
	subscribeTimeout time.Duration
	connect          redisdb.Config
	debug            bool

	logger   *slog.Logger
	provider metric.MeterProvider
	metrics  *channel.Metrics
	drops    *channel.DropReporter

	connMu sync.Mutex // guards pub, sub, ps and loop
	pub    *goredis.Client
	sub    *goredis.Client
	ps     *goredis.PubSub
	loop   *conc.WaitGroup

	subMu    sync.Mutex // serializes SUBSCRIBE and UNSUBSCRIBE commands
	mu       sync.RWMutex
	channels map[string]*channel.HandlerSet
	patterns map[string]*channel.HandlerSet

	pendingMu sync.Mutex
	pending   map[string]chan struct{} // kind + " " + prefixed name
}

// New creates a Redis broker. It does not touch the network.
func New(opts ...Option) (*Broker, error) {
	b := &Broker{
		prefix:           channel.DefaultRedisPrefix,
		source:           channel.DefaultSource(),
		publishTimeout:   DefaultPublishTimeout,
		subscribeTimeout: DefaultSubscribeTimeout,
		connect: redisdb.Config{
			RetryAttempts:  3,
			RetryInterval:  200 * time.Millisecond,
			ConnectTimeout: 5 * time.Second,
		},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		channels: make(map[string]*channel.HandlerSet),
		patterns: make(map[string]*channel.HandlerSet),
		pending:  make(map[string]chan struct{}),
	}

	for _, opt := range opts {
		opt(b)
	}

	if strings.TrimSpace(b.connect.ConnectionURL) == "" {
		return nil, ErrMissingURL
	}

	b.logger = b.logger.With(logger.Component("channel"), logger.Transport(channel.TypeRedis))
	b.metrics = channel.NewMetrics(channel.TypeRedis, b.provider)
	b.drops = channel.NewDropReporter(b.logger, b.metrics, b.debug)

	return b, nil
}

// FromConfig builds a broker from environment configuration. opts are
// applied after the configured values.
func FromConfig(cfg channel.Config, opts ...Option) (channel.Broker, error) {
	b, err := New(append([]Option{
		WithURL(cfg.RedisConnectionURL()),
		WithPrefix(cfg.Prefix()),
		WithSource(cfg.Source()),
		WithDebug(cfg.Debug),
	}, opts...)...)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Publish sends msg to the prefixed channel. Delivery is best effort:
// connection and command failures are logged and swallowed. The one error
// Publish returns is channel.ErrEmptyChannel, for a message without a channel
// name, which is rejected before anything is sent.
func (b *Broker) Publish(ctx context.Context, msg channel.Message) error {
	if msg.Channel == "" {
		return channel.ErrEmptyChannel
	}
	msg = msg.Prepare(b.source)

	ctx, cancel := context.WithTimeout(ctx, b.publishTimeout)
	defer cancel()

	err := b.publish(ctx, msg)
	b.metrics.Published(ctx, err)
	if err != nil {
		b.logger.WarnContext(ctx, "redis publish failed",
			logger.Channel(msg.Channel),
			logger.Event(msg.Event),
			logger.Source(msg.Source),
			logger.Error(err))
	}
	return nil
}

func (b *Broker) publish(ctx context.Context, msg channel.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	client, err := b.publisher(ctx)
	if err != nil {
		return err
	}
	return client.Publish(ctx, b.prefix+msg.Channel, payload).Err()
}

// Subscribe registers handler for ch. The first handler for a channel (or
// pattern) issues SUBSCRIBE (or PSUBSCRIBE) and waits until Redis
// acknowledges it, bounded by ctx and the subscribe timeout. Later handlers
// share that subscription and return immediately.
func (b *Broker) Subscribe(ctx context.Context, ch string, handler channel.Handler) (*channel.Subscription, error) {
	if handler == nil {
		return nil, channel.ErrNilHandler
	}
	if ch == "" {
		return nil, channel.ErrEmptyChannel
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	ps, err := b.pubsub(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: channel %q: %w", ErrSubscribeFailed, ch, err)
	}

	pattern := channel.IsPattern(ch)
	table := b.table(pattern)

	b.mu.RLock()
	set, ok := table[ch]
	b.mu.RUnlock()

	if ok {
		return b.attach(ctx, ps, ch, set, handler), nil
	}

	// The set is visible to the receive loop before the command goes out, so
	// nothing published after the acknowledgement can miss the handler.
	set = channel.NewHandlerSet()
	sub := b.attach(ctx, ps, ch, set, handler)
	b.mu.Lock()
	table[ch] = set
	b.mu.Unlock()

	if err := b.confirm(ctx, ps, ch, pattern); err != nil {
		b.mu.Lock()
		if table[ch] == set {
			delete(table, ch)
		}
		b.mu.Unlock()
		b.metrics.SubscriptionsChanged(ctx, -set.Len())
		set.Close()
		return nil, fmt.Errorf("%w: channel %q: %w", ErrSubscribeFailed, ch, err)
	}

	if pattern {
		b.logger.DebugContext(ctx, "redis subscription confirmed", logger.Pattern(ch))
	} else {
		b.logger.DebugContext(ctx, "redis subscription confirmed", logger.Channel(ch))
	}
	return sub, nil
}

func (b *Broker) attach(ctx context.Context, ps *goredis.PubSub, ch string, set *channel.HandlerSet, handler channel.Handler) *channel.Subscription {
	b.metrics.SubscriptionsChanged(ctx, 1)
	return set.Subscribe(ch, handler, func(remaining int) {
		b.metrics.SubscriptionsChanged(context.Background(), -1)
		if remaining == 0 {
			b.release(ps, ch, set)
		}
	})
}

// confirm sends the subscribe command for ch and waits for its reply. On
// failure the command is reverted so go-redis does not resubscribe it after
// a reconnect.
func (b *Broker) confirm(ctx context.Context, ps *goredis.PubSub, ch string, pattern bool) error {
	key := pendingKey(pattern, b.prefix+ch)
	acked := make(chan struct{})

	b.pendingMu.Lock()
	b.pending[key] = acked
	b.pendingMu.Unlock()
	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, key)
		b.pendingMu.Unlock()
	}()

	var err error
	if pattern {
		err = ps.PSubscribe(ctx, b.prefix+ch)
	} else {
		err = ps.Subscribe(ctx, b.prefix+ch)
	}
	if err == nil {
		b.startLoop(ps)

		timer := time.NewTimer(b.subscribeTimeout)
		defer timer.Stop()

		select {
		case <-acked:
			return nil
		case <-ctx.Done():
			err = ctx.Err()
		case <-timer.C:
			err = ErrConfirmTimeout
		}
	}

	b.unsubscribe(ps, ch, pattern)
	return err
}

// acknowledge releases the Subscribe call waiting for s, if any.
func (b *Broker) acknowledge(s *goredis.Subscription) {
	var pattern bool
	switch s.Kind {
	case "subscribe":
	case "psubscribe":
		pattern = true
	default:
		return
	}

	key := pendingKey(pattern, s.Channel)

	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	if acked, ok := b.pending[key]; ok {
		close(acked)
		delete(b.pending, key)
	}
}

func pendingKey(pattern bool, name string) string {
	if pattern {
		return "psubscribe " + name
	}
	return "subscribe " + name
}

func (b *Broker) table(pattern bool) map[string]*channel.HandlerSet {
	if pattern {
		return b.patterns
	}
	return b.channels
}

// release drops the Redis subscription for ch once its last handler is gone.
func (b *Broker) release(ps *goredis.PubSub, ch string, set *channel.HandlerSet) {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	pattern := channel.IsPattern(ch)
	table := b.table(pattern)

	b.mu.Lock()
	current, ok := table[ch]
	if !ok || current != set || set.Len() > 0 {
		b.mu.Unlock()
		return
	}
	delete(table, ch)
	b.mu.Unlock()

	b.connMu.Lock()
	live := b.ps == ps
	b.connMu.Unlock()
	if !live {
		return
	}

	b.unsubscribe(ps, ch, pattern)
}

func (b *Broker) unsubscribe(ps *goredis.PubSub, ch string, pattern bool) {
	ctx, cancel := context.WithTimeout(context.Background(), b.publishTimeout)
	defer cancel()

	var err error
	if pattern {
		err = ps.PUnsubscribe(ctx, b.prefix+ch)
	} else {
		err = ps.Unsubscribe(ctx, b.prefix+ch)
	}
	if err != nil {
		b.logger.WarnContext(ctx, "redis unsubscribe failed", logger.Channel(ch), logger.Error(err))
	}
}

// IsConnected reports whether the subscription connection is open and has
// at least one live channel or pattern.
func (b *Broker) IsConnected() bool {
	b.connMu.Lock()
	open := b.ps != nil
	b.connMu.Unlock()
	if !open {
		return false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels)+len(b.patterns) > 0
}

// Connect opens both connections if they are not open yet.
func (b *Broker) Connect(ctx context.Context) error {
	if _, err := b.publisher(ctx); err != nil {
		return err
	}
	_, err := b.pubsub(ctx)
	return err
}

// Disconnect unsubscribes everything, closes both connections and waits for
// the receive loop to exit. The broker can be used again afterwards.
// It must not be called from a handler.
func (b *Broker) Disconnect(ctx context.Context) error {
	b.subMu.Lock()
	b.mu.Lock()
	sets := make([]*channel.HandlerSet, 0, len(b.channels)+len(b.patterns))
	for _, set := range b.channels {
		sets = append(sets, set)
	}
	for _, set := range b.patterns {
		sets = append(sets, set)
	}
	b.channels = make(map[string]*channel.HandlerSet)
	b.patterns = make(map[string]*channel.HandlerSet)
	b.mu.Unlock()

	b.connMu.Lock()
	pub, sub, ps, loop := b.pub, b.sub, b.ps, b.loop
	b.pub, b.sub, b.ps, b.loop = nil, nil, nil, nil
	b.connMu.Unlock()
	b.subMu.Unlock()

	for _, set := range sets {
		b.metrics.SubscriptionsChanged(ctx, -set.Len())
		set.Close()
	}

	var errs []error
	if ps != nil {
		// Closing the connection drops every channel and pattern server side.
		if err := ps.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if loop != nil {
		loop.Wait()
	}
	for _, c := range []*goredis.Client{sub, pub} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		// Teardown is best effort; the broker is reset either way.
		b.logger.DebugContext(ctx, "redis disconnect reported errors", logger.Errors(errs...))
	}
	return nil
}

func (b *Broker) publisher(ctx context.Context) (*goredis.Client, error) {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	if b.pub != nil {
		return b.pub, nil
	}

	client, err := redisdb.Connect(ctx, b.connect, redisdb.WithClientName(b.source+":pub"))
	if err != nil {
		return nil, err
	}
	b.pub = client
	return client, nil
}

func (b *Broker) pubsub(ctx context.Context) (*goredis.PubSub, error) {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	if b.ps != nil {
		return b.ps, nil
	}

	client, err := redisdb.Connect(ctx, b.connect, redisdb.WithClientName(b.source+":sub"))
	if err != nil {
		return nil, err
	}

	b.sub, b.ps = client, client.Subscribe(context.Background())
	return b.ps, nil
}

// startLoop starts the receive loop for ps once it has a subscription.
func (b *Broker) startLoop(ps *goredis.PubSub) {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	if b.ps != ps || b.loop != nil {
		return
	}

	replies := ps.ChannelWithSubscriptions()
	b.loop = &conc.WaitGroup{}
	b.loop.Go(func() {
		for r := range replies {
			switch r := r.(type) {
			case *goredis.Subscription:
				b.acknowledge(r)
			case *goredis.Message:
				b.dispatch(r)
			}
		}
	})
}

// dispatch routes one pub/sub delivery. Literal deliveries go to the exact
// channel's handlers, pattern deliveries to the handlers of that pattern.
func (b *Broker) dispatch(m *goredis.Message) {
	ctx := context.Background()
	name := strings.TrimPrefix(m.Channel, b.prefix)

	var handlers []channel.Handler
	b.mu.RLock()
	if m.Pattern == "" {
		if set, ok := b.channels[name]; ok {
			handlers = set.Snapshot()
		}
	} else {
		pattern := strings.TrimPrefix(m.Pattern, b.prefix)
		if set, ok := b.patterns[pattern]; ok && matches(pattern, name) {
			handlers = set.Snapshot()
		}
	}
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	var msg channel.Message
	if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
		b.drops.Drop(ctx, "invalid json", err, logger.Channel(name))
		return
	}
	msg.Channel = name

	failed := channel.Deliver(ctx, b.logger, msg, handlers...)
	b.metrics.Delivered(ctx, len(handlers), failed)
}

func matches(pattern, name string) bool {
	return pattern == channel.Wildcard || channel.MatchPattern(pattern, name)
}

var _ channel.Broker = (*Broker)(nil)
