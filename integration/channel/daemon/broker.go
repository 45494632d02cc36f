package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/metric"

	"github.com/dmitrymomot/photon/core/channel"
	"github.com/dmitrymomot/photon/core/logger"
)

// errPublishRejected is logged when the daemon answers a publish with an error frame.
var errPublishRejected = errors.New("daemon rejected publish")

const unsubscribeWriteTimeout = time.Second

// Broker is a channel.Broker that talks to a local daemon over a Unix domain
// socket (a named pipe on Windows) using newline-delimited JSON frames.
//
// Every distinct channel gets its own connection. The first Subscribe for a
// channel performs the handshake; concurrent Subscribe calls for the same
// channel wait for that handshake and share its outcome. When the last
// handler of a channel unsubscribes, an unsubscribe frame is sent and the
// connection is closed.
type Broker struct {
	name             string
	socketDir        string
	address          string
	source           string
	publishTimeout   time.Duration
	subscribeTimeout time.Duration
	debug            bool

	logger   *slog.Logger
	provider metric.MeterProvider
	metrics  *channel.Metrics
	drops    *channel.DropReporter

	mu    sync.Mutex
	conns map[string]*conn
	wg    conc.WaitGroup
}

// conn is one subscribed channel's socket.
type conn struct {
	channel  string
	ready    chan struct{}
	err      error // handshake outcome, valid once ready is closed
	nc       net.Conn
	handlers *channel.HandlerSet
	writeMu  sync.Mutex
}

// New creates a daemon broker for the daemon called name. It does not touch
// the socket.
func New(name string, opts ...Option) *Broker {
	if name == "" {
		name = channel.DefaultSource()
	}

	b := &Broker{
		name:             name,
		source:           name,
		publishTimeout:   DefaultPublishTimeout,
		subscribeTimeout: DefaultSubscribeTimeout,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		conns:            make(map[string]*conn),
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.address == "" {
		b.address = socketAddress(b.socketDir, b.name)
	}

	b.logger = b.logger.With(logger.Component("channel"), logger.Transport(channel.TypeDaemon))
	b.metrics = channel.NewMetrics(channel.TypeDaemon, b.provider)
	b.drops = channel.NewDropReporter(b.logger, b.metrics, b.debug)

	return b
}

// FromConfig builds a broker from environment configuration. opts are
// applied after the configured values.
func FromConfig(cfg channel.Config, opts ...Option) (channel.Broker, error) {
	return New(cfg.Source(), append([]Option{
		WithSocketDir(cfg.DaemonSocketDir),
		WithDebug(cfg.Debug),
	}, opts...)...), nil
}

// Address returns the socket path or pipe name the broker dials.
func (b *Broker) Address() string {
	return b.address
}

// Publish sends msg over a short-lived connection and waits for the daemon's
// acknowledgement. A missing socket, a dial failure or a timeout is logged
// and Publish still returns nil. The one error Publish returns is
// channel.ErrEmptyChannel, for a message without a channel name, which is
// rejected before any socket is touched.
func (b *Broker) Publish(ctx context.Context, msg channel.Message) error {
	if msg.Channel == "" {
		return channel.ErrEmptyChannel
	}
	msg = msg.Prepare(b.source)

	if !socketExists(b.address) {
		return nil
	}

	err := b.publish(ctx, msg)
	b.metrics.Published(ctx, err)
	if err != nil {
		b.logger.DebugContext(ctx, "daemon publish failed",
			logger.Channel(msg.Channel),
			logger.Event(msg.Event),
			logger.Error(err))
	}
	return nil
}

func (b *Broker) publish(ctx context.Context, msg channel.Message) error {
	req, err := publishFrame(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, b.publishTimeout)
	defer cancel()

	nc, err := dial(ctx, b.address)
	if err != nil {
		return err
	}
	defer nc.Close()

	stop := context.AfterFunc(ctx, func() { _ = nc.SetDeadline(time.Now()) })
	defer stop()

	if err := writeFrame(nc, req); err != nil {
		return err
	}

	r := bufio.NewReader(nc)
	for {
		line, err := readLine(r)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		f, err := decodeFrame(line)
		if err != nil {
			b.drops.Drop(ctx, "invalid frame", err, logger.Channel(msg.Channel))
			continue
		}
		if f.ID != req.ID {
			continue
		}

		switch f.Type {
		case FrameResult:
			return nil
		case FrameError:
			return fmt.Errorf("%w: %s", errPublishRejected, f.Error)
		}
	}
}

// Subscribe registers handler for ch and returns once the daemon has
// confirmed the channel's connection. It fails with ErrDaemonUnavailable,
// without dialing, when the socket does not exist.
func (b *Broker) Subscribe(ctx context.Context, ch string, handler channel.Handler) (*channel.Subscription, error) {
	if handler == nil {
		return nil, channel.ErrNilHandler
	}
	if ch == "" {
		return nil, channel.ErrEmptyChannel
	}
	if !socketExists(b.address) {
		return nil, fmt.Errorf("%w: channel %q: %s", ErrDaemonUnavailable, ch, b.address)
	}

	for {
		b.mu.Lock()
		c, ok := b.conns[ch]
		if !ok {
			c = &conn{
				channel:  ch,
				ready:    make(chan struct{}),
				handlers: channel.NewHandlerSet(),
			}
			b.conns[ch] = c
		}
		b.mu.Unlock()

		if !ok {
			b.handshake(ctx, c)
		} else {
			select {
			case <-c.ready:
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: channel %q: %w", ErrSubscribeFailed, ch, ctx.Err())
			}
		}
		if c.err != nil {
			return nil, c.err
		}

		b.mu.Lock()
		if b.conns[ch] != c {
			// The connection went away between confirmation and registration.
			b.mu.Unlock()
			continue
		}
		sub := c.handlers.Subscribe(ch, handler, func(remaining int) {
			b.release(c, remaining)
		})
		b.mu.Unlock()

		b.metrics.SubscriptionsChanged(ctx, 1)
		return sub, nil
	}
}

// handshake opens c's connection and publishes the outcome through c.ready.
func (b *Broker) handshake(ctx context.Context, c *conn) {
	nc, r, err := b.open(ctx, c.channel)

	b.mu.Lock()
	current := b.conns[c.channel] == c
	if err == nil && current {
		c.nc = nc
		b.mu.Unlock()
		close(c.ready)

		b.logger.DebugContext(ctx, "daemon subscription confirmed", logger.Channel(c.channel))
		b.wg.Go(func() { b.read(c, r) })
		return
	}
	if current {
		delete(b.conns, c.channel)
	}
	b.mu.Unlock()

	if err == nil {
		_ = nc.Close()
		err = fmt.Errorf("%w: channel %q: broker disconnected", ErrSubscribeFailed, c.channel)
	}
	c.err = err
	close(c.ready)
}

// open dials the daemon and waits for the subscribe confirmation.
func (b *Broker) open(ctx context.Context, ch string) (net.Conn, *bufio.Reader, error) {
	ctx, cancel := context.WithTimeout(ctx, b.subscribeTimeout)
	defer cancel()

	nc, err := dial(ctx, b.address)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: channel %q: %w", ErrSubscribeFailed, ch, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = nc.SetDeadline(time.Now()) })
	fail := func(err error) (net.Conn, *bufio.Reader, error) {
		stop()
		_ = nc.Close()
		return nil, nil, err
	}

	req := subscribeFrame(ch)
	if err := writeFrame(nc, req); err != nil {
		return fail(fmt.Errorf("%w: channel %q: %w", ErrSubscribeFailed, ch, err))
	}

	r := bufio.NewReader(nc)
	for {
		line, err := readLine(r)
		if err != nil {
			switch {
			case errors.Is(ctx.Err(), context.DeadlineExceeded):
				return fail(fmt.Errorf("%w: channel %q after %s", ErrConfirmTimeout, ch, b.subscribeTimeout))
			case ctx.Err() != nil:
				return fail(fmt.Errorf("%w: channel %q: %w", ErrSubscribeFailed, ch, ctx.Err()))
			default:
				return fail(fmt.Errorf("%w: channel %q: %w", ErrClosedBeforeConfirm, ch, err))
			}
		}

		f, err := decodeFrame(line)
		if err != nil {
			b.drops.Drop(ctx, "invalid frame", err, logger.Channel(ch))
			continue
		}
		if f.ID != req.ID {
			continue
		}

		switch f.Type {
		case FrameResult:
			if !stop() {
				return fail(fmt.Errorf("%w: channel %q after %s", ErrConfirmTimeout, ch, b.subscribeTimeout))
			}
			_ = nc.SetDeadline(time.Time{})
			return nc, r, nil
		case FrameError:
			return fail(fmt.Errorf("%w: channel %q: %s", ErrSubscribeRejected, ch, f.Error))
		}
	}
}

// read dispatches channel_message frames until the connection ends.
func (b *Broker) read(c *conn, r *bufio.Reader) {
	ctx := context.Background()

	for {
		line, err := readLine(r)
		if err != nil {
			break
		}

		f, err := decodeFrame(line)
		if err != nil {
			b.drops.Drop(ctx, "invalid frame", err, logger.Channel(c.channel))
			continue
		}
		if f.Type != FrameChannelMessage {
			continue
		}
		if f.Channel == "" {
			f.Channel = c.channel
		}
		if f.Channel != c.channel {
			continue
		}

		msg, err := f.message()
		if err != nil {
			b.drops.Drop(ctx, "invalid message", err, logger.Channel(c.channel))
			continue
		}

		handlers := c.handlers.Snapshot()
		failed := channel.Deliver(ctx, b.logger, msg, handlers...)
		b.metrics.Delivered(ctx, len(handlers), failed)
	}

	b.lost(c)
}

// lost cleans up after the daemon closed a connection we still considered live.
func (b *Broker) lost(c *conn) {
	b.mu.Lock()
	current := b.conns[c.channel] == c
	if current {
		delete(b.conns, c.channel)
	}
	b.mu.Unlock()

	if !current {
		return
	}

	b.logger.Warn("daemon connection closed",
		logger.Channel(c.channel),
		logger.Handlers(c.handlers.Len()))
	b.metrics.SubscriptionsChanged(context.Background(), -c.handlers.Len())
	c.handlers.Close()
	_ = c.nc.Close()
}

// release tears down c once its last handler is gone.
func (b *Broker) release(c *conn, remaining int) {
	b.metrics.SubscriptionsChanged(context.Background(), -1)
	if remaining > 0 {
		return
	}

	b.mu.Lock()
	if b.conns[c.channel] != c || c.handlers.Len() > 0 {
		b.mu.Unlock()
		return
	}
	delete(b.conns, c.channel)
	b.mu.Unlock()

	b.teardown(c)
}

// teardown sends an unsubscribe frame and closes the connection.
func (b *Broker) teardown(c *conn) {
	if c.nc == nil {
		return
	}

	c.writeMu.Lock()
	_ = c.nc.SetWriteDeadline(time.Now().Add(unsubscribeWriteTimeout))
	if err := writeFrame(c.nc, unsubscribeFrame(c.channel)); err != nil {
		b.logger.Debug("daemon unsubscribe failed", logger.Channel(c.channel), logger.Error(err))
	}
	c.writeMu.Unlock()

	_ = c.nc.Close()
}

// IsConnected reports whether at least one channel connection is confirmed.
func (b *Broker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range b.conns {
		if c.nc != nil {
			return true
		}
	}
	return false
}

// Connect does nothing; connections are opened per channel by Subscribe.
func (b *Broker) Connect(context.Context) error {
	return nil
}

// Disconnect unsubscribes and closes every channel connection and waits for
// the read loops to exit. It must not be called from a handler.
func (b *Broker) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	conns := b.conns
	b.conns = make(map[string]*conn)
	b.mu.Unlock()

	for _, c := range conns {
		b.metrics.SubscriptionsChanged(ctx, -c.handlers.Len())
		c.handlers.Close()
		b.teardown(c)
	}

	b.wg.Wait()
	return nil
}

var _ channel.Broker = (*Broker)(nil)
