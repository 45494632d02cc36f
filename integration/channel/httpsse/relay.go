package httpsse

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dmitrymomot/photon/core/channel"
	"github.com/dmitrymomot/photon/core/logger"
	"github.com/dmitrymomot/photon/pkg/sse"
)

// Relay defaults.
const (
	DefaultRelayKeepAlive = 15 * time.Second
	DefaultRelayBuffer    = 64
	maxRelayBodySize      = 1 << 20
)

// Relay is the server side of the HTTP transport. POST requests publish a
// JSON encoded channel.Message into a broker; GET requests with a "channel"
// query parameter stream that channel's messages as Server-Sent Events.
//
// Example:
//
//	relay := httpsse.NewRelay(httpsse.WithRelayToken(os.Getenv("PHOTON_CHANNEL_AUTH_TOKEN")))
//	http.Handle("/channel", relay)
type Relay struct {
	broker    channel.Broker
	token     string
	keepAlive time.Duration
	buffer    int
	logger    *slog.Logger
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithRelayBroker sets the broker messages are published into and streamed
// from. Defaults to a new in-memory broker.
func WithRelayBroker(b channel.Broker) RelayOption {
	return func(r *Relay) {
		if b != nil {
			r.broker = b
		}
	}
}

// WithRelayToken requires "Authorization: Bearer <token>" on every request.
func WithRelayToken(token string) RelayOption {
	return func(r *Relay) {
		r.token = token
	}
}

// WithRelayKeepAlive sets the interval of keep-alive comments on idle streams.
func WithRelayKeepAlive(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.keepAlive = d
		}
	}
}

// WithRelayBuffer sets how many messages may queue per stream before new
// ones are dropped for that client.
func WithRelayBuffer(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.buffer = n
		}
	}
}

// WithRelayLogger sets the relay logger.
func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRelay creates a relay handler.
func NewRelay(opts ...RelayOption) *Relay {
	r := &Relay{
		keepAlive: DefaultRelayKeepAlive,
		buffer:    DefaultRelayBuffer,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.broker == nil {
		r.broker = channel.NewMemory(channel.WithMemoryLogger(r.logger))
	}
	r.logger = r.logger.With(logger.Component("relay"))

	return r
}

// Broker returns the broker behind the relay.
func (r *Relay) Broker() channel.Broker {
	return r.broker
}

// ServeHTTP implements http.Handler.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !r.authorized(req) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	switch req.Method {
	case http.MethodPost:
		r.publish(w, req)
	case http.MethodGet:
		r.stream(w, req)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (r *Relay) authorized(req *http.Request) bool {
	if r.token == "" {
		return true
	}
	got, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(r.token)) == 1
}

func (r *Relay) publish(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxRelayBodySize))
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var msg channel.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		http.Error(w, "invalid message", http.StatusBadRequest)
		return
	}
	if msg.Channel == "" {
		http.Error(w, channel.ErrEmptyChannel.Error(), http.StatusBadRequest)
		return
	}

	if err := r.broker.Publish(req.Context(), msg); err != nil {
		r.logger.ErrorContext(req.Context(), "relay publish failed", logger.Channel(msg.Channel), logger.Error(err))
		http.Error(w, "publish failed", http.StatusBadGateway)
		return
	}
	r.logger.DebugContext(req.Context(), "relay accepted message",
		logger.Channel(msg.Channel),
		logger.Event(msg.Event),
		logger.Source(msg.Source))
	w.WriteHeader(http.StatusAccepted)
}

func (r *Relay) stream(w http.ResponseWriter, req *http.Request) {
	ch := req.URL.Query().Get("channel")
	if ch == "" {
		http.Error(w, channel.ErrEmptyChannel.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := req.Context()
	queue := make(chan channel.Message, r.buffer)

	sub, err := r.broker.Subscribe(ctx, ch, func(msg channel.Message) {
		select {
		case queue <- msg:
		default:
			r.logger.WarnContext(ctx, "relay client too slow, message dropped", logger.Channel(ch))
		}
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "relay subscribe failed", logger.Channel(ch), logger.Error(err))
		http.Error(w, "subscribe failed", http.StatusBadGateway)
		return
	}
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := sse.WriteComment(w, "connected"); err != nil {
		return
	}
	flusher.Flush()

	r.logger.DebugContext(ctx, "relay stream opened", logger.Channel(ch))

	ticker := time.NewTicker(r.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := sse.WriteComment(w, "keepalive"); err != nil {
				return
			}
			flusher.Flush()

		case msg := <-queue:
			data, err := json.Marshal(msg)
			if err != nil {
				r.logger.WarnContext(ctx, "relay encode failed", logger.Channel(msg.Channel), logger.Error(err))
				continue
			}
			if err := sse.WriteEvent(w, sse.Event{Event: eventMessage, Data: string(data)}); err != nil {
				return
			}
			flusher.Flush()
			ticker.Reset(r.keepAlive)
		}
	}
}

var _ http.Handler = (*Relay)(nil)
