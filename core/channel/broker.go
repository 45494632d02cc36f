package channel

import "context"

// Transport type names used by the registry.
const (
	TypeNoOp   = "noop"
	TypeMemory = "memory"
	TypeDaemon = "daemon"
	TypeRedis  = "redis"
	TypeHTTP   = "http"
)

// Broker is the capability contract shared by every transport.
//
// Publish is fire-and-forget: it returns once the send attempt completes, not
// once a remote subscriber has received the message. Subscribe registers a
// handler for a channel and returns once the transport considers the
// subscription live. Connect may be a no-op for lazily connecting transports;
// Disconnect releases every resource and leaves the broker connectable again.
type Broker interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context, channel string, handler Handler) (*Subscription, error)
	IsConnected() bool
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}
