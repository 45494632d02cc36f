package channel

import "context"

// NoOp discards all traffic. It is the fallback when no transport is
// configured and never returns an error.
type NoOp struct{}

// NewNoOp creates a NoOp broker.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Publish discards msg.
func (*NoOp) Publish(context.Context, Message) error {
	return nil
}

// Subscribe returns an inactive subscription; the handler is never invoked.
func (*NoOp) Subscribe(_ context.Context, channel string, _ Handler) (*Subscription, error) {
	return InactiveSubscription(channel), nil
}

// IsConnected always reports true.
func (*NoOp) IsConnected() bool {
	return true
}

// Connect does nothing.
func (*NoOp) Connect(context.Context) error {
	return nil
}

// Disconnect does nothing.
func (*NoOp) Disconnect(context.Context) error {
	return nil
}
