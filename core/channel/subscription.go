package channel

import (
	"sync"
	"sync/atomic"
)

// Subscription is the caller-held handle returned by Broker.Subscribe.
// It is safe for concurrent use.
type Subscription struct {
	channel string
	active  atomic.Bool
	once    sync.Once
	release func()
}

// NewSubscription returns an active subscription for channel. release is
// invoked at most once, by the first call to Unsubscribe.
func NewSubscription(channel string, release func()) *Subscription {
	s := &Subscription{channel: channel, release: release}
	s.active.Store(true)
	return s
}

// InactiveSubscription returns a handle that never delivers and whose
// Unsubscribe does nothing.
func InactiveSubscription(channel string) *Subscription {
	s := &Subscription{channel: channel}
	s.once.Do(func() {})
	return s
}

// Channel returns the subscribed channel or pattern.
func (s *Subscription) Channel() string {
	return s.channel
}

// Active reports whether the subscription can still receive messages.
func (s *Subscription) Active() bool {
	return s.active.Load()
}

// Unsubscribe stops delivery and releases the underlying resource.
// Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.active.Store(false)
		if s.release != nil {
			s.release()
		}
	})
}

// detach marks the subscription inactive without running release.
// Used when the transport tears down the connection in bulk.
func (s *Subscription) detach() {
	s.once.Do(func() {
		s.active.Store(false)
	})
}
